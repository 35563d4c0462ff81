package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"girder/config"
	"girder/internal/admin"
	"girder/internal/creds"
	"girder/internal/db"
	"girder/internal/dedup"
	"girder/internal/files"
	"girder/internal/health"
	"girder/internal/hubspot"
	"girder/internal/logs"
	"girder/internal/middleware"
	"girder/internal/models"
	"girder/internal/procore"
	"girder/internal/repo"
	"girder/internal/sweep"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	dispatcher *hubspot.Dispatcher
	sweeper    *sweep.Sweeper

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Logging */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d

	if err := a.db.AutoMigrate(
		&models.Account{},
		&models.Company{},
		&models.Contact{},
		&models.Project{},
		&models.Office{},
		&models.PrimeContract{},
		&models.Attachment{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) Stores and services */
	accounts := repo.NewAccountStore(a.db)
	companies := repo.NewCompanyStore(a.db)
	contacts := repo.NewContactStore(a.db)
	projects := repo.NewProjectStore(a.db)
	offices := repo.NewOfficeStore(a.db)
	contracts := repo.NewContractStore(a.db)
	attachments := repo.NewAttachmentStore(a.db)

	storage, err := files.NewStorage(a.cfg.Storage.HubSpotDir, a.cfg.Storage.ProcoreDir)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}

	credsMgr := creds.NewManager(accounts, a.cfg)
	cache := dedup.NewClient(a.cfg.Dedup.Address)

	hsClient := hubspot.NewClient(a.cfg, credsMgr)
	pcClient := procore.NewClient(a.cfg, credsMgr)

	pcRec := procore.NewReconciler(procore.ReconcilerDeps{
		Client:      pcClient,
		Config:      a.cfg,
		Projects:    projects,
		Companies:   companies,
		Contacts:    contacts,
		Contracts:   contracts,
		Attachments: attachments,
		Offices:     offices,
		Storage:     storage,
	})

	hsRec := hubspot.NewReconciler(hubspot.ReconcilerDeps{
		Client:      hsClient,
		Config:      a.cfg,
		Projects:    projects,
		Companies:   companies,
		Contacts:    contacts,
		Contracts:   contracts,
		Attachments: attachments,
		Storage:     storage,
		Downstream:  &downstreamAdapter{rec: pcRec},
	})
	pcRec.SetNotifier(&notifierAdapter{rec: hsRec})

	a.dispatcher = hubspot.NewDispatcher(hsRec, accounts, cache, a.cfg)
	a.sweeper = sweep.New(projects, accounts, hsRec, a.cfg.Sync.SweepInterval)

	/* 4) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz

	hubspot.Attach(a.Router, hubspot.Dependencies{
		CFG:        a.cfg,
		CREDS:      credsMgr,
		REC:        hsRec,
		DISPATCHER: a.dispatcher,
		ACCOUNTS:   accounts,
		PROJECTS:   projects,
		COMPANIES:  companies,
		CONTACTS:   contacts,
	})
	procore.Attach(a.Router, procore.Dependencies{
		CFG:      a.cfg,
		CREDS:    credsMgr,
		REC:      pcRec,
		CLIENT:   pcClient,
		ACCOUNTS: accounts,
		PROJECTS: projects,
	})
	admin.Attach(a.Router, admin.Dependencies{
		DB:          a.db,
		CFG:         a.cfg,
		PROJECTS:    projects,
		ACCOUNTS:    accounts,
		ATTACHMENTS: attachments,
	})

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// Background workers share the app lifecycle.
	go a.dispatcher.Run(a.ctx)
	go a.sweeper.Run(a.ctx)

	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logs.Logger.Info("server stopped")
	return nil
}
