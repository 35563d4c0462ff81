package admin

import (
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"girder/config"
	"girder/internal/repo"
)

type Dependencies struct {
	DB          *gorm.DB
	CFG         *config.Config
	PROJECTS    *repo.ProjectStore
	ACCOUNTS    *repo.AccountStore
	ATTACHMENTS *repo.AttachmentStore
}

func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d, t: parseTemplates()}
	sub := r.PathPrefix("/admin").Subrouter()

	// pages
	sub.HandleFunc("", h.redirect("/admin/projects")).Methods("GET")
	sub.HandleFunc("/", h.redirect("/admin/projects")).Methods("GET")
	sub.HandleFunc("/projects", h.ProjectsList).Methods("GET")
	sub.HandleFunc("/projects/{id:[0-9]+}", h.ProjectDetail).Methods("GET")
	sub.HandleFunc("/accounts", h.AccountsPage).Methods("GET")

	// api (JSON)
	sub.HandleFunc("/api/projects/{id:[0-9]+}/resync", h.APIResync).Methods("POST")
	sub.HandleFunc("/api/projects/{id:[0-9]+}/clear", h.APIClearFlag).Methods("POST")

	// static (very small)
	sub.HandleFunc("/static/style.css", serveCSS).Methods("GET")
	sub.HandleFunc("/static/app.js", serveJS).Methods("GET")
}
