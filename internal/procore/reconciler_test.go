package procore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"girder/config"
	"girder/internal/creds"
	"girder/internal/files"
	"girder/internal/models"
	"girder/internal/repo"
)

type staticAuth struct{}

func (staticAuth) AuthHeader(ctx context.Context, accountID uint, system creds.System) (string, error) {
	return "Bearer test-token", nil
}

// recordedRequest keeps what the fake API saw for assertions.
type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   []byte
}

type apiRecorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (rec *apiRecorder) record(r *http.Request, body []byte) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}
	rec.reqs = append(rec.reqs, recordedRequest{
		Method: r.Method, Path: r.URL.Path, Query: q, Body: body,
	})
}

func (rec *apiRecorder) byPath(method, path string) *recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := range rec.reqs {
		if rec.reqs[i].Method == method && rec.reqs[i].Path == path {
			return &rec.reqs[i]
		}
	}
	return nil
}

func (rec *apiRecorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.reqs)
}

type testEnv struct {
	rec      *Reconciler
	account  *models.Account
	cfg      *config.Config
	api      *apiRecorder
	db       *gorm.DB
	projects *repo.ProjectStore
}

// newTestEnv wires a reconciler against a fake Procore API. Routes not
// covered by handler answer 200 with an empty object.
func newTestEnv(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body []byte) bool) *testEnv {
	t.Helper()

	api := &apiRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.record(r, body)
		if handler != nil && handler(w, r, body) {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Account{}, &models.Company{}, &models.Contact{},
		&models.Office{}, &models.PrimeContract{}, &models.Project{},
		&models.Attachment{},
	))

	cfg := &config.Config{}
	cfg.Procore.APIURL = srv.URL
	cfg.Procore.WritesEnabled = true
	cfg.Sync.SettleDelay = time.Millisecond
	cfg.Sync.WebhookSettleDelay = time.Millisecond

	storage, err := files.NewStorage(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	account := &models.Account{Username: "default", ActiveProcoreCompanyID: "555"}
	require.NoError(t, db.Create(account).Error)

	projects := repo.NewProjectStore(db)
	rec := NewReconciler(ReconcilerDeps{
		Client:      NewClient(cfg, staticAuth{}),
		Config:      cfg,
		Projects:    projects,
		Companies:   repo.NewCompanyStore(db),
		Contacts:    repo.NewContactStore(db),
		Contracts:   repo.NewContractStore(db),
		Attachments: repo.NewAttachmentStore(db),
		Offices:     repo.NewOfficeStore(db),
		Storage:     storage,
	})
	rec.sleep = func(time.Duration) {}

	return &testEnv{rec: rec, account: account, cfg: cfg, api: api, db: db, projects: projects}
}

func TestCreateProjectBlockedByWritesGate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cfg.Procore.WritesEnabled = false

	p := &models.Project{HSID: "d-1", Name: "Bridge"}
	require.NoError(t, env.db.Create(p).Error)

	err := env.rec.CreateProject(context.Background(), env.account, p)
	assert.ErrorIs(t, err, ErrWritesDisabled)
	assert.Zero(t, env.api.count(), "a gated write must never reach the API")
}

func TestCreateProjectAllowlistBypassesGate(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/rest/v1.0/projects" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 9001}`))
			return true
		}
		return false
	})
	env.cfg.Procore.WritesEnabled = false
	env.cfg.Procore.AllowlistDealID = "d-pilot"

	p := &models.Project{HSID: "d-pilot", Name: "Pilot Yard"}
	require.NoError(t, env.db.Create(p).Error)

	require.NoError(t, env.rec.CreateProject(context.Background(), env.account, p))
	assert.Equal(t, "9001", p.ProcoreID)
}

func TestCreateProjectPayloadAndPersistence(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/rest/v1.0/projects" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 9001}`))
			return true
		}
		return false
	})

	closeDate := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
	p := &models.Project{
		HSID:          "d-1",
		Name:          "River Crossing",
		ProjectNumber: "24-117 ",
		Amount:        250000,
		DealStage:     "contractsent",
		CloseDate:     &closeDate,
		Department:    "Engineering",
		Types:         []string{"Design", "LIDAR", "Unrecognized"},
	}
	require.NoError(t, env.db.Create(p).Error)

	require.NoError(t, env.rec.CreateProject(context.Background(), env.account, p))

	req := env.api.byPath(http.MethodPost, "/rest/v1.0/projects")
	require.NotNil(t, req)
	assert.Equal(t, "555", req.Query["company_id"])

	var payload struct {
		CompanyID string `json:"company_id"`
		Project   struct {
			Name              string  `json:"name"`
			StartDate         string  `json:"start_date"`
			CompletionDate    string  `json:"completion_date"`
			ProjectedFinish   string  `json:"projected_finish_date"`
			EstimatedValue    float64 `json:"estimated_value"`
			ProjectStageID    int64   `json:"project_stage_id"`
			ProjectTemplateID string  `json:"project_template_id"`
			ProjectTypeID     *int64  `json:"project_type_id"`
			DepartmentIDs     []int64 `json:"department_ids"`
			TimeZone          string  `json:"time_zone"`
			TZName            string  `json:"tz_name"`
			CountryCode       string  `json:"country_code"`
		} `json:"project"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &payload))

	assert.Equal(t, "555", payload.CompanyID)
	assert.Equal(t, "24-117 River Crossing", payload.Project.Name)
	assert.Equal(t, "2026-03-02", payload.Project.StartDate)
	assert.Equal(t, "2026-04-01", payload.Project.CompletionDate, "completion is close date plus thirty days")
	assert.Equal(t, payload.Project.CompletionDate, payload.Project.ProjectedFinish)
	assert.Equal(t, float64(250000), payload.Project.EstimatedValue)
	assert.Equal(t, int64(stageBidding), payload.Project.ProjectStageID)
	assert.Equal(t, projectTemplateID, payload.Project.ProjectTemplateID)
	require.NotNil(t, payload.Project.ProjectTypeID)
	assert.Equal(t, projectTypes["Engineering"], *payload.Project.ProjectTypeID)
	assert.Equal(t, []int64{projectDepartments["Design"], projectDepartments["LIDAR"]}, payload.Project.DepartmentIDs)
	assert.Equal(t, defaultTimeZone, payload.Project.TimeZone)
	assert.Equal(t, defaultTZName, payload.Project.TZName)
	assert.Equal(t, "US", payload.Project.CountryCode)

	// The remote id lands on the row and the CRM sweep is armed.
	saved, err := env.projects.FindByHSID(context.Background(), "d-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "9001", saved.ProcoreID)
	assert.True(t, saved.NeedsHSUpdate)
}

func TestCreateProjectSkipsWhenAlreadyMirrored(t *testing.T) {
	env := newTestEnv(t, nil)

	p := &models.Project{HSID: "d-1", ProcoreID: "existing"}
	require.NoError(t, env.db.Create(p).Error)

	require.NoError(t, env.rec.CreateProject(context.Background(), env.account, p))
	assert.Zero(t, env.api.count())
}

func TestProjectFieldsStageFollowsDeal(t *testing.T) {
	env := newTestEnv(t, nil)

	won := env.rec.projectFields(&models.Project{DealStage: "closedwon"})
	assert.Equal(t, int64(stageAwarded), won.ProjectStageID)

	open := env.rec.projectFields(&models.Project{DealStage: "qualifiedtobuy"})
	assert.Equal(t, int64(stageBidding), open.ProjectStageID)
}

func TestCompletionDate(t *testing.T) {
	assert.Equal(t, "", completionDate(nil))
	d := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-02-14", completionDate(&d))
}

func primeContractEnv(t *testing.T) *testEnv {
	return newTestEnv(t, func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/rest/v1.0/prime_contract" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 3001}`))
			return true
		}
		return false
	})
}

func TestEnsurePrimeContractCreate(t *testing.T) {
	env := primeContractEnv(t)
	ctx := context.Background()

	co := &models.Company{Name: "Acme Rail", ProcoreID: "42"}
	require.NoError(t, env.db.Create(co).Error)
	pc := &models.PrimeContract{Title: "Prime", ContractDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()}
	require.NoError(t, env.db.Create(pc).Error)

	p := &models.Project{
		HSID:            "d-1",
		ProcoreID:       "9001",
		ProjectNumber:   "24-117",
		DealStage:       "qualifiedtobuy",
		CompanyID:       &co.ID,
		Company:         co,
		PrimeContractID: &pc.ID,
		PrimeContract:   pc,
	}
	require.NoError(t, env.db.Create(p).Error)

	require.NoError(t, env.rec.EnsurePrimeContract(ctx, env.account, p))

	req := env.api.byPath(http.MethodPost, "/rest/v1.0/prime_contract")
	require.NotNil(t, req)

	var payload struct {
		ProjectID     string `json:"project_id"`
		PrimeContract struct {
			Number            string `json:"number"`
			Status            string `json:"status"`
			ContractDate      string `json:"contract_date"`
			ContractStartDate string `json:"contract_start_date"`
			ContractorID      int64  `json:"contractor_id"`
			VendorID          *int64 `json:"vendor_id"`
			AccountingMethod  string `json:"accounting_method"`
		} `json:"prime_contract"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &payload))

	assert.Equal(t, "9001", payload.ProjectID)
	assert.Equal(t, "24-117 - 1", payload.PrimeContract.Number)
	assert.Equal(t, "Out For Bid", payload.PrimeContract.Status)
	assert.Equal(t, "2026-02-01", payload.PrimeContract.ContractDate)
	assert.Equal(t, payload.PrimeContract.ContractDate, payload.PrimeContract.ContractStartDate)
	assert.Equal(t, int64(contractorID), payload.PrimeContract.ContractorID)
	require.NotNil(t, payload.PrimeContract.VendorID)
	assert.Equal(t, int64(42), *payload.PrimeContract.VendorID)
	assert.Equal(t, "amount", payload.PrimeContract.AccountingMethod)

	// The created contract id is persisted for the update path.
	var saved models.PrimeContract
	require.NoError(t, env.db.First(&saved, pc.ID).Error)
	assert.Equal(t, "3001", saved.ProcoreID)
}

func TestEnsurePrimeContractWonDealIsDraft(t *testing.T) {
	env := primeContractEnv(t)

	pc := &models.PrimeContract{Title: "Prime"}
	require.NoError(t, env.db.Create(pc).Error)
	p := &models.Project{
		HSID: "d-1", ProcoreID: "9001", ProjectNumber: "24-117",
		DealStage: "closedwon", PrimeContractID: &pc.ID, PrimeContract: pc,
	}
	require.NoError(t, env.db.Create(p).Error)

	require.NoError(t, env.rec.EnsurePrimeContract(context.Background(), env.account, p))

	req := env.api.byPath(http.MethodPost, "/rest/v1.0/prime_contract")
	require.NotNil(t, req)
	var payload struct {
		PrimeContract struct {
			Status string `json:"status"`
		} `json:"prime_contract"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	assert.Equal(t, "Draft", payload.PrimeContract.Status)
}

func TestEnsurePrimeContractUpdateOmitsAccountingMethod(t *testing.T) {
	env := newTestEnv(t, nil)

	pc := &models.PrimeContract{Title: "Prime", ProcoreID: "3001"}
	require.NoError(t, env.db.Create(pc).Error)
	p := &models.Project{
		HSID: "d-1", ProcoreID: "9001", ProjectNumber: "24-117",
		DealStage: "closedwon", PrimeContractID: &pc.ID, PrimeContract: pc,
	}
	require.NoError(t, env.db.Create(p).Error)

	require.NoError(t, env.rec.EnsurePrimeContract(context.Background(), env.account, p))

	req := env.api.byPath(http.MethodPatch, "/rest/v1.0/prime_contract/3001")
	require.NotNil(t, req)
	assert.NotContains(t, string(req.Body), "accounting_method")
}

func TestEnsurePrimeContractRequiresProjectState(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	noContract := &models.Project{HSID: "d-1", ProcoreID: "9001"}
	assert.Error(t, env.rec.EnsurePrimeContract(ctx, env.account, noContract))

	notMirrored := &models.Project{HSID: "d-2", PrimeContract: &models.PrimeContract{}}
	assert.Error(t, env.rec.EnsurePrimeContract(ctx, env.account, notMirrored))
}

func vendorSearchEnv(t *testing.T, hits string) *testEnv {
	return newTestEnv(t, func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1.0/vendors":
			_, _ = w.Write([]byte(hits))
			return true
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1.0/vendors":
			_, _ = w.Write([]byte(`{"id": 6001}`))
			return true
		}
		return false
	})
}

func TestCreateOrUpdateCompanyAdoptsSingleSearchHit(t *testing.T) {
	env := vendorSearchEnv(t, `[{"id": 42, "name": "Acme Rail"}]`)
	ctx := context.Background()

	co := &models.Company{Name: "Acme Rail"}
	require.NoError(t, env.db.Create(co).Error)

	require.NoError(t, env.rec.CreateOrUpdateCompany(ctx, env.account, co, nil))
	assert.Equal(t, "42", co.ProcoreID)

	// An adopted vendor gets the directory update, not a create.
	assert.Nil(t, env.api.byPath(http.MethodPost, "/rest/v1.0/vendors"))
	assert.NotNil(t, env.api.byPath(http.MethodPatch, "/rest/v1.0/vendors/42"))
}

func TestCreateOrUpdateCompanyCreatesOnMiss(t *testing.T) {
	env := vendorSearchEnv(t, `[]`)
	ctx := context.Background()

	co := &models.Company{Name: "Zenith Civil", CountryCode: "US"}
	require.NoError(t, env.db.Create(co).Error)

	require.NoError(t, env.rec.CreateOrUpdateCompany(ctx, env.account, co, nil))
	assert.Equal(t, "6001", co.ProcoreID)

	req := env.api.byPath(http.MethodPost, "/rest/v1.0/vendors")
	require.NotNil(t, req)
	var payload struct {
		Vendor struct {
			Name             string `json:"name"`
			CountryCode      string `json:"country_code"`
			IsActive         bool   `json:"is_active"`
			AuthorizedBidder bool   `json:"authorized_bidder"`
		} `json:"vendor"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	assert.Equal(t, "Zenith Civil", payload.Vendor.Name)
	assert.Equal(t, "US", payload.Vendor.CountryCode)
	assert.True(t, payload.Vendor.IsActive)
	assert.True(t, payload.Vendor.AuthorizedBidder)

	// Fresh creates skip the follow-up directory update.
	assert.Nil(t, env.api.byPath(http.MethodPatch, "/rest/v1.0/vendors/6001"))
}

func TestCreateOrUpdateCompanyAmbiguousSearchCreates(t *testing.T) {
	env := vendorSearchEnv(t, `[{"id": 1, "name": "Acme"}, {"id": 2, "name": "Acme"}]`)
	ctx := context.Background()

	co := &models.Company{Name: "Acme"}
	require.NoError(t, env.db.Create(co).Error)

	require.NoError(t, env.rec.CreateOrUpdateCompany(ctx, env.account, co, nil))
	assert.Equal(t, "6001", co.ProcoreID, "two hits count as not found")
}

func TestCreateOrUpdateContactRequiresMirroredCompany(t *testing.T) {
	env := newTestEnv(t, nil)

	ct := &models.Contact{Email: "a@acme.test"}
	err := env.rec.CreateOrUpdateContact(context.Background(), env.account, ct)
	assert.Error(t, err)
	assert.Zero(t, env.api.count())

	ct.Company = &models.Company{Name: "Acme"} // exists locally but not in procore
	err = env.rec.CreateOrUpdateContact(context.Background(), env.account, ct)
	assert.Error(t, err)
}

func TestRegisterProjectUpdateWebhook(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.rec.RegisterProjectUpdateWebhook(context.Background(), env.account)
	assert.Error(t, err, "an unset destination url must not register")

	env.cfg.Procore.WebhookURL = "https://bridge.example.test/procore/webhook"
	require.NoError(t, env.rec.RegisterProjectUpdateWebhook(context.Background(), env.account))

	req := env.api.byPath(http.MethodPost, "/rest/v1.0/webhooks/hooks")
	require.NotNil(t, req)
	var payload struct {
		Hook struct {
			APIVersion         string            `json:"api_version"`
			Namespace          string            `json:"namespace"`
			DestinationURL     string            `json:"destination_url"`
			DestinationHeaders map[string]string `json:"destination_headers"`
		} `json:"hook"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	assert.Equal(t, "v2", payload.Hook.APIVersion)
	assert.Equal(t, "procore", payload.Hook.Namespace)
	assert.Equal(t, "https://bridge.example.test/procore/webhook", payload.Hook.DestinationURL)
	assert.Equal(t, fmt.Sprint(env.account.ID), payload.Hook.DestinationHeaders["apiKey"])
}
