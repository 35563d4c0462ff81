package admin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"girder/config"
	"girder/internal/models"
	"girder/internal/repo"
)

type testEnv struct {
	db       *gorm.DB
	projects *repo.ProjectStore
	router   *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Account{}, &models.Company{}, &models.Contact{},
		&models.Project{}, &models.Office{}, &models.PrimeContract{}, &models.Attachment{},
	))

	projects := repo.NewProjectStore(db)
	router := mux.NewRouter()
	Attach(router, Dependencies{
		DB:          db,
		CFG:         &config.Config{},
		PROJECTS:    projects,
		ACCOUNTS:    repo.NewAccountStore(db),
		ATTACHMENTS: repo.NewAttachmentStore(db),
	})
	return &testEnv{db: db, projects: projects, router: router}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (e *testEnv) post(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestProjectsListRendersAndFilters(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&models.Project{HSID: "d-1", Name: "River Crossing", DealStage: "qualifiedtobuy"}).Error)
	require.NoError(t, env.db.Create(&models.Project{HSID: "d-2", Name: "Canyon Bridge", ProcoreID: "9001", NeedsHSUpdate: true}).Error)

	rec := env.get(t, "/admin/projects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "River Crossing")
	assert.Contains(t, rec.Body.String(), "Canyon Bridge")

	rec = env.get(t, "/admin/projects?pending=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "River Crossing")
	assert.Contains(t, rec.Body.String(), "Canyon Bridge")

	rec = env.get(t, "/admin/projects?q=River")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "River Crossing")
	assert.NotContains(t, rec.Body.String(), "Canyon Bridge")
}

func TestProjectDetailShowsRelationsAndAttachments(t *testing.T) {
	env := newTestEnv(t)
	company := models.Company{HSID: "co-1", Name: "Acme Builders", CompanyType: models.CompanyTypeCustomer}
	require.NoError(t, env.db.Create(&company).Error)
	p := models.Project{HSID: "d-1", ProcoreID: "9001", Name: "River Crossing", CompanyID: &company.ID}
	require.NoError(t, env.db.Create(&p).Error)
	require.NoError(t, env.db.Create(&models.Attachment{
		ProjectID: p.ID, Filename: "plans.pdf", FileOrigin: models.FileOriginHubSpot, HSID: "f-1",
	}).Error)

	rec := env.get(t, fmt.Sprintf("/admin/projects/%d", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "River Crossing")
	assert.Contains(t, body, "Acme Builders")
	assert.Contains(t, body, "plans.pdf")
	assert.Contains(t, body, "in flight") // no procore id on the attachment yet

	rec = env.get(t, "/admin/projects/424242")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResyncAndClearToggleSweepFlag(t *testing.T) {
	env := newTestEnv(t)
	p := models.Project{HSID: "d-1", ProcoreID: "9001", Name: "River Crossing"}
	require.NoError(t, env.db.Create(&p).Error)

	rec := env.post(t, fmt.Sprintf("/admin/api/projects/%d/resync", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Project
	require.NoError(t, env.db.First(&got, p.ID).Error)
	assert.True(t, got.NeedsHSUpdate)

	rec = env.post(t, fmt.Sprintf("/admin/api/projects/%d/clear", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, env.db.First(&got, p.ID).Error)
	assert.False(t, got.NeedsHSUpdate)

	rec = env.post(t, "/admin/api/projects/424242/resync")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountsPageShowsConnectionState(t *testing.T) {
	env := newTestEnv(t)
	exp := time.Now().Add(time.Hour)
	require.NoError(t, env.db.Create(&models.Account{
		Username: "default", Active: true,
		HSPortalID: "123", HSRefreshToken: "r1", HSTokenExpiry: &exp,
		ActiveProcoreCompanyName: "Acme Construction",
	}).Error)

	rec := env.get(t, "/admin/accounts")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "connected")
	assert.Contains(t, body, "/procore/connect") // procore side still needs install
	assert.Contains(t, body, "Acme Construction")
}
