package creds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"girder/config"
	"girder/internal/models"
	"girder/internal/repo"
)

type tokenFixture struct {
	srv  *httptest.Server
	hits int64

	// response fields; RefreshToken may be empty to exercise the
	// keep-old-refresh path.
	accessToken  string
	refreshToken string
}

func startTokenServer(t *testing.T) *tokenFixture {
	t.Helper()
	f := &tokenFixture{accessToken: "fresh-access"}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.hits, 1)
		w.Header().Set("Content-Type", "application/json")
		body := fmt.Sprintf(`{"access_token":%q,"token_type":"bearer","expires_in":3600`, f.accessToken)
		if f.refreshToken != "" {
			body += fmt.Sprintf(`,"refresh_token":%q`, f.refreshToken)
		}
		body += "}"
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func testSetup(t *testing.T, tokenURL string) (*Manager, *repo.AccountStore) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Account{}))

	cfg := &config.Config{}
	cfg.HubSpot.ClientID = "hs-client"
	cfg.HubSpot.ClientSecret = "hs-secret"
	cfg.HubSpot.AuthURL = "https://app.example.test/oauth/authorize"
	cfg.HubSpot.TokenURL = tokenURL
	cfg.HubSpot.Scopes = "crm.objects.deals.read files"
	cfg.Procore.ClientID = "pc-client"
	cfg.Procore.ClientSecret = "pc-secret"
	cfg.Procore.AuthURL = "https://login.example.test/oauth/authorize"
	cfg.Procore.TokenURL = tokenURL
	cfg.Server.BaseURL = "http://localhost:7000"
	cfg.HubSpot.RedirectPath = "/hubspot/redirect"
	cfg.Procore.RedirectPath = "/procore/redirect"

	accounts := repo.NewAccountStore(db)
	return NewManager(accounts, cfg), accounts
}

func TestAuthHeaderUsesValidTokenWithoutRefresh(t *testing.T) {
	fix := startTokenServer(t)
	m, accounts := testSetup(t, fix.srv.URL)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour)
	a := &models.Account{Username: "default", HSToken: "live", HSRefreshToken: "r1", HSTokenExpiry: &expiry}
	require.NoError(t, accounts.Create(ctx, a))

	h, err := m.AuthHeader(ctx, a.ID, SystemHubSpot)
	require.NoError(t, err)
	assert.Equal(t, "Bearer live", h)
	assert.Zero(t, atomic.LoadInt64(&fix.hits))
}

func TestAuthHeaderRefreshesExpiredToken(t *testing.T) {
	fix := startTokenServer(t)
	fix.refreshToken = "r2"
	m, accounts := testSetup(t, fix.srv.URL)
	ctx := context.Background()

	expiry := time.Now().Add(-time.Minute)
	a := &models.Account{Username: "default", HSToken: "stale", HSRefreshToken: "r1", HSTokenExpiry: &expiry}
	require.NoError(t, accounts.Create(ctx, a))

	h, err := m.AuthHeader(ctx, a.ID, SystemHubSpot)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh-access", h)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fix.hits))

	saved, err := accounts.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", saved.HSToken)
	assert.Equal(t, "r2", saved.HSRefreshToken)
	require.NotNil(t, saved.HSTokenExpiry)
	assert.True(t, saved.HSTokenExpiry.After(time.Now()))
}

func TestAuthHeaderRefreshesNearExpiryWithinSkew(t *testing.T) {
	fix := startTokenServer(t)
	m, accounts := testSetup(t, fix.srv.URL)
	ctx := context.Background()

	// Still technically valid, but inside the early-refresh window.
	expiry := time.Now().Add(5 * time.Second)
	a := &models.Account{Username: "default", ProcoreToken: "stale", ProcoreRefreshToken: "r1", ProcoreTokenExpiry: &expiry}
	require.NoError(t, accounts.Create(ctx, a))

	h, err := m.AuthHeader(ctx, a.ID, SystemProcore)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh-access", h)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fix.hits))
}

func TestAuthHeaderKeepsOldRefreshWhenResponseOmitsOne(t *testing.T) {
	fix := startTokenServer(t)
	m, accounts := testSetup(t, fix.srv.URL)
	ctx := context.Background()

	a := &models.Account{Username: "default", ProcoreToken: "stale", ProcoreRefreshToken: "keep-me"}
	require.NoError(t, accounts.Create(ctx, a))

	_, err := m.AuthHeader(ctx, a.ID, SystemProcore)
	require.NoError(t, err)

	saved, err := accounts.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep-me", saved.ProcoreRefreshToken)
}

func TestAuthHeaderNotConnected(t *testing.T) {
	fix := startTokenServer(t)
	m, accounts := testSetup(t, fix.srv.URL)
	ctx := context.Background()

	a := &models.Account{Username: "default"}
	require.NoError(t, accounts.Create(ctx, a))

	_, err := m.AuthHeader(ctx, a.ID, SystemHubSpot)
	assert.ErrorIs(t, err, ErrAuthFailed)

	_, err = m.AuthHeader(ctx, 404, SystemHubSpot)
	assert.Error(t, err)
}

func TestInstallURLCarriesScopeAndState(t *testing.T) {
	fix := startTokenServer(t)
	m, _ := testSetup(t, fix.srv.URL)

	u := m.InstallURL(SystemHubSpot, "7")
	assert.Contains(t, u, "state=7")
	assert.Contains(t, u, "client_id=hs-client")
	assert.Contains(t, u, "scope=")

	u = m.InstallURL(SystemProcore, "7")
	assert.Contains(t, u, "client_id=pc-client")
	assert.NotContains(t, u, "scope=")
}
