// Package creds owns the OAuth token lifecycle for both remote systems.
// Tokens live on the Account row; every authenticated call re-reads the
// persisted state before deciding whether to refresh, so two processes
// sharing a database never work from a stale triple.
package creds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"girder/config"
	"girder/internal/logs"
	"girder/internal/models"
	"girder/internal/repo"
)

type System string

const (
	SystemHubSpot System = "hubspot"
	SystemProcore System = "procore"
)

// ErrAuthFailed marks a failed refresh so callers can tell an auth
// problem from an ordinary remote error and retry later.
var ErrAuthFailed = errors.New("token refresh failed")

// expirySkew refreshes slightly early so a token never dies mid-request.
const expirySkew = 20 * time.Second

type Manager struct {
	accounts *repo.AccountStore
	cfg      *config.Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per account+system refresh single-flight
}

func NewManager(accounts *repo.AccountStore, cfg *config.Config) *Manager {
	return &Manager{
		accounts: accounts,
		cfg:      cfg,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(accountID uint, system System) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d/%s", accountID, system)
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Manager) oauthConfig(system System) *oauth2.Config {
	switch system {
	case SystemHubSpot:
		return &oauth2.Config{
			ClientID:     m.cfg.HubSpot.ClientID,
			ClientSecret: m.cfg.HubSpot.ClientSecret,
			RedirectURL:  m.cfg.HubSpotRedirectURL(),
			Endpoint: oauth2.Endpoint{
				AuthURL:  m.cfg.HubSpot.AuthURL,
				TokenURL: m.cfg.HubSpot.TokenURL,
			},
		}
	default:
		return &oauth2.Config{
			ClientID:     m.cfg.Procore.ClientID,
			ClientSecret: m.cfg.Procore.ClientSecret,
			RedirectURL:  m.cfg.ProcoreRedirectURL(),
			Endpoint: oauth2.Endpoint{
				AuthURL:  m.cfg.Procore.AuthURL,
				TokenURL: m.cfg.Procore.TokenURL,
			},
		}
	}
}

// InstallURL builds the authorization URL for the OAuth connect flow.
// state carries the account id through the redirect.
func (m *Manager) InstallURL(system System, state string) string {
	conf := m.oauthConfig(system)
	if system == SystemHubSpot && m.cfg.HubSpot.Scopes != "" {
		return conf.AuthCodeURL(state,
			oauth2.SetAuthURLParam("scope", m.cfg.HubSpot.Scopes))
	}
	return conf.AuthCodeURL(state)
}

// Authorize performs the one-time authorization_code exchange and
// persists the resulting token triple on the account.
func (m *Manager) Authorize(ctx context.Context, account *models.Account, system System, code string) error {
	if account == nil {
		return errors.New("invalid account")
	}
	tok, err := m.oauthConfig(system).Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%s authorize: %w", system, err)
	}
	return m.persist(ctx, account, system, tok)
}

// AuthHeader returns a valid bearer header for the account and system,
// refreshing first when the persisted token is expired or about to be.
func (m *Manager) AuthHeader(ctx context.Context, accountID uint, system System) (string, error) {
	l := m.lockFor(accountID, system)
	l.Lock()
	defer l.Unlock()

	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", fmt.Errorf("account %d not found", accountID)
	}

	token, refresh, expiry := tokenState(account, system)
	if token == "" && refresh == "" {
		return "", fmt.Errorf("%w: %s not connected for account %d", ErrAuthFailed, system, accountID)
	}

	if expiry == nil || time.Now().After(expiry.Add(-expirySkew)) {
		logs.Logger.Infof("%s token expired for account %d, refreshing", system, accountID)
		token, err = m.refresh(ctx, account, system, refresh)
		if err != nil {
			return "", err
		}
	}
	return "Bearer " + token, nil
}

func (m *Manager) refresh(ctx context.Context, account *models.Account, system System, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", fmt.Errorf("%w: no %s refresh token for account %d", ErrAuthFailed, system, account.ID)
	}
	src := m.oauthConfig(system).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		logs.Logger.Errorf("%s token refresh failed for account %d: %v", system, account.ID, err)
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if err := m.persist(ctx, account, system, tok); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// persist replaces the token triple atomically. A missing refresh token
// in the response keeps the previous one.
func (m *Manager) persist(ctx context.Context, account *models.Account, system System, tok *oauth2.Token) error {
	refresh := tok.RefreshToken
	expiry := tok.Expiry

	switch system {
	case SystemHubSpot:
		if refresh == "" {
			refresh = account.HSRefreshToken
		}
		account.HSToken = tok.AccessToken
		account.HSRefreshToken = refresh
		account.HSTokenExpiry = &expiry
		return m.accounts.SetHSTokens(ctx, account.ID, tok.AccessToken, refresh, expiry)
	default:
		if refresh == "" {
			refresh = account.ProcoreRefreshToken
		}
		account.ProcoreToken = tok.AccessToken
		account.ProcoreRefreshToken = refresh
		account.ProcoreTokenExpiry = &expiry
		return m.accounts.SetProcoreTokens(ctx, account.ID, tok.AccessToken, refresh, expiry)
	}
}

func tokenState(a *models.Account, system System) (token, refresh string, expiry *time.Time) {
	if system == SystemHubSpot {
		return a.HSToken, a.HSRefreshToken, a.HSTokenExpiry
	}
	return a.ProcoreToken, a.ProcoreRefreshToken, a.ProcoreTokenExpiry
}
