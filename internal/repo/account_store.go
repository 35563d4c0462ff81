package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"girder/internal/models"
)

type AccountStore struct{ db *gorm.DB }

func NewAccountStore(db *gorm.DB) *AccountStore { return &AccountStore{db: db} }

func (s *AccountStore) FindByID(ctx context.Context, id uint) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where(&models.Account{Username: username}).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

func (s *AccountStore) FindByPortalID(ctx context.Context, portalID string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where(&models.Account{HSPortalID: portalID}).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

// First returns the installation account. Single-tenant deployments have
// exactly one row; webhook paths that carry no portal hint use this.
func (s *AccountStore) First(ctx context.Context) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Order("id").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

func (s *AccountStore) Create(ctx context.Context, a *models.Account) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *AccountStore) Save(ctx context.Context, a *models.Account) error {
	return s.db.WithContext(ctx).Save(a).Error
}

// SetHSTokens replaces the HubSpot token triple in one update.
func (s *AccountStore) SetHSTokens(ctx context.Context, id uint, token, refresh string, expiry time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"hs_token":         token,
			"hs_refresh_token": refresh,
			"hs_token_expiry":  expiry,
		}).Error
}

// SetProcoreTokens replaces the Procore token triple in one update.
func (s *AccountStore) SetProcoreTokens(ctx context.Context, id uint, token, refresh string, expiry time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"procore_token":         token,
			"procore_refresh_token": refresh,
			"procore_token_expiry":  expiry,
		}).Error
}
