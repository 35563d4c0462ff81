package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"girder/internal/models"
)

type ContactStore struct{ db *gorm.DB }

func NewContactStore(db *gorm.DB) *ContactStore { return &ContactStore{db: db} }

func (s *ContactStore) find(ctx context.Context, where *models.Contact) (*models.Contact, error) {
	var c models.Contact
	err := s.db.WithContext(ctx).Preload("Company").Where(where).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (s *ContactStore) FindByID(ctx context.Context, id uint) (*models.Contact, error) {
	var c models.Contact
	err := s.db.WithContext(ctx).Preload("Company").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (s *ContactStore) FindByHSID(ctx context.Context, hsID string) (*models.Contact, error) {
	return s.find(ctx, &models.Contact{HSID: hsID})
}

func (s *ContactStore) FindByProcoreID(ctx context.Context, procoreID string) (*models.Contact, error) {
	return s.find(ctx, &models.Contact{ProcoreID: procoreID})
}

func (s *ContactStore) FindByEmail(ctx context.Context, email string) (*models.Contact, error) {
	return s.find(ctx, &models.Contact{Email: email})
}

// FindByCompany lists every contact employed by the company.
func (s *ContactStore) FindByCompany(ctx context.Context, companyID uint) ([]*models.Contact, error) {
	var out []*models.Contact
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Find(&out).Error
	return out, err
}

func (s *ContactStore) Create(ctx context.Context, c *models.Contact) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *ContactStore) Save(ctx context.Context, c *models.Contact) error {
	return s.db.WithContext(ctx).Save(c).Error
}
