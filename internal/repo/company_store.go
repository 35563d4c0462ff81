package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"girder/internal/models"
)

type CompanyStore struct{ db *gorm.DB }

func NewCompanyStore(db *gorm.DB) *CompanyStore { return &CompanyStore{db: db} }

func (s *CompanyStore) find(ctx context.Context, where *models.Company) (*models.Company, error) {
	var c models.Company
	err := s.db.WithContext(ctx).Preload("PrimaryContact").Where(where).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (s *CompanyStore) FindByID(ctx context.Context, id uint) (*models.Company, error) {
	var c models.Company
	err := s.db.WithContext(ctx).Preload("PrimaryContact").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (s *CompanyStore) FindByHSID(ctx context.Context, hsID string) (*models.Company, error) {
	return s.find(ctx, &models.Company{HSID: hsID})
}

func (s *CompanyStore) FindByProcoreID(ctx context.Context, procoreID string) (*models.Company, error) {
	return s.find(ctx, &models.Company{ProcoreID: procoreID})
}

// FindByName is the fallback lookup for companies whose remote id is not
// linked yet (spelling must match exactly).
func (s *CompanyStore) FindByName(ctx context.Context, name string) (*models.Company, error) {
	return s.find(ctx, &models.Company{Name: name})
}

func (s *CompanyStore) FindByProcoreIDAll(ctx context.Context, procoreID string) ([]models.Company, error) {
	var out []models.Company
	err := s.db.WithContext(ctx).Where(&models.Company{ProcoreID: procoreID}).Find(&out).Error
	return out, err
}

func (s *CompanyStore) Create(ctx context.Context, c *models.Company) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *CompanyStore) Save(ctx context.Context, c *models.Company) error {
	return s.db.WithContext(ctx).Save(c).Error
}
