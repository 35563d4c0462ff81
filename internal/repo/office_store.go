package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"girder/internal/models"
)

type OfficeStore struct{ db *gorm.DB }

func NewOfficeStore(db *gorm.DB) *OfficeStore { return &OfficeStore{db: db} }

func (s *OfficeStore) find(ctx context.Context, where *models.Office) (*models.Office, error) {
	var o models.Office
	err := s.db.WithContext(ctx).Where(where).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &o, err
}

func (s *OfficeStore) FindByName(ctx context.Context, accountID uint, name string) (*models.Office, error) {
	return s.find(ctx, &models.Office{AccountID: accountID, Name: name})
}

func (s *OfficeStore) FindByProcoreID(ctx context.Context, accountID uint, procoreID string) (*models.Office, error) {
	return s.find(ctx, &models.Office{AccountID: accountID, ProcoreID: procoreID})
}

// FindOrCreateByName implements the lazy office lifecycle: first
// reference by name creates the row.
func (s *OfficeStore) FindOrCreateByName(ctx context.Context, accountID uint, name string) (*models.Office, error) {
	o, err := s.FindByName(ctx, accountID, name)
	if err != nil || o != nil {
		return o, err
	}
	o = &models.Office{AccountID: accountID, Name: name}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OfficeStore) Create(ctx context.Context, o *models.Office) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *OfficeStore) Save(ctx context.Context, o *models.Office) error {
	return s.db.WithContext(ctx).Save(o).Error
}
