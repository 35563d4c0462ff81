package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"girder/internal/models"
)

type ContractStore struct{ db *gorm.DB }

func NewContractStore(db *gorm.DB) *ContractStore { return &ContractStore{db: db} }

func (s *ContractStore) FindByHSID(ctx context.Context, hsID string) (*models.PrimeContract, error) {
	var pc models.PrimeContract
	err := s.db.WithContext(ctx).
		Preload("Project").
		Preload("Company").
		Preload("Contact").
		Where(&models.PrimeContract{HSID: hsID}).First(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &pc, err
}

func (s *ContractStore) Create(ctx context.Context, pc *models.PrimeContract) error {
	return s.db.WithContext(ctx).Create(pc).Error
}

func (s *ContractStore) Save(ctx context.Context, pc *models.PrimeContract) error {
	return s.db.WithContext(ctx).Save(pc).Error
}
