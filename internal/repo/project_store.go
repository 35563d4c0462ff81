package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"girder/internal/models"
)

type ProjectStore struct{ db *gorm.DB }

func NewProjectStore(db *gorm.DB) *ProjectStore { return &ProjectStore{db: db} }

func (s *ProjectStore) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Contact").
		Preload("Company").
		Preload("Company.PrimaryContact").
		Preload("Office").
		Preload("PrimeContract").
		Preload("Contacts").
		Preload("Contacts.Company")
}

func (s *ProjectStore) find(ctx context.Context, where *models.Project) (*models.Project, error) {
	var p models.Project
	err := s.preloaded(ctx).Where(where).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (s *ProjectStore) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	err := s.preloaded(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (s *ProjectStore) FindByHSID(ctx context.Context, hsID string) (*models.Project, error) {
	return s.find(ctx, &models.Project{HSID: hsID})
}

func (s *ProjectStore) FindByProcoreID(ctx context.Context, procoreID string) (*models.Project, error) {
	return s.find(ctx, &models.Project{ProcoreID: procoreID})
}

func (s *ProjectStore) All(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := s.preloaded(ctx).Order("id").Find(&out).Error
	return out, err
}

// FindNeedingHSUpdate feeds the sweep: every project whose Procore side
// changed since the last successful HubSpot push.
func (s *ProjectStore) FindNeedingHSUpdate(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := s.preloaded(ctx).Where("needs_hs_update = ?", true).Find(&out).Error
	return out, err
}

func (s *ProjectStore) Create(ctx context.Context, p *models.Project) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *ProjectStore) Save(ctx context.Context, p *models.Project) error {
	return s.db.WithContext(ctx).Omit("Contacts").Save(p).Error
}

// ReplaceContacts rewrites the project's associated-contact set.
func (s *ProjectStore) ReplaceContacts(ctx context.Context, p *models.Project, contacts []*models.Contact) error {
	return s.db.WithContext(ctx).Model(p).Association("Contacts").Replace(contacts)
}

// ClearNeedsHSUpdate marks a successful push back to HubSpot.
func (s *ProjectStore) ClearNeedsHSUpdate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", id).
		Update("needs_hs_update", false).Error
}
