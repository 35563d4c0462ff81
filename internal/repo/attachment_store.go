package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"girder/internal/models"
)

type AttachmentStore struct{ db *gorm.DB }

func NewAttachmentStore(db *gorm.DB) *AttachmentStore { return &AttachmentStore{db: db} }

// FindByHSID gates creation of hubspot-origin attachments: one local row
// per (hubspot file id, project).
func (s *AttachmentStore) FindByHSID(ctx context.Context, projectID uint, hsID string) (*models.Attachment, error) {
	return s.find(ctx, &models.Attachment{ProjectID: projectID, HSID: hsID})
}

// FindByProcoreID is the same gate for procore-origin attachments.
func (s *AttachmentStore) FindByProcoreID(ctx context.Context, projectID uint, procoreID string) (*models.Attachment, error) {
	return s.find(ctx, &models.Attachment{ProjectID: projectID, ProcoreID: procoreID})
}

func (s *AttachmentStore) find(ctx context.Context, where *models.Attachment) (*models.Attachment, error) {
	var a models.Attachment
	err := s.db.WithContext(ctx).Preload("Project").Where(where).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

func (s *AttachmentStore) FindByProject(ctx context.Context, projectID uint) ([]models.Attachment, error) {
	var out []models.Attachment
	err := s.db.WithContext(ctx).Preload("Project").
		Where(&models.Attachment{ProjectID: projectID}).Find(&out).Error
	return out, err
}

// FindMissingProcoreID lists the project's attachments not yet pushed
// to Procore; the next file sweep retries them.
func (s *AttachmentStore) FindMissingProcoreID(ctx context.Context, projectID uint) ([]*models.Attachment, error) {
	var out []*models.Attachment
	err := s.db.WithContext(ctx).Preload("Project").
		Where("project_id = ? AND procore_id = ''", projectID).Find(&out).Error
	return out, err
}

// FindMissingDocumentObject lists the project's procore-origin
// attachments that still need a HubSpot document object created.
func (s *AttachmentStore) FindMissingDocumentObject(ctx context.Context, projectID uint) ([]*models.Attachment, error) {
	var out []*models.Attachment
	err := s.db.WithContext(ctx).Preload("Project").
		Where("project_id = ? AND hs_document_object_id = '' AND procore_id <> ''", projectID).Find(&out).Error
	return out, err
}

func (s *AttachmentStore) Create(ctx context.Context, a *models.Attachment) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *AttachmentStore) Save(ctx context.Context, a *models.Attachment) error {
	return s.db.WithContext(ctx).Save(a).Error
}
