package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	FileOriginHubSpot = "hubspot"
	FileOriginProcore = "procore"
)

// Attachment is a file in flight between the two systems. FileOrigin is
// set once at discovery and never changes; it decides which system is
// the download source and which is the upload target. The remote id on
// the opposite system stays empty until the push succeeds, which is what
// the re-scan sweeps key on.
type Attachment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	HSID      string `gorm:"index;size:64" json:"hs_id"`
	ProcoreID string `gorm:"index;size:64" json:"procore_id"`

	HSDocumentObjectID string `gorm:"size:64" json:"hs_document_object_id"`
	HSNoteID           string `gorm:"size:64" json:"hs_note_id"`

	Filename     string `gorm:"size:255" json:"filename"`
	Extension    string `gorm:"size:32" json:"extension"`
	URL          string `gorm:"size:1024" json:"url"`
	LocalPath    string `gorm:"size:1024" json:"local_path"`
	FileOrigin   string `gorm:"size:16;not null" json:"file_origin"` // hubspot|procore
	DocumentType string `gorm:"size:64" json:"document_type"`

	ProcoreCreateDate int64  `json:"procore_create_date"` // unix millis
	CreatedBy         string `gorm:"size:255" json:"created_by"`

	ProjectID uint     `gorm:"index" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}
