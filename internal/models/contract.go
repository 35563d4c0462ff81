package models

import (
	"time"

	"gorm.io/gorm"
)

// PrimeContract is the 1:1 commercial contract for a Project.
type PrimeContract struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	HSID      string `gorm:"index;size:64" json:"hs_id"`
	ProcoreID string `gorm:"index;size:64" json:"procore_id"`

	Title       string  `gorm:"size:255" json:"title"`
	Description string  `json:"description"`
	Status      string  `gorm:"size:64" json:"status"`
	HSStatus    string  `gorm:"size:64" json:"hs_status"` // dealstage at contract creation
	GrandTotal  float64 `json:"grand_total"`

	// Unix millis; 0 means unset.
	ContractDate      int64 `json:"contract_date"`
	ContractStartDate int64 `json:"contract_start_date"`

	ProjectID *uint    `json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	CompanyID *uint    `json:"company_id"`
	Company   *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	ContactID *uint    `json:"contact_id"`
	Contact   *Contact `gorm:"foreignKey:ContactID" json:"contact,omitempty"`
}
