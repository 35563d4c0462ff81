package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Project is the central entity: a HubSpot Deal on one side, a Procore
// Project on the other. NeedsHSUpdate marks Procore-originated changes
// that the sweep must push back to HubSpot; it is cleared only after a
// successful push.
type Project struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	HSID      string `gorm:"index;size:64" json:"hs_id"`
	ProcoreID string `gorm:"index;size:64" json:"procore_id"`

	Name          string     `gorm:"size:255" json:"name"`
	Amount        float64    `json:"amount"`
	Code          string     `gorm:"size:64" json:"code"`
	Description   string     `json:"description"`
	ProjectNumber string     `gorm:"size:64" json:"project_number"`
	CloseDate     *time.Time `json:"close_date"`
	StartDate     *time.Time `json:"start_date"`

	DealStage    string `gorm:"size:64" json:"dealstage"`
	InitialStage string `gorm:"size:64" json:"initial_stage"` // dealstage at first sight
	ProcoreStage string `gorm:"size:64" json:"procore_stage"`

	Department  string                      `gorm:"size:255" json:"department"`
	Departments datatypes.JSONSlice[string] `json:"departments"`
	Types       datatypes.JSONSlice[string] `json:"types"`

	Address   string `gorm:"size:255" json:"address"`
	City      string `gorm:"size:255" json:"city"`
	State     string `gorm:"size:64" json:"state"`
	Zip       string `gorm:"size:32" json:"zip"`
	Latitude  string `gorm:"size:32" json:"latitude"`
	Longitude string `gorm:"size:32" json:"longitude"`
	Phone     string `gorm:"size:64" json:"phone"`
	Timezone  string `gorm:"size:64" json:"timezone"`

	OfficeName string `gorm:"size:255" json:"office_name"`

	HSOwnerID    string `gorm:"size:64" json:"hs_owner_id"`
	HSOwnerEmail string `gorm:"size:255" json:"hs_owner_email"`

	// Procore-side mirror fields, pushed to the deal by the sweep.
	// Dates are unix millis; 0 means unset.
	ProcoreTotalValue              float64 `json:"procore_total_value"`
	ProcoreEstimatedValue          float64 `json:"procore_estimated_value"`
	ProcoreEstimatedStartDate      int64   `json:"procore_estimated_start_date"`
	ProcoreEstimatedCompletionDate int64   `json:"procore_estimated_completion_date"`
	ProcoreProjectedFinishDate     int64   `json:"procore_projected_finish_date"`
	ProcoreActualStartDate         int64   `json:"procore_actual_start_date"`

	ProcoreFolderID string `gorm:"size:64" json:"procore_folder_id"`
	NeedsHSUpdate   bool   `gorm:"index" json:"needs_hs_update"`

	ContactID       *uint          `json:"contact_id"`
	Contact         *Contact       `gorm:"foreignKey:ContactID" json:"contact,omitempty"`
	CompanyID       *uint          `json:"company_id"`
	Company         *Company       `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	OfficeID        *uint          `json:"office_id"`
	Office          *Office        `gorm:"foreignKey:OfficeID" json:"office,omitempty"`
	PrimeContractID *uint          `json:"prime_contract_id"`
	PrimeContract   *PrimeContract `gorm:"foreignKey:PrimeContractID" json:"prime_contract,omitempty"`

	Contacts []*Contact `gorm:"many2many:project_contacts" json:"contacts,omitempty"`
}
