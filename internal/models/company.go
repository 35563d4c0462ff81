package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CompanyTypeCustomer = "customer"
	CompanyTypeVendor   = "vendor"
)

// Company exists in HubSpot as a Company and in Procore as a Vendor.
// Either remote id may be empty until the record is linked on that side.
type Company struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	HSID      string `gorm:"index;size:64" json:"hs_id"`
	ProcoreID string `gorm:"index;size:64" json:"procore_id"`

	Name          string `gorm:"index;size:255" json:"name"`
	BusinessPhone string `gorm:"size:64" json:"business_phone"`
	MobilePhone   string `gorm:"size:64" json:"mobile_phone"`
	Address       string `gorm:"size:255" json:"address"`
	Address2      string `gorm:"size:255" json:"address2"`
	City          string `gorm:"size:255" json:"city"`
	Zip           string `gorm:"size:32" json:"zip"`
	StateCode     string `gorm:"size:8" json:"state_code"`
	CountryCode   string `gorm:"size:8" json:"country_code"`
	EmailAddress  string `gorm:"size:255" json:"email_address"`
	FaxNumber     string `gorm:"size:64" json:"fax_number"`
	CompanyType   string `gorm:"size:32" json:"company_type"` // customer|vendor

	// Weak references: a contact may exist without being anyone's
	// primary contact.
	PrimaryContactID  *uint                     `json:"primary_contact_id"`
	PrimaryContact    *Contact                  `gorm:"foreignKey:PrimaryContactID" json:"primary_contact,omitempty"`
	BillingContactIDs datatypes.JSONSlice[uint] `json:"billing_contact_ids"`
}
