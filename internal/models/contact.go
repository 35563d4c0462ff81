package models

import (
	"time"

	"gorm.io/gorm"
)

// Contact mirrors a HubSpot Contact / Procore User.
type Contact struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	HSID      string `gorm:"index;size:64" json:"hs_id"`
	ProcoreID string `gorm:"index;size:64" json:"procore_id"`

	FirstName   string `gorm:"size:255" json:"first_name"`
	LastName    string `gorm:"size:255" json:"last_name"`
	Email       string `gorm:"index;size:255" json:"email"`
	Phone       string `gorm:"size:64" json:"phone"`
	MobilePhone string `gorm:"size:64" json:"mobile_phone"`
	Fax         string `gorm:"size:64" json:"fax"`
	JobTitle    string `gorm:"size:255" json:"job_title"`
	Address     string `gorm:"size:255" json:"address"`
	City        string `gorm:"size:255" json:"city"`
	Zip         string `gorm:"size:32" json:"zip"`
	StateCode   string `gorm:"size:8" json:"state_code"`
	CountryCode string `gorm:"size:8" json:"country_code"`

	CompanyID *uint    `json:"company_id"`
	Company   *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

// Initials as Procore wants them on user updates.
func (c *Contact) Initials() string {
	var s string
	if c.FirstName != "" {
		s += c.FirstName[:1]
	}
	if c.LastName != "" {
		s += c.LastName[:1]
	}
	return s
}
