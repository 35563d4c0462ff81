package models

import (
	"time"

	"gorm.io/gorm"
)

// Office is a named location grouping scoped to an Account, created
// lazily on first reference by name.
type Office struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProcoreID string `gorm:"index;size:64" json:"procore_id"`
	Name      string `gorm:"index;size:255" json:"name"`

	Address     string `gorm:"size:255" json:"address"`
	Division    string `gorm:"size:255" json:"division"`
	CountryCode string `gorm:"size:8" json:"country_code"`
	StateCode   string `gorm:"size:8" json:"state_code"`
	Zip         string `gorm:"size:32" json:"zip"`
	Phone       string `gorm:"size:64" json:"phone"`
	Fax         string `gorm:"size:64" json:"fax"`

	AccountID uint     `gorm:"index" json:"account_id"`
	Account   *Account `gorm:"foreignKey:AccountID" json:"-"`
}
