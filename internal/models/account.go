package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is one row per installation. It owns the OAuth state for both
// remote systems; token expiry must be checked before every authenticated
// call and a refresh replaces the whole triple at once.
type Account struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username string `gorm:"uniqueIndex;size:255;not null" json:"username"`
	Active   bool   `gorm:"default:true" json:"active"`

	HSPortalID     string     `gorm:"index;size:64" json:"hs_portal_id"`
	HSToken        string     `gorm:"size:1024" json:"-"`
	HSRefreshToken string     `gorm:"size:1024" json:"-"`
	HSTokenExpiry  *time.Time `json:"hs_token_expiry"`

	ProcoreToken        string     `gorm:"size:1024" json:"-"`
	ProcoreRefreshToken string     `gorm:"size:1024" json:"-"`
	ProcoreTokenExpiry  *time.Time `json:"procore_token_expiry"`

	ActiveProcoreCompanyID   string `gorm:"size:64" json:"active_procore_company_id"`
	ActiveProcoreCompanyName string `gorm:"size:255" json:"active_procore_company_name"`
}
