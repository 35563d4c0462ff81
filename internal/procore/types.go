package procore

import (
	"strconv"
	"strings"
)

// Procore REST wire types. Only the fields the integration touches are
// declared; unknown fields pass through untouched.

type remoteCompany struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type remoteProject struct {
	ID                      int64       `json:"id"`
	Name                    string      `json:"name"`
	TotalValue              flexFloat   `json:"total_value"`
	EstimatedValue          flexFloat   `json:"estimated_value"`
	EstimatedStartDate      string      `json:"estimated_start_date"`
	EstimatedCompletionDate string      `json:"estimated_completion_date"`
	ProjectedFinishDate     string      `json:"projected_finish_date"`
	ActualStartDate         string      `json:"actual_start_date"`
	ProjectStage            remoteStage `json:"project_stage"`
}

// flexFloat tolerates the API returning money fields as either a JSON
// number or a quoted decimal string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type remoteStage struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type projectFields struct {
	Active            bool    `json:"active"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	Address           string  `json:"address,omitempty"`
	City              string  `json:"city,omitempty"`
	Code              string  `json:"code,omitempty"`
	StateCode         string  `json:"state_code,omitempty"`
	CountryCode       string  `json:"country_code,omitempty"`
	StartDate         string  `json:"start_date,omitempty"`
	CompletionDate    string  `json:"completion_date,omitempty"`
	ProjectedFinish   string  `json:"projected_finish_date,omitempty"`
	EstimatedValue    float64 `json:"estimated_value,omitempty"`
	TotalValue        float64 `json:"total_value,omitempty"`
	Phone             string  `json:"phone,omitempty"`
	ProjectNumber     string  `json:"project_number,omitempty"`
	TimeZone          string  `json:"time_zone,omitempty"`
	TZName            string  `json:"tz_name,omitempty"`
	Zip               string  `json:"zip,omitempty"`
	Latitude          float64 `json:"latitude,omitempty"`
	Longitude         float64 `json:"longitude,omitempty"`
	OfficeID          *int64  `json:"office_id,omitempty"`
	ProjectStageID    int64   `json:"project_stage_id,omitempty"`
	ProjectTemplateID string  `json:"project_template_id,omitempty"`
	ProjectTypeID     *int64  `json:"project_type_id,omitempty"`
	DepartmentIDs     []int64 `json:"department_ids,omitempty"`
	ERPIntegrated     bool    `json:"erp_integrated,omitempty"`
}

type projectPayload struct {
	CompanyID string        `json:"company_id"`
	Project   projectFields `json:"project"`
}

type remoteOffice struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Division string `json:"division"`
}

type remoteVendor struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Address2      string `json:"address2"`
	City          string `json:"city"`
	Zip           string `json:"zip"`
	StateCode     string `json:"state_code"`
	CountryCode   string `json:"country_code"`
	BusinessPhone string `json:"business_phone"`
	EmailAddress  string `json:"email_address"`
	FaxNumber     string `json:"fax_number"`
}

type vendorFields struct {
	Name             string `json:"name"`
	TradeName        string `json:"trade_name,omitempty"`
	Address          string `json:"address,omitempty"`
	Address2         string `json:"address2,omitempty"`
	City             string `json:"city,omitempty"`
	Zip              string `json:"zip,omitempty"`
	StateCode        string `json:"state_code,omitempty"`
	CountryCode      string `json:"country_code,omitempty"`
	BusinessPhone    string `json:"business_phone,omitempty"`
	MobilePhone      string `json:"mobile_phone,omitempty"`
	FaxNumber        string `json:"fax_number,omitempty"`
	EmailAddress     string `json:"email_address,omitempty"`
	IsActive         bool   `json:"is_active"`
	AuthorizedBidder bool   `json:"authorized_bidder,omitempty"`
	Prequalified     bool   `json:"prequalified,omitempty"`
	PrimaryContactID *int64 `json:"primary_contact_id,omitempty"`
}

type vendorPayload struct {
	CompanyID string       `json:"company_id"`
	Vendor    vendorFields `json:"vendor"`
}

type remoteUser struct {
	ID            int64         `json:"id"`
	Login         string        `json:"login"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	EmailAddress  string        `json:"email_address"`
	JobTitle      string        `json:"job_title"`
	Address       string        `json:"address"`
	City          string        `json:"city"`
	Zip           string        `json:"zip"`
	StateCode     string        `json:"state_code"`
	CountryCode   string        `json:"country_code"`
	MobilePhone   string        `json:"mobile_phone"`
	BusinessPhone string        `json:"business_phone"`
	Vendor        *remoteVendor `json:"vendor,omitempty"`
}

type userFields struct {
	Login                string `json:"login,omitempty"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	JobTitle             string `json:"job_title,omitempty"`
	Address              string `json:"address,omitempty"`
	City                 string `json:"city,omitempty"`
	Zip                  string `json:"zip,omitempty"`
	StateCode            string `json:"state_code,omitempty"`
	CountryCode          string `json:"country_code,omitempty"`
	BusinessPhone        string `json:"business_phone,omitempty"`
	MobilePhone          string `json:"mobile_phone,omitempty"`
	FaxNumber            string `json:"fax_number,omitempty"`
	EmailAddress         string `json:"email_address"`
	IsActive             bool   `json:"is_active"`
	IsEmployee           bool   `json:"is_employee"`
	Initials             string `json:"initials,omitempty"`
	VendorID             *int64 `json:"vendor_id,omitempty"`
	PermissionTemplateID *int64 `json:"permission_template_id,omitempty"`
}

type userPayload struct {
	CompanyID string     `json:"company_id,omitempty"`
	User      userFields `json:"user"`
}

type contractFields struct {
	Number            string  `json:"number,omitempty"`
	Title             string  `json:"title,omitempty"`
	Status            string  `json:"status,omitempty"`
	Description       string  `json:"description,omitempty"`
	ContractDate      string  `json:"contract_date,omitempty"`
	ContractStartDate string  `json:"contract_start_date,omitempty"`
	ContractorID      int64   `json:"contractor_id,omitempty"`
	VendorID          *int64  `json:"vendor_id,omitempty"`
	Executed          bool    `json:"executed"`
	AccountingMethod  string  `json:"accounting_method,omitempty"`
	GrandTotal        float64 `json:"grand_total,omitempty"`
}

type contractPayload struct {
	ProjectID     string         `json:"project_id"`
	PrimeContract contractFields `json:"prime_contract"`
}

type remoteContract struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
}

type remoteDocument struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	DocumentType string              `json:"document_type"`
	NamePath     string              `json:"name_with_path"`
	CreatedAt    string              `json:"created_at"`
	CreatedBy    remoteDocAuthor     `json:"created_by"`
	FileVersions []remoteFileVersion `json:"file_versions"`
}

type remoteDocAuthor struct {
	Name string `json:"name"`
}

type remoteFileVersion struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type remoteFolder struct {
	ID int64 `json:"id"`
}

type folderPayload struct {
	Folder struct {
		Name                string `json:"name"`
		ExplicitPermissions bool   `json:"explicit_permissions"`
	} `json:"folder"`
}

type hookPayload struct {
	CompanyID string `json:"company_id"`
	Hook      struct {
		APIVersion         string            `json:"api_version"`
		Namespace          string            `json:"namespace"`
		DestinationURL     string            `json:"destination_url"`
		DestinationHeaders map[string]string `json:"destination_headers,omitempty"`
	} `json:"hook"`
}

// WebhookBody is the notification POSTed by Procore when a watched
// resource changes.
type WebhookBody struct {
	ResourceName string `json:"resource_name"`
	ResourceID   int64  `json:"resource_id"`
	ProjectID    int64  `json:"project_id"`
	CompanyID    int64  `json:"company_id"`
	EventType    string `json:"event_type"`
	UserID       int64  `json:"user_id"`
}
