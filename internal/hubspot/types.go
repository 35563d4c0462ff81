package hubspot

// CRM v3 wire types. Properties come back as strings regardless of their
// portal-side type; parsing to numbers/dates happens in the reconciler.

type DealProperties struct {
	DealName           string `json:"dealname,omitempty"`
	Amount             string `json:"amount,omitempty"`
	DealStage          string `json:"dealstage,omitempty"`
	CloseDate          string `json:"closedate,omitempty"`
	StartDate          string `json:"start_date,omitempty"`
	Description        string `json:"description,omitempty"`
	ProjectNumber      string `json:"project_number,omitempty"`
	ProjectAddress     string `json:"project_address,omitempty"`
	ProjectCity        string `json:"project_city,omitempty"`
	ProjectState       string `json:"project_state,omitempty"`
	ProjectZip         string `json:"project_zip,omitempty"`
	Department         string `json:"department,omitempty"`
	OfficeLocation     string `json:"office_location,omitempty"`
	HubSpotOwnerID     string `json:"hubspot_owner_id,omitempty"`
	CreateInProcore    string `json:"create_in_procore,omitempty"`
	ProcoreRefresh     string `json:"procore_refresh,omitempty"`
	ProcoreStage       string `json:"procore_stage,omitempty"`
	ProcoreTotalValue  string `json:"procore_total_value,omitempty"`
	ProcoreEstValue    string `json:"procore_estimated_value,omitempty"`
	ProcoreEstStart    string `json:"procore_estimated_start_date,omitempty"`
	ProcoreEstFinish   string `json:"procore_estimated_completion_date,omitempty"`
	ProcoreProjFinish  string `json:"procore_projected_finish_date,omitempty"`
	ProcoreActualStart string `json:"procore_actual_start_date,omitempty"`
}

type Deal struct {
	ID           string              `json:"id"`
	Properties   DealProperties      `json:"properties"`
	Associations map[string]AssocSet `json:"associations,omitempty"`
}

type AssocSet struct {
	Results []AssocRef `json:"results"`
}

type AssocRef struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

type CompanyProperties struct {
	Name           string `json:"name,omitempty"`
	Phone          string `json:"phone,omitempty"`
	MobilePhone    string `json:"mobilephone,omitempty"`
	Address        string `json:"address,omitempty"`
	Address2       string `json:"address2,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	Zip            string `json:"zip,omitempty"`
	Country        string `json:"country,omitempty"`
	Email          string `json:"email,omitempty"`
	Fax            string `json:"fax,omitempty"`
	LifecycleStage string `json:"lifecyclestage,omitempty"`
	CompanyType    string `json:"type,omitempty"`
}

type Company struct {
	ID         string            `json:"id"`
	Properties CompanyProperties `json:"properties"`
}

type ContactProperties struct {
	FirstName   string `json:"firstname,omitempty"`
	LastName    string `json:"lastname,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	MobilePhone string `json:"mobilephone,omitempty"`
	Fax         string `json:"fax,omitempty"`
	JobTitle    string `json:"jobtitle,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Country     string `json:"country,omitempty"`
}

type Contact struct {
	ID           string              `json:"id"`
	Properties   ContactProperties   `json:"properties"`
	Associations map[string]AssocSet `json:"associations,omitempty"`
}

type Owner struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// objectEnvelope is the generic create/update body for any CRM object.
type objectEnvelope struct {
	Properties map[string]string `json:"properties"`
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchRequest struct {
	FilterGroups []struct {
		Filters []searchFilter `json:"filters"`
	} `json:"filterGroups"`
	Properties []string `json:"properties,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

type searchResponse[T any] struct {
	Total   int `json:"total"`
	Results []T `json:"results"`
}

// DocumentObject is the portal-defined custom object mirroring a Procore
// document. Its type id comes from configuration.
type DocumentObject struct {
	ID         string             `json:"id"`
	Properties DocumentProperties `json:"properties"`
}

type DocumentProperties struct {
	FileName     string `json:"file_name,omitempty"`
	FileURL      string `json:"file_url,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	CreateDate   string `json:"create_date,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
}

type Note struct {
	ID         string         `json:"id"`
	Properties NoteProperties `json:"properties"`
}

type NoteProperties struct {
	NoteBody      string `json:"hs_note_body,omitempty"`
	Timestamp     string `json:"hs_timestamp,omitempty"`
	AttachmentIDs string `json:"hs_attachment_ids,omitempty"`
}

// File is the file-manager record behind a note attachment.
type File struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	URL       string `json:"url"`
}

type signedURLResponse struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	ExpiresAt int64  `json:"expiresAt"`
}

// AccountInfo identifies the portal behind an access token.
type AccountInfo struct {
	PortalID int64 `json:"portalId"`
}

// WebhookEvent is one entry of the batched webhook POST body.
type WebhookEvent struct {
	EventID          int64  `json:"eventId"`
	SubscriptionType string `json:"subscriptionType"`
	PortalID         int64  `json:"portalId"`
	ObjectID         int64  `json:"objectId"`
	PropertyName     string `json:"propertyName"`
	PropertyValue    string `json:"propertyValue"`
	ChangeSource     string `json:"changeSource"`
	ChangeFlag       string `json:"changeFlag"`
	AttemptNumber    int    `json:"attemptNumber"`
	OccurredAt       int64  `json:"occurredAt"`
}
