package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"girder/config"
	"girder/internal/creds"
)

// AuthProvider yields a ready Authorization header value for an account.
type AuthProvider interface {
	AuthHeader(ctx context.Context, accountID uint, system creds.System) (string, error)
}

// Client is a thin typed wrapper over the CRM v3 REST API. Every method
// resolves the bearer token through the credential manager, so callers
// never handle raw tokens.
type Client struct {
	baseURL string
	auth    AuthProvider
	hc      *http.Client
}

func NewClient(cfg *config.Config, auth AuthProvider) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.HubSpot.APIURL, "/"),
		auth:    auth,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, accountID uint, method, path string, query url.Values, body, out any) error {
	header, err := c.auth.AuthHeader(ctx, accountID, creds.SystemHubSpot)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hubspot %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// --- objects ---

func (c *Client) GetDeal(ctx context.Context, accountID uint, dealID string, withAssociations bool) (*Deal, error) {
	q := url.Values{}
	q.Set("properties", strings.Join(dealProperties, ","))
	if withAssociations {
		q.Set("associations", "companies,contacts")
	}
	var d Deal
	if err := c.do(ctx, accountID, http.MethodGet, "/crm/v3/objects/deals/"+dealID, q, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

var dealProperties = []string{
	"dealname", "amount", "dealstage", "closedate", "start_date", "description",
	"project_number", "project_address", "project_city", "project_state",
	"project_zip", "department", "office_location", "hubspot_owner_id",
	"create_in_procore", "procore_refresh",
}

func (c *Client) UpdateDeal(ctx context.Context, accountID uint, dealID string, props map[string]string) error {
	return c.do(ctx, accountID, http.MethodPatch, "/crm/v3/objects/deals/"+dealID, nil,
		objectEnvelope{Properties: props}, nil)
}

func (c *Client) GetCompany(ctx context.Context, accountID uint, companyID string) (*Company, error) {
	q := url.Values{}
	q.Set("properties", "name,phone,mobilephone,address,address2,city,state,zip,country,email,fax,lifecyclestage,type")
	var co Company
	if err := c.do(ctx, accountID, http.MethodGet, "/crm/v3/objects/companies/"+companyID, q, nil, &co); err != nil {
		return nil, err
	}
	return &co, nil
}

func (c *Client) CreateCompany(ctx context.Context, accountID uint, props map[string]string) (*Company, error) {
	var co Company
	if err := c.do(ctx, accountID, http.MethodPost, "/crm/v3/objects/companies", nil,
		objectEnvelope{Properties: props}, &co); err != nil {
		return nil, err
	}
	return &co, nil
}

func (c *Client) UpdateCompany(ctx context.Context, accountID uint, companyID string, props map[string]string) error {
	return c.do(ctx, accountID, http.MethodPatch, "/crm/v3/objects/companies/"+companyID, nil,
		objectEnvelope{Properties: props}, nil)
}

// SearchCompaniesByName does an exact-name search and returns all hits.
func (c *Client) SearchCompaniesByName(ctx context.Context, accountID uint, name string) ([]Company, error) {
	req := newSearch("name", "EQ", name, []string{"name", "city", "state", "lifecyclestage"})
	var resp searchResponse[Company]
	if err := c.do(ctx, accountID, http.MethodPost, "/crm/v3/objects/companies/search", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) GetContact(ctx context.Context, accountID uint, contactID string) (*Contact, error) {
	q := url.Values{}
	q.Set("properties", "firstname,lastname,email,phone,mobilephone,fax,jobtitle,address,city,state,zip,country")
	q.Set("associations", "companies")
	var ct Contact
	if err := c.do(ctx, accountID, http.MethodGet, "/crm/v3/objects/contacts/"+contactID, q, nil, &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

func (c *Client) CreateContact(ctx context.Context, accountID uint, props map[string]string) (*Contact, error) {
	var ct Contact
	if err := c.do(ctx, accountID, http.MethodPost, "/crm/v3/objects/contacts", nil,
		objectEnvelope{Properties: props}, &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

func (c *Client) UpdateContact(ctx context.Context, accountID uint, contactID string, props map[string]string) error {
	return c.do(ctx, accountID, http.MethodPatch, "/crm/v3/objects/contacts/"+contactID, nil,
		objectEnvelope{Properties: props}, nil)
}

func (c *Client) GetOwner(ctx context.Context, accountID uint, ownerID string) (*Owner, error) {
	var o Owner
	if err := c.do(ctx, accountID, http.MethodGet, "/crm/v3/owners/"+ownerID, nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// --- associations ---

func (c *Client) GetAssociations(ctx context.Context, accountID uint, fromType, fromID, toType string) ([]AssocRef, error) {
	var resp struct {
		Results []AssocRef `json:"results"`
	}
	path := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/%s", fromType, fromID, toType)
	if err := c.do(ctx, accountID, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Associate links two objects with the portal default association type.
func (c *Client) Associate(ctx context.Context, accountID uint, fromType, fromID, toType, toID string) error {
	path := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/default/%s/%s", fromType, fromID, toType, toID)
	return c.do(ctx, accountID, http.MethodPut, path, nil, nil, nil)
}

// --- custom objects ---

func (c *Client) CreateObject(ctx context.Context, accountID uint, objectType string, props map[string]string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, accountID, http.MethodPost, "/crm/v3/objects/"+objectType, nil,
		objectEnvelope{Properties: props}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) SearchObjects(ctx context.Context, accountID uint, objectType, property, value string, props []string) ([]DocumentObject, error) {
	req := newSearch(property, "EQ", value, props)
	var resp searchResponse[DocumentObject]
	if err := c.do(ctx, accountID, http.MethodPost, "/crm/v3/objects/"+objectType+"/search", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// --- notes ---

func (c *Client) CreateNote(ctx context.Context, accountID uint, props map[string]string) (*Note, error) {
	var n Note
	if err := c.do(ctx, accountID, http.MethodPost, "/crm/v3/objects/notes", nil,
		objectEnvelope{Properties: props}, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) GetNote(ctx context.Context, accountID uint, noteID string) (*Note, error) {
	q := url.Values{}
	q.Set("properties", "hs_note_body,hs_timestamp,hs_attachment_ids")
	var n Note
	if err := c.do(ctx, accountID, http.MethodGet, "/crm/v3/objects/notes/"+noteID, q, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// AssociateNoteWithObject links a note to a custom object using an
// explicit association type id.
func (c *Client) AssociateNoteWithObject(ctx context.Context, accountID uint, noteID, objectType, objectID, assocTypeID string) error {
	body := []map[string]any{{
		"associationCategory": "USER_DEFINED",
		"associationTypeId":   assocTypeID,
	}}
	path := fmt.Sprintf("/crm/v4/objects/notes/%s/associations/%s/%s", noteID, objectType, objectID)
	return c.do(ctx, accountID, http.MethodPut, path, nil, body, nil)
}

// --- files ---

func (c *Client) GetFile(ctx context.Context, accountID uint, fileID string) (*File, error) {
	var f File
	if err := c.do(ctx, accountID, http.MethodGet, "/files/v3/files/"+fileID, nil, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetSignedURL resolves a short-lived public download URL for a file.
func (c *Client) GetSignedURL(ctx context.Context, accountID uint, fileID string) (string, error) {
	var resp signedURLResponse
	if err := c.do(ctx, accountID, http.MethodGet, "/files/v3/files/"+fileID+"/signed-url", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Download fetches a signed URL; no authorization is attached since the
// signature in the URL is the credential.
func (c *Client) Download(ctx context.Context, signedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hubspot file download: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// UploadFile pushes raw bytes into the file manager.
func (c *Client) UploadFile(ctx context.Context, accountID uint, folderID, name string, data []byte) (*File, error) {
	header, err := c.auth.AuthHeader(ctx, accountID, creds.SystemHubSpot)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	opts, _ := json.Marshal(map[string]string{"access": "PRIVATE"})
	_ = mw.WriteField("options", string(opts))
	if folderID != "" {
		_ = mw.WriteField("folderId", folderID)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/v3/files", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hubspot file upload: status %d: %s", resp.StatusCode, snippet)
	}
	var f File
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// --- account ---

// GetAccountInfo identifies the portal behind the account's token.
func (c *Client) GetAccountInfo(ctx context.Context, accountID uint) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.do(ctx, accountID, http.MethodGet, "/account-info/v3/details", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func newSearch(property, operator, value string, props []string) searchRequest {
	var req searchRequest
	req.FilterGroups = append(req.FilterGroups, struct {
		Filters []searchFilter `json:"filters"`
	}{Filters: []searchFilter{{PropertyName: property, Operator: operator, Value: value}}})
	req.Properties = props
	req.Limit = 100
	return req
}
