package procore

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
	"girder/internal/models"
)

// AuthProvider yields a ready Authorization header value for an account.
type AuthProvider interface {
	AuthHeader(ctx context.Context, accountID uint, system creds.System) (string, error)
}

// Client wraps the Procore REST API. Every call carries the account's
// active company id, both as a query parameter and as the
// Procore-Company-Id header the newer endpoints expect.
type Client struct {
	baseURL string
	auth    AuthProvider
	hc      *http.Client
}

func NewClient(cfg *config.Config, auth AuthProvider) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Procore.APIURL, "/"),
		auth:    auth,
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, account *models.Account, method, path string, query url.Values, body, out any) error {
	header, err := c.auth.AuthHeader(ctx, account.ID, creds.SystemProcore)
	if err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	if account.ActiveProcoreCompanyID != "" {
		query.Set("company_id", account.ActiveProcoreCompanyID)
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
	if account.ActiveProcoreCompanyID != "" {
		req.Header.Set("Procore-Company-Id", account.ActiveProcoreCompanyID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("procore %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("procore %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListCompanies enumerates the companies the token can act for; the
// OAuth callback records the first as the active company.
func (c *Client) ListCompanies(ctx context.Context, account *models.Account) ([]remoteCompany, error) {
	var out []remoteCompany
	err := c.do(ctx, account, http.MethodGet, "/rest/v1.0/companies", nil, nil, &out)
	return out, err
}

// --- projects ---

func (c *Client) CreateProject(ctx context.Context, account *models.Account, payload projectPayload) (*remoteProject, error) {
	var out remoteProject
	if err := c.do(ctx, account, http.MethodPost, "/rest/v1.0/projects", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, account *models.Account, projectID string, payload projectPayload) error {
	return c.do(ctx, account, http.MethodPatch, "/rest/v1.0/projects/"+projectID, nil, payload, nil)
}

func (c *Client) GetProject(ctx context.Context, account *models.Account, projectID string) (*remoteProject, error) {
	var out remoteProject
	if err := c.do(ctx, account, http.MethodGet, "/rest/v1.0/projects/"+projectID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOffices(ctx context.Context, account *models.Account) ([]remoteOffice, error) {
	var out []remoteOffice
	err := c.do(ctx, account, http.MethodGet, "/rest/v1.0/offices", nil, nil, &out)
	return out, err
}

// --- vendors ---

func (c *Client) SearchVendors(ctx context.Context, account *models.Account, name string) ([]remoteVendor, error) {
	q := url.Values{}
	q.Set("filters[search]", name)
	var out []remoteVendor
	err := c.do(ctx, account, http.MethodGet, "/rest/v1.0/vendors", q, nil, &out)
	return out, err
}

func (c *Client) GetVendor(ctx context.Context, account *models.Account, vendorID string) (*remoteVendor, error) {
	var out remoteVendor
	if err := c.do(ctx, account, http.MethodGet, "/rest/v1.0/vendors/"+vendorID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateVendor(ctx context.Context, account *models.Account, payload vendorPayload) (*remoteVendor, error) {
	var out remoteVendor
	if err := c.do(ctx, account, http.MethodPost, "/rest/v1.0/vendors", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateVendor(ctx context.Context, account *models.Account, vendorID string, payload vendorPayload) error {
	return c.do(ctx, account, http.MethodPatch, "/rest/v1.0/vendors/"+vendorID, nil, payload, nil)
}

func (c *Client) AddVendorToProject(ctx context.Context, account *models.Account, projectID, vendorID string) error {
	path := fmt.Sprintf("/rest/v1.0/projects/%s/vendors/%s/actions/add", projectID, vendorID)
	return c.do(ctx, account, http.MethodPost, path, nil, nil, nil)
}

// --- users ---

func (c *Client) SearchUsers(ctx context.Context, account *models.Account, email string) ([]remoteUser, error) {
	q := url.Values{}
	q.Set("filters[search]", email)
	path := fmt.Sprintf("/rest/v1.0/companies/%s/users", account.ActiveProcoreCompanyID)
	var out []remoteUser
	err := c.do(ctx, account, http.MethodGet, path, q, nil, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, account *models.Account, userID string) (*remoteUser, error) {
	path := fmt.Sprintf("/rest/v1.0/companies/%s/users/%s", account.ActiveProcoreCompanyID, userID)
	var out remoteUser
	if err := c.do(ctx, account, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateUser(ctx context.Context, account *models.Account, payload userPayload) (*remoteUser, error) {
	var out remoteUser
	if err := c.do(ctx, account, http.MethodPost, "/rest/v1.0/users", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, account *models.Account, userID string, payload userPayload) error {
	path := fmt.Sprintf("/rest/v1.3/companies/%s/users/%s", account.ActiveProcoreCompanyID, userID)
	return c.do(ctx, account, http.MethodPatch, path, nil, payload, nil)
}

// AddUserToProject grants project access under a permission template.
func (c *Client) AddUserToProject(ctx context.Context, account *models.Account, projectID, userID string, permissionTemplateID int64) error {
	path := fmt.Sprintf("/rest/v1.0/projects/%s/users/%s/actions/add", projectID, userID)
	body := userPayload{User: userFields{PermissionTemplateID: &permissionTemplateID, IsActive: true}}
	return c.do(ctx, account, http.MethodPost, path, nil, body, nil)
}

// --- prime contracts ---

func (c *Client) CreatePrimeContract(ctx context.Context, account *models.Account, payload contractPayload) (*remoteContract, error) {
	var out remoteContract
	if err := c.do(ctx, account, http.MethodPost, "/rest/v1.0/prime_contract", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePrimeContract(ctx context.Context, account *models.Account, contractID string, payload contractPayload) error {
	return c.do(ctx, account, http.MethodPatch, "/rest/v1.0/prime_contract/"+contractID, nil, payload, nil)
}

// --- documents ---

func (c *Client) ListProjectDocuments(ctx context.Context, account *models.Account, projectID string) ([]remoteDocument, error) {
	q := url.Values{}
	q.Set("view", "extended")
	q.Set("filters[document_type]", "file")
	path := fmt.Sprintf("/rest/v1.0/projects/%s/documents", projectID)
	var out []remoteDocument
	err := c.do(ctx, account, http.MethodGet, path, q, nil, &out)
	return out, err
}

func (c *Client) CreateFolder(ctx context.Context, account *models.Account, projectID, name string) (int64, error) {
	q := url.Values{}
	q.Set("project_id", projectID)
	var payload folderPayload
	payload.Folder.Name = name
	payload.Folder.ExplicitPermissions = true
	var out remoteFolder
	if err := c.do(ctx, account, http.MethodPost, "/rest/v1.0/folders", q, payload, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// UploadFile sends one staged file into a project folder.
func (c *Client) UploadFile(ctx context.Context, account *models.Account, projectID, folderID, name string, data []byte) (int64, error) {
	header, err := c.auth.AuthHeader(ctx, account.ID, creds.SystemProcore)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file[data]", name)
	if err != nil {
		return 0, err
	}
	if _, err := fw.Write(data); err != nil {
		return 0, err
	}
	_ = mw.WriteField("file[parent_id]", folderID)
	_ = mw.WriteField("file[name]", name)
	if err := mw.Close(); err != nil {
		return 0, err
	}

	q := url.Values{}
	q.Set("company_id", account.ActiveProcoreCompanyID)
	q.Set("project_id", projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rest/v1.0/files?"+q.Encode(), &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("procore file upload: status %d: %s", resp.StatusCode, snippet)
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Download fetches a document version URL. The URL is pre-signed, so no
// authorization header is attached.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("procore file download: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// --- webhooks ---

func (c *Client) RegisterWebhook(ctx context.Context, account *models.Account, payload hookPayload) error {
	return c.do(ctx, account, http.MethodPost, "/rest/v1.0/webhooks/hooks", nil, payload, nil)
}
