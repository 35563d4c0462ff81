package procore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"girder/config"
	"girder/internal/files"
	"girder/internal/logs"
	"girder/internal/models"
	"girder/internal/repo"
	"girder/internal/twin"
)

// Fixed ids from the production company's Procore configuration.
const (
	stageBidding = 562949953421313
	stageAwarded = 562949953426292

	contractorID = 562949955035561

	permissionTemplateContact = 562949953523743
	permissionTemplateAdmin   = 562949953523890

	projectTemplateID = "562949953547512"

	// Contacts employed by this vendor are flagged is_employee.
	internalVendorID = "562949955035561"

	defaultTimeZone = "Mountain Time (US & Canada)"
	defaultTZName   = "America/Denver"
)

// projectTypes maps the CRM department field to a Procore project type.
var projectTypes = map[string]int64{
	"Admin":               562949953529723,
	"Construction":        562949953529722,
	"Engineering":         562949953529721,
	"Geospatial":          562949953529720,
	"Maintenance":         562949953478270,
	"Material Purchase":   562949953572385,
	"Operations":          562949953572384,
	"Signal":              562949953530793,
	"Simulation Modeling": 562949953529718,
}

// projectDepartments maps the CRM type values to Procore departments.
var projectDepartments = map[string]int64{
	"Video":                 562949953445197,
	"Track Inspection":      562949953445196,
	"Simulation":            562949953445195,
	"Scheduled Maintenance": 562949953442817,
	"Rendering":             562949953445193,
	"Rehabilitation":        562949953445192,
	"Photogrammetric":       562949953445191,
	"Overhead":              562949953445190,
	"LIDAR":                 562949953445187,
	"New Construction":      562949953445189,
	"Ground Survey":         562949953445186,
	"GIS":                   562949953445185,
	"Feasibility":           562949953445184,
	"Emergency Maintenance": 562949953445183,
	"Design/Build":          562949953445182,
	"Design":                562949953445181,
	"Coordination":          562949953445180,
}

// ErrWritesDisabled is returned when a mutating call is attempted while
// the writes gate is closed.
var ErrWritesDisabled = errors.New("procore writes are disabled")

// CRMNotifier pushes construction-side changes back into the CRM. The
// concrete implementation lives in the hubspot package.
type CRMNotifier interface {
	SyncContact(ctx context.Context, account *models.Account, ct *models.Contact) error
	SyncCompany(ctx context.Context, account *models.Account, co *models.Company) error
}

type Reconciler struct {
	client      *Client
	cfg         *config.Config
	projects    *repo.ProjectStore
	companies   *repo.CompanyStore
	contacts    *repo.ContactStore
	contracts   *repo.ContractStore
	attachments *repo.AttachmentStore
	offices     *repo.OfficeStore
	storage     *files.Storage
	notifier    CRMNotifier

	sleep func(time.Duration)
}

type ReconcilerDeps struct {
	Client      *Client
	Config      *config.Config
	Projects    *repo.ProjectStore
	Companies   *repo.CompanyStore
	Contacts    *repo.ContactStore
	Contracts   *repo.ContractStore
	Attachments *repo.AttachmentStore
	Offices     *repo.OfficeStore
	Storage     *files.Storage
	Notifier    CRMNotifier
}

func NewReconciler(d ReconcilerDeps) *Reconciler {
	return &Reconciler{
		client:      d.Client,
		cfg:         d.Config,
		projects:    d.Projects,
		companies:   d.Companies,
		contacts:    d.Contacts,
		contracts:   d.Contracts,
		attachments: d.Attachments,
		offices:     d.Offices,
		storage:     d.Storage,
		notifier:    d.Notifier,
		sleep:       time.Sleep,
	}
}

// SetNotifier breaks the construction-time cycle between the two
// reconcilers; the server wires it after both exist.
func (r *Reconciler) SetNotifier(n CRMNotifier) { r.notifier = n }

// checkWrites is the safety gate around every mutating call. The
// allowlisted deal bypasses it so a single project can be exercised
// end to end with writes otherwise off.
func (r *Reconciler) checkWrites(p *models.Project) error {
	if p != nil && r.cfg.Procore.AllowlistDealID != "" && p.HSID == r.cfg.Procore.AllowlistDealID {
		return nil
	}
	if !r.cfg.Procore.WritesEnabled {
		return ErrWritesDisabled
	}
	return nil
}

// EnsureProject creates or updates the remote project for a canonical
// record.
func (r *Reconciler) EnsureProject(ctx context.Context, account *models.Account, p *models.Project) error {
	if p.ProcoreID == "" {
		return r.CreateProject(ctx, account, p)
	}
	return r.UpdateProjectRemote(ctx, account, p)
}

// CreateProject pushes a new project. The remote name is the project
// number glued to the deal name, the stage follows the deal stage, and
// the completion date is thirty days past close.
func (r *Reconciler) CreateProject(ctx context.Context, account *models.Account, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	if p.ProcoreID != "" {
		logs.Logger.Debugf("project %d already in procore (%s), skipping create", p.ID, p.ProcoreID)
		return nil
	}

	fields := r.projectFields(p)
	fields.CompletionDate = completionDate(p.CloseDate)
	fields.ProjectedFinish = fields.CompletionDate
	fields.EstimatedValue = p.Amount
	fields.ProjectTemplateID = projectTemplateID
	fields.TimeZone = defaultTimeZone
	fields.TZName = defaultTZName
	fields.ERPIntegrated = true
	if p.CloseDate != nil {
		fields.StartDate = p.CloseDate.UTC().Format("2006-01-02")
	}

	if p.OfficeID == nil {
		office, err := r.LookupOffice(ctx, account, p.OfficeName)
		if err != nil {
			logs.Logger.Warnf("office lookup %q failed: %v", p.OfficeName, err)
		} else if office != nil {
			p.OfficeID = &office.ID
			p.Office = office
		}
	}
	if p.Office != nil && p.Office.ProcoreID != "" {
		if id, err := strconv.ParseInt(p.Office.ProcoreID, 10, 64); err == nil {
			fields.OfficeID = &id
		}
	}

	created, err := r.client.CreateProject(ctx, account, projectPayload{
		CompanyID: account.ActiveProcoreCompanyID,
		Project:   fields,
	})
	if err != nil {
		return fmt.Errorf("create project %d: %w", p.ID, err)
	}

	p.ProcoreID = strconv.FormatInt(created.ID, 10)
	p.NeedsHSUpdate = true
	return r.projects.Save(ctx, p)
}

// UpdateProjectRemote pushes canonical changes onto an existing remote
// project.
func (r *Reconciler) UpdateProjectRemote(ctx context.Context, account *models.Account, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	if p.ProcoreID == "" {
		return fmt.Errorf("project %d has no procore id", p.ID)
	}

	fields := r.projectFields(p)
	fields.TotalValue = p.Amount
	fields.TimeZone = p.Timezone
	fields.Latitude = parseFloat(p.Latitude)
	fields.Longitude = parseFloat(p.Longitude)
	if p.StartDate != nil {
		fields.StartDate = p.StartDate.UTC().Format("2006-01-02")
	}

	return r.client.UpdateProject(ctx, account, p.ProcoreID, projectPayload{
		CompanyID: account.ActiveProcoreCompanyID,
		Project:   fields,
	})
}

// projectFields builds the payload parts common to create and update.
func (r *Reconciler) projectFields(p *models.Project) projectFields {
	f := projectFields{
		Active:        true,
		Name:          p.ProjectNumber + p.Name,
		Description:   p.Description,
		Address:       p.Address,
		City:          p.City,
		Code:          p.Code,
		StateCode:     p.State,
		CountryCode:   "US",
		Phone:         p.Phone,
		ProjectNumber: p.ProjectNumber,
		Zip:           p.Zip,
	}
	if p.DealStage == "closedwon" {
		f.ProjectStageID = stageAwarded
	} else {
		f.ProjectStageID = stageBidding
	}
	for _, t := range p.Types {
		if id, ok := projectDepartments[t]; ok {
			f.DepartmentIDs = append(f.DepartmentIDs, id)
		}
	}
	if id, ok := projectTypes[p.Department]; ok {
		f.ProjectTypeID = &id
	}
	return f
}

// completionDate is close date plus thirty days, the contractual
// default when no finish date is known.
func completionDate(closeDate *time.Time) string {
	if closeDate == nil {
		return ""
	}
	return closeDate.UTC().AddDate(0, 0, 30).Format("2006-01-02")
}

// LookupOffice mirrors the remote office directory into local rows and
// resolves one by name.
func (r *Reconciler) LookupOffice(ctx context.Context, account *models.Account, officeName string) (*models.Office, error) {
	if officeName == "" {
		return nil, nil
	}
	remote, err := r.client.ListOffices(ctx, account)
	if err != nil {
		return nil, err
	}
	for _, ro := range remote {
		procoreID := strconv.FormatInt(ro.ID, 10)
		existing, err := r.offices.FindByProcoreID(ctx, account.ID, procoreID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if err := r.offices.Create(ctx, &models.Office{
				AccountID: account.ID,
				Name:      ro.Name,
				Division:  ro.Division,
				ProcoreID: procoreID,
			}); err != nil {
				return nil, err
			}
		}
	}

	office, err := r.offices.FindByName(ctx, account.ID, officeName)
	if err != nil || office == nil {
		return office, err
	}
	if office.ProcoreID != "" {
		return office, nil
	}
	for _, ro := range remote {
		if ro.Name == officeName {
			office.ProcoreID = strconv.FormatInt(ro.ID, 10)
			return office, r.offices.Save(ctx, office)
		}
	}
	return office, nil
}

// CreateOrUpdateCompany ensures the vendor twin exists, then pushes the
// current directory fields onto it.
func (r *Reconciler) CreateOrUpdateCompany(ctx context.Context, account *models.Account, co *models.Company, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	if co == nil {
		return nil
	}

	id, created, err := twin.Ensure(ctx, co.ProcoreID,
		func(ctx context.Context) (string, error) {
			return r.findVendorID(ctx, account, co.Name)
		},
		func(ctx context.Context) (string, error) {
			return r.createVendor(ctx, account, co)
		},
	)
	if err != nil {
		return err
	}
	if co.ProcoreID != id {
		co.ProcoreID = id
		if err := r.companies.Save(ctx, co); err != nil {
			return err
		}
	}
	if created {
		return nil
	}
	return r.UpdateVendorInCompanyDirectory(ctx, account, co)
}

// findVendorID resolves a vendor by name search. Anything but exactly
// one hit counts as not found so the caller creates a fresh vendor.
func (r *Reconciler) findVendorID(ctx context.Context, account *models.Account, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	hits, err := r.client.SearchVendors(ctx, account, name)
	if err != nil {
		return "", err
	}
	if len(hits) != 1 {
		if len(hits) > 1 {
			logs.Logger.Warnf("vendor name %q ambiguous (%d hits), treating as not found", name, len(hits))
		}
		return "", nil
	}
	return strconv.FormatInt(hits[0].ID, 10), nil
}

func (r *Reconciler) createVendor(ctx context.Context, account *models.Account, co *models.Company) (string, error) {
	fields := vendorFields{
		Name:             co.Name,
		TradeName:        co.Name,
		Address:          co.Address,
		Address2:         co.Address2,
		City:             co.City,
		Zip:              co.Zip,
		BusinessPhone:    co.BusinessPhone,
		FaxNumber:        co.FaxNumber,
		EmailAddress:     co.EmailAddress,
		IsActive:         true,
		AuthorizedBidder: true,
		Prequalified:     true,
		CountryCode:      orDefault(co.CountryCode, "US"),
		StateCode:        co.StateCode,
	}
	created, err := r.client.CreateVendor(ctx, account, vendorPayload{
		CompanyID: account.ActiveProcoreCompanyID,
		Vendor:    fields,
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(created.ID, 10), nil
}

// UpdateVendorInCompanyDirectory pushes the full vendor record,
// including the primary contact link when it is mirrored.
func (r *Reconciler) UpdateVendorInCompanyDirectory(ctx context.Context, account *models.Account, co *models.Company) error {
	if co.ProcoreID == "" {
		return fmt.Errorf("company %d has no procore id", co.ID)
	}
	fields := vendorFields{
		Name:          co.Name,
		TradeName:     co.Name,
		Address:       co.Address,
		Address2:      co.Address2,
		City:          co.City,
		Zip:           co.Zip,
		BusinessPhone: co.BusinessPhone,
		MobilePhone:   co.MobilePhone,
		FaxNumber:     co.FaxNumber,
		EmailAddress:  co.EmailAddress,
		IsActive:      true,
		CountryCode:   orDefault(co.CountryCode, "US"),
		StateCode:     co.StateCode,
	}
	if co.PrimaryContact != nil && co.PrimaryContact.ProcoreID != "" {
		if id, err := strconv.ParseInt(co.PrimaryContact.ProcoreID, 10, 64); err == nil {
			fields.PrimaryContactID = &id
		}
	}
	return r.client.UpdateVendor(ctx, account, co.ProcoreID, vendorPayload{
		CompanyID: account.ActiveProcoreCompanyID,
		Vendor:    fields,
	})
}

// CreateOrUpdateContact ensures the user twin exists and pushes the
// current fields. The contact's company must already be mirrored; users
// cannot exist without a vendor.
func (r *Reconciler) CreateOrUpdateContact(ctx context.Context, account *models.Account, ct *models.Contact) error {
	if ct == nil {
		return nil
	}
	if ct.Company == nil || ct.Company.ProcoreID == "" {
		return fmt.Errorf("contact %d has no mirrored company", ct.ID)
	}

	id, created, err := twin.Ensure(ctx, ct.ProcoreID,
		func(ctx context.Context) (string, error) {
			return r.findUserID(ctx, account, ct.Email)
		},
		func(ctx context.Context) (string, error) {
			return r.createUser(ctx, account, ct)
		},
	)
	if err != nil {
		return err
	}
	if ct.ProcoreID != id {
		ct.ProcoreID = id
		if err := r.contacts.Save(ctx, ct); err != nil {
			return err
		}
	}
	if created {
		return nil
	}
	return r.updateUser(ctx, account, ct)
}

func (r *Reconciler) findUserID(ctx context.Context, account *models.Account, email string) (string, error) {
	if email == "" {
		return "", nil
	}
	hits, err := r.client.SearchUsers(ctx, account, email)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}
	return strconv.FormatInt(hits[0].ID, 10), nil
}

func (r *Reconciler) createUser(ctx context.Context, account *models.Account, ct *models.Contact) (string, error) {
	fields := userFields{
		Login:         ct.Email,
		FirstName:     ct.FirstName,
		LastName:      ct.LastName,
		JobTitle:      ct.JobTitle,
		Address:       ct.Address,
		City:          ct.City,
		Zip:           ct.Zip,
		BusinessPhone: ct.Phone,
		MobilePhone:   ct.MobilePhone,
		FaxNumber:     ct.Fax,
		EmailAddress:  ct.Email,
		IsActive:      true,
		IsEmployee:    ct.Company.ProcoreID == internalVendorID,
		CountryCode:   orDefault(ct.CountryCode, "US"),
		StateCode:     ct.StateCode,
	}
	if id, err := strconv.ParseInt(ct.Company.ProcoreID, 10, 64); err == nil {
		fields.VendorID = &id
	}
	created, err := r.client.CreateUser(ctx, account, userPayload{
		CompanyID: account.ActiveProcoreCompanyID,
		User:      fields,
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(created.ID, 10), nil
}

func (r *Reconciler) updateUser(ctx context.Context, account *models.Account, ct *models.Contact) error {
	fields := userFields{
		FirstName:    ct.FirstName,
		LastName:     ct.LastName,
		JobTitle:     ct.JobTitle,
		Address:      ct.Address,
		City:         ct.City,
		Zip:          ct.Zip,
		MobilePhone:  ct.Phone,
		FaxNumber:    ct.Fax,
		EmailAddress: ct.Email,
		IsActive:     true,
		IsEmployee:   ct.Company.ProcoreID == internalVendorID,
		Initials:     ct.Initials(),
		CountryCode:  orDefault(ct.CountryCode, "US"),
		StateCode:    ct.StateCode,
	}
	if id, err := strconv.ParseInt(ct.Company.ProcoreID, 10, 64); err == nil {
		fields.VendorID = &id
	}
	return r.client.UpdateUser(ctx, account, ct.ProcoreID, userPayload{User: fields})
}

// AddVendorToProject links the project's company into its directory.
func (r *Reconciler) AddVendorToProject(ctx context.Context, account *models.Account, co *models.Company, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	if co == nil || co.ProcoreID == "" || p.ProcoreID == "" {
		return fmt.Errorf("vendor association needs both procore ids (project %d)", p.ID)
	}
	return r.client.AddVendorToProject(ctx, account, p.ProcoreID, co.ProcoreID)
}

// AddContactToProject grants a mirrored contact access to the project
// under the standard contact permission template.
func (r *Reconciler) AddContactToProject(ctx context.Context, account *models.Account, ct *models.Contact, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	if ct == nil || ct.ProcoreID == "" {
		logs.Logger.Debugf("contact not mirrored yet, skipping project association")
		return nil
	}
	return r.client.AddUserToProject(ctx, account, p.ProcoreID, ct.ProcoreID, permissionTemplateContact)
}

// AddOwnerToProject resolves the deal owner by email in the remote user
// directory and grants admin access.
func (r *Reconciler) AddOwnerToProject(ctx context.Context, account *models.Account, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	if p.ProcoreID == "" || p.HSOwnerEmail == "" {
		return nil
	}
	hits, err := r.client.SearchUsers(ctx, account, p.HSOwnerEmail)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		logs.Logger.Warnf("no procore user for owner %s", p.HSOwnerEmail)
		return nil
	}
	ownerID := strconv.FormatInt(hits[0].ID, 10)
	return r.client.AddUserToProject(ctx, account, p.ProcoreID, ownerID, permissionTemplateAdmin)
}

// EnsurePrimeContract creates or updates the remote prime contract.
// Status is Draft once the deal is won, Out For Bid before that; the
// contract number is the project number suffixed " - 1".
func (r *Reconciler) EnsurePrimeContract(ctx context.Context, account *models.Account, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	pc := p.PrimeContract
	if pc == nil {
		return fmt.Errorf("project %d has no prime contract record", p.ID)
	}
	if p.ProcoreID == "" {
		return fmt.Errorf("project %d not in procore yet", p.ID)
	}

	status := "Out For Bid"
	if pc.HSStatus == "Draft" || p.DealStage == "closedwon" {
		status = "Draft"
	}
	fields := contractFields{
		Number:       fmt.Sprintf("%s - 1", p.ProjectNumber),
		Title:        pc.Title,
		Status:       status,
		Description:  p.Description,
		ContractorID: contractorID,
	}
	if pc.ContractDate != 0 {
		fields.ContractDate = time.UnixMilli(pc.ContractDate).UTC().Format("2006-01-02")
		fields.ContractStartDate = fields.ContractDate
	}
	if p.Company != nil && p.Company.ProcoreID != "" {
		if id, err := strconv.ParseInt(p.Company.ProcoreID, 10, 64); err == nil {
			fields.VendorID = &id
		}
	}

	if pc.ProcoreID != "" {
		return r.client.UpdatePrimeContract(ctx, account, pc.ProcoreID, contractPayload{
			ProjectID:     p.ProcoreID,
			PrimeContract: fields,
		})
	}

	fields.AccountingMethod = "amount"
	created, err := r.client.CreatePrimeContract(ctx, account, contractPayload{
		ProjectID:     p.ProcoreID,
		PrimeContract: fields,
	})
	if err != nil {
		return err
	}
	pc.ProcoreID = strconv.FormatInt(created.ID, 10)
	return r.contracts.Save(ctx, pc)
}

// CreateAllForProject runs the full downstream push for one project.
// Every step after the project itself is best-effort: a failed vendor
// or contact never aborts the batch.
func (r *Reconciler) CreateAllForProject(ctx context.Context, account *models.Account, p *models.Project) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}

	if err := r.EnsureProject(ctx, account, p); err != nil {
		return err
	}

	if p.Company != nil {
		if err := r.CreateOrUpdateCompany(ctx, account, p.Company, p); err != nil {
			logs.Logger.Errorf("company push for project %d: %v", p.ID, err)
		}
		if err := r.AddVendorToProject(ctx, account, p.Company, p); err != nil {
			logs.Logger.Errorf("vendor association for project %d: %v", p.ID, err)
		}
	}

	for _, ct := range p.Contacts {
		if err := r.CreateOrUpdateContact(ctx, account, ct); err != nil {
			logs.Logger.Errorf("contact push for project %d: %v", p.ID, err)
			continue
		}
		if err := r.AddContactToProject(ctx, account, ct, p); err != nil {
			logs.Logger.Errorf("contact association for project %d: %v", p.ID, err)
		}
	}

	if err := r.AddOwnerToProject(ctx, account, p); err != nil {
		logs.Logger.Errorf("owner association for project %d: %v", p.ID, err)
	}

	if p.PrimeContract != nil {
		if err := r.EnsurePrimeContract(ctx, account, p); err != nil {
			logs.Logger.Errorf("prime contract for project %d: %v", p.ID, err)
		}
	}
	return nil
}

// RegisterProjectUpdateWebhook subscribes this service to resource
// change notifications for the active company.
func (r *Reconciler) RegisterProjectUpdateWebhook(ctx context.Context, account *models.Account) error {
	if r.cfg.Procore.WebhookURL == "" {
		return errors.New("procore.webhook_url not configured")
	}
	var payload hookPayload
	payload.CompanyID = account.ActiveProcoreCompanyID
	payload.Hook.APIVersion = "v2"
	payload.Hook.Namespace = "procore"
	payload.Hook.DestinationURL = r.cfg.Procore.WebhookURL
	payload.Hook.DestinationHeaders = map[string]string{
		"apiKey": strconv.FormatUint(uint64(account.ID), 10),
	}
	return r.client.RegisterWebhook(ctx, account, payload)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
