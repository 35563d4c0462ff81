package hubspot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"girder/config"
	"girder/internal/files"
	"girder/internal/geo"
	"girder/internal/logs"
	"girder/internal/models"
	"girder/internal/repo"
)

// DealStageClosedWon is the pipeline stage that flips a deal from a
// bidding opportunity into an awarded project.
const DealStageClosedWon = "closedwon"

// lifecycleSyncStages are the company lifecycle stages whose updates
// propagate onward. Everything else is CRM noise and is dropped.
var lifecycleSyncStages = map[string]bool{
	"customer": true,
	"34623414": true,
	"39552113": true,
	"other":    true,
}

// Downstream pushes canonical changes to the construction side. The
// concrete implementation lives in the procore package; the indirection
// keeps the two reconcilers from importing each other.
type Downstream interface {
	EnsureProject(ctx context.Context, account *models.Account, p *models.Project) error
	EnsurePrimeContract(ctx context.Context, account *models.Account, p *models.Project) error
	PushCompany(ctx context.Context, account *models.Account, co *models.Company) error
	PushContact(ctx context.Context, account *models.Account, ct *models.Contact) error
	PushAttachment(ctx context.Context, account *models.Account, p *models.Project, at *models.Attachment) error
}

// Reconciler folds CRM state into the canonical store and drives the
// downstream mirror. All operations are idempotent: re-delivered
// webhooks converge on the same rows.
type Reconciler struct {
	client      *Client
	cfg         *config.Config
	projects    *repo.ProjectStore
	companies   *repo.CompanyStore
	contacts    *repo.ContactStore
	contracts   *repo.ContractStore
	attachments *repo.AttachmentStore
	storage     *files.Storage
	downstream  Downstream

	// sleep is swappable in tests.
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
	Storage     *files.Storage
	Downstream  Downstream
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
		storage:     d.Storage,
		downstream:  d.Downstream,
		sleep:       time.Sleep,
	}
}

// ProcessDeal pulls a deal with its associations and upserts the
// canonical project, its company and its contacts.
func (r *Reconciler) ProcessDeal(ctx context.Context, account *models.Account, dealID string) (*models.Project, error) {
	deal, err := r.client.GetDeal(ctx, account.ID, dealID, true)
	if err != nil {
		return nil, fmt.Errorf("fetch deal %s: %w", dealID, err)
	}

	project, err := r.projects.FindByHSID(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	isNew := project == nil
	if isNew {
		project = &models.Project{HSID: deal.ID}
	}
	applyDeal(project, deal, isNew)

	if deal.Properties.HubSpotOwnerID != "" && deal.Properties.HubSpotOwnerID != project.HSOwnerID {
		owner, err := r.client.GetOwner(ctx, account.ID, deal.Properties.HubSpotOwnerID)
		if err != nil {
			logs.Logger.Warnf("owner %s lookup failed for deal %s: %v", deal.Properties.HubSpotOwnerID, deal.ID, err)
		} else {
			project.HSOwnerID = owner.ID
			project.HSOwnerEmail = owner.Email
		}
	}

	if isNew {
		if err := r.projects.Create(ctx, project); err != nil {
			return nil, err
		}
	} else if err := r.projects.Save(ctx, project); err != nil {
		return nil, err
	}

	if err := r.linkAssociations(ctx, account, project, deal); err != nil {
		return nil, err
	}
	return r.projects.FindByHSID(ctx, deal.ID)
}

func (r *Reconciler) linkAssociations(ctx context.Context, account *models.Account, project *models.Project, deal *Deal) error {
	if set, ok := deal.Associations["companies"]; ok && len(set.Results) > 0 {
		co, err := r.ProcessCompany(ctx, account, set.Results[0].ID)
		if err != nil {
			logs.Logger.Errorf("company %s sync failed for deal %s: %v", set.Results[0].ID, deal.ID, err)
		} else if co != nil {
			project.CompanyID = &co.ID
		}
	}

	if set, ok := deal.Associations["contacts"]; ok {
		var linked []*models.Contact
		for i, ref := range set.Results {
			if i > 0 {
				r.sleep(r.cfg.Sync.ContactDelay)
			}
			ct, err := r.ProcessContact(ctx, account, ref.ID, project.CompanyID)
			if err != nil {
				logs.Logger.Errorf("contact %s sync failed for deal %s: %v", ref.ID, deal.ID, err)
				continue
			}
			linked = append(linked, ct)
		}
		if len(linked) > 0 {
			project.ContactID = &linked[0].ID
			if err := r.projects.ReplaceContacts(ctx, project, linked); err != nil {
				return err
			}
		}
	}
	return r.projects.Save(ctx, project)
}

func applyDeal(p *models.Project, deal *Deal, isNew bool) {
	props := deal.Properties
	p.Name = props.DealName
	p.Amount = parseFloat(props.Amount)
	p.DealStage = props.DealStage
	if isNew || p.InitialStage == "" {
		p.InitialStage = props.DealStage
	}
	p.Description = props.Description
	p.ProjectNumber = props.ProjectNumber
	p.Department = props.Department
	p.Address = props.ProjectAddress
	p.City = props.ProjectCity
	p.State = props.ProjectState
	p.Zip = props.ProjectZip
	p.OfficeName = props.OfficeLocation
	p.CloseDate = parseDate(props.CloseDate)
	p.StartDate = parseDate(props.StartDate)
}

// ProcessCompany upserts a canonical company from CRM state.
func (r *Reconciler) ProcessCompany(ctx context.Context, account *models.Account, companyID string) (*models.Company, error) {
	hsCo, err := r.client.GetCompany(ctx, account.ID, companyID)
	if err != nil {
		return nil, err
	}

	co, err := r.companies.FindByHSID(ctx, hsCo.ID)
	if err != nil {
		return nil, err
	}
	isNew := co == nil
	if isNew {
		co = &models.Company{HSID: hsCo.ID}
	}
	applyCompany(co, hsCo)

	if isNew {
		err = r.companies.Create(ctx, co)
	} else {
		err = r.companies.Save(ctx, co)
	}
	if err != nil {
		return nil, err
	}
	return co, nil
}

func applyCompany(co *models.Company, hsCo *Company) {
	props := hsCo.Properties
	co.Name = props.Name
	co.BusinessPhone = props.Phone
	co.MobilePhone = props.MobilePhone
	co.Address = props.Address
	co.Address2 = props.Address2
	co.City = props.City
	co.Zip = props.Zip
	co.EmailAddress = props.Email
	co.FaxNumber = props.Fax
	co.CountryCode = geo.CountryCode(props.Country)
	co.StateCode = geo.StateCode(props.Country, props.State)
	if props.LifecycleStage == "customer" {
		co.CompanyType = models.CompanyTypeCustomer
	} else if co.CompanyType == "" {
		co.CompanyType = models.CompanyTypeVendor
	}
}

// ProcessContact upserts a canonical contact; companyID, when known,
// links it to its employer.
func (r *Reconciler) ProcessContact(ctx context.Context, account *models.Account, contactID string, companyID *uint) (*models.Contact, error) {
	hsCt, err := r.client.GetContact(ctx, account.ID, contactID)
	if err != nil {
		return nil, err
	}

	ct, err := r.contacts.FindByHSID(ctx, hsCt.ID)
	if err != nil {
		return nil, err
	}
	isNew := ct == nil
	if isNew {
		ct = &models.Contact{HSID: hsCt.ID}
	}
	applyContact(ct, hsCt)
	if companyID != nil {
		ct.CompanyID = companyID
	}

	if isNew {
		err = r.contacts.Create(ctx, ct)
	} else {
		err = r.contacts.Save(ctx, ct)
	}
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func applyContact(ct *models.Contact, hsCt *Contact) {
	props := hsCt.Properties
	ct.FirstName = props.FirstName
	ct.LastName = props.LastName
	ct.Email = props.Email
	ct.Phone = props.Phone
	ct.MobilePhone = props.MobilePhone
	ct.Fax = props.Fax
	ct.JobTitle = props.JobTitle
	ct.Address = props.Address
	ct.City = props.City
	ct.Zip = props.Zip
	ct.CountryCode = geo.CountryCode(props.Country)
	ct.StateCode = geo.StateCode(props.Country, props.State)
}

// HandleContactUpdateWebhook refreshes a contact from its webhook and
// pushes it downstream. The contact's associated company decides
// whether the record is synced at all: companies outside the synced
// lifecycle stages drop the event without touching the store. A company
// the store has never seen is cascade-created first.
func (r *Reconciler) HandleContactUpdateWebhook(ctx context.Context, account *models.Account, contactID string) error {
	hsCt, err := r.client.GetContact(ctx, account.ID, contactID)
	if err != nil {
		return err
	}
	refs := hsCt.Associations["companies"].Results
	if len(refs) == 0 {
		logs.Logger.Debugf("contact %s has no company, skipping", contactID)
		return nil
	}
	hsCo, err := r.client.GetCompany(ctx, account.ID, refs[0].ID)
	if err != nil {
		return err
	}
	if !lifecycleSyncStages[hsCo.Properties.LifecycleStage] {
		logs.Logger.Debugf("contact %s company lifecycle %q not synced, skipping", contactID, hsCo.Properties.LifecycleStage)
		return nil
	}

	co, err := r.companies.FindByHSID(ctx, hsCo.ID)
	if err != nil {
		return err
	}
	if co == nil {
		co, err = r.companies.FindByName(ctx, hsCo.Properties.Name)
		if err != nil {
			return err
		}
	}
	if co == nil {
		// Cascade: the company handler creates it, pushes it downstream
		// and enumerates its contacts (this one included; the second
		// pass finds the company and does not recurse).
		if err := r.HandleCompanyUpdateWebhook(ctx, account, hsCo.ID); err != nil {
			return err
		}
		if co, err = r.companies.FindByHSID(ctx, hsCo.ID); err != nil {
			return err
		}
	}

	var companyID *uint
	if co != nil {
		companyID = &co.ID
	}
	ct, err := r.ProcessContact(ctx, account, contactID, companyID)
	if err != nil {
		return err
	}
	return r.downstream.PushContact(ctx, account, ct)
}

// HandleCompanyUpdateWebhook refreshes a company and mirrors it
// downstream; the push runs the search-then-create vendor path, so a
// first-seen company becomes a vendor right away. Companies outside the
// synced lifecycle stages are ignored. A company new to the store also
// has its CRM-side contacts enumerated and synced one by one, paced to
// respect remote rate limits.
func (r *Reconciler) HandleCompanyUpdateWebhook(ctx context.Context, account *models.Account, companyID string) error {
	hsCo, err := r.client.GetCompany(ctx, account.ID, companyID)
	if err != nil {
		return err
	}
	if !lifecycleSyncStages[hsCo.Properties.LifecycleStage] {
		logs.Logger.Debugf("company %s lifecycle %q not synced, skipping", companyID, hsCo.Properties.LifecycleStage)
		return nil
	}

	co, err := r.companies.FindByHSID(ctx, hsCo.ID)
	if err != nil {
		return err
	}
	isNew := co == nil
	if isNew {
		co = &models.Company{HSID: hsCo.ID}
	}
	applyCompany(co, hsCo)
	if isNew {
		err = r.companies.Create(ctx, co)
	} else {
		err = r.companies.Save(ctx, co)
	}
	if err != nil {
		return err
	}

	if err := r.downstream.PushCompany(ctx, account, co); err != nil {
		logs.Logger.Errorf("company %s downstream push failed: %v", co.HSID, err)
	}

	if !isNew {
		return nil
	}

	// Give the portal time to settle its association writes before
	// enumerating the new company's contacts.
	r.sleep(r.cfg.Sync.CompanyEnumDelay)
	refs, err := r.client.GetAssociations(ctx, account.ID, "companies", hsCo.ID, "contacts")
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := r.HandleContactUpdateWebhook(ctx, account, ref.ID); err != nil {
			logs.Logger.Errorf("contact %s cascade failed: %v", ref.ID, err)
		}
		r.sleep(r.cfg.Sync.CascadeDelay)
	}
	return nil
}

// HandleProjectCreationWebhook runs the full pipeline for a newly
// created (or stage-changed) deal: canonical upsert, downstream
// project, prime contract, and documents.
func (r *Reconciler) HandleProjectCreationWebhook(ctx context.Context, account *models.Account, dealID string) error {
	// Let the portal finish its own writes before reading the deal back.
	r.sleep(r.cfg.Sync.WebhookSettleDelay)

	project, err := r.ProcessDeal(ctx, account, dealID)
	if err != nil {
		return err
	}
	if err := r.downstream.EnsureProject(ctx, account, project); err != nil {
		return fmt.Errorf("ensure project for deal %s: %w", dealID, err)
	}

	r.sleep(r.cfg.Sync.SettleDelay)
	if err := r.ProcessPrimeContract(ctx, account, project); err != nil {
		logs.Logger.Errorf("prime contract for deal %s: %v", dealID, err)
	}

	if err := r.ProcessProjectDocuments(ctx, account, project); err != nil {
		logs.Logger.Errorf("documents for deal %s: %v", dealID, err)
	}

	// Reset the trigger flags so the workflow can fire again later.
	if err := r.client.UpdateDeal(ctx, account.ID, dealID, map[string]string{
		"create_in_procore": "false",
		"procore_refresh":   "false",
	}); err != nil {
		logs.Logger.Warnf("trigger flag reset failed for deal %s: %v", dealID, err)
	}
	return nil
}

// ProcessPrimeContract upserts the canonical prime contract for a
// project and mirrors it downstream.
func (r *Reconciler) ProcessPrimeContract(ctx context.Context, account *models.Account, project *models.Project) error {
	pc, err := r.contracts.FindByHSID(ctx, project.HSID)
	if err != nil {
		return err
	}
	isNew := pc == nil
	if isNew {
		pc = &models.PrimeContract{HSID: project.HSID}
	}

	pc.Title = project.Name
	pc.Description = project.Description
	pc.GrandTotal = project.Amount
	pc.ProjectID = &project.ID
	pc.CompanyID = project.CompanyID
	pc.ContactID = project.ContactID
	if project.CloseDate != nil {
		pc.ContractDate = project.CloseDate.UnixMilli()
	}
	if project.StartDate != nil {
		pc.ContractStartDate = project.StartDate.UnixMilli()
	}
	if project.DealStage == DealStageClosedWon {
		pc.HSStatus = "Draft"
	} else {
		pc.HSStatus = "Out For Bid"
	}

	if isNew {
		err = r.contracts.Create(ctx, pc)
	} else {
		err = r.contracts.Save(ctx, pc)
	}
	if err != nil {
		return err
	}

	project.PrimeContractID = &pc.ID
	project.PrimeContract = pc
	if err := r.projects.Save(ctx, project); err != nil {
		return err
	}
	return r.downstream.EnsurePrimeContract(ctx, account, project)
}

// WriteDealUpdate pushes the downstream mirror fields back onto the
// deal. Dates are normalized to midnight UTC in epoch millis, the only
// form date-typed deal properties accept.
func (r *Reconciler) WriteDealUpdate(ctx context.Context, account *models.Account, project *models.Project) error {
	props := map[string]string{}
	if project.ProcoreStage != "" {
		props["procore_stage"] = project.ProcoreStage
	}
	if project.ProcoreTotalValue != 0 {
		props["procore_total_value"] = strconv.FormatFloat(project.ProcoreTotalValue, 'f', 2, 64)
	}
	if project.ProcoreEstimatedValue != 0 {
		props["procore_estimated_value"] = strconv.FormatFloat(project.ProcoreEstimatedValue, 'f', 2, 64)
	}
	setMidnight(props, "procore_estimated_start_date", project.ProcoreEstimatedStartDate)
	setMidnight(props, "procore_estimated_completion_date", project.ProcoreEstimatedCompletionDate)
	setMidnight(props, "procore_projected_finish_date", project.ProcoreProjectedFinishDate)
	setMidnight(props, "procore_actual_start_date", project.ProcoreActualStartDate)

	if len(props) == 0 {
		return nil
	}
	return r.client.UpdateDeal(ctx, account.ID, project.HSID, props)
}

func setMidnight(props map[string]string, key string, millis int64) {
	if millis == 0 {
		return
	}
	t := time.UnixMilli(millis).UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	props[key] = strconv.FormatInt(midnight.UnixMilli(), 10)
}

// FindMatchingCompany resolves a company by exact name against the
// portal. An ambiguous result (several hits) counts as no match so the
// caller falls through to creating a fresh record.
func (r *Reconciler) FindMatchingCompany(ctx context.Context, account *models.Account, name string) (*models.Company, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	hits, err := r.client.SearchCompaniesByName(ctx, account.ID, name)
	if err != nil {
		return nil, err
	}
	if len(hits) != 1 {
		if len(hits) > 1 {
			logs.Logger.Warnf("company name %q ambiguous in portal (%d hits), treating as no match", name, len(hits))
		}
		return nil, nil
	}
	return r.ProcessCompany(ctx, account, hits[0].ID)
}

// PushCompanyToHubSpot mirrors a construction-side company change into
// the portal, creating the company when no counterpart exists yet.
func (r *Reconciler) PushCompanyToHubSpot(ctx context.Context, account *models.Account, co *models.Company) error {
	props := map[string]string{
		"name":     co.Name,
		"phone":    co.BusinessPhone,
		"address":  co.Address,
		"address2": co.Address2,
		"city":     co.City,
		"zip":      co.Zip,
		"email":    co.EmailAddress,
		"state":    co.StateCode,
		"country":  co.CountryCode,
	}
	if co.HSID != "" {
		return r.client.UpdateCompany(ctx, account.ID, co.HSID, props)
	}
	if matched, err := r.FindMatchingCompany(ctx, account, co.Name); err != nil {
		return err
	} else if matched != nil {
		co.HSID = matched.HSID
		if err := r.companies.Save(ctx, co); err != nil {
			return err
		}
		return r.client.UpdateCompany(ctx, account.ID, co.HSID, props)
	}
	created, err := r.client.CreateCompany(ctx, account.ID, props)
	if err != nil {
		return err
	}
	co.HSID = created.ID
	return r.companies.Save(ctx, co)
}

// PushContactToHubSpot mirrors a construction-side contact change into
// the portal.
func (r *Reconciler) PushContactToHubSpot(ctx context.Context, account *models.Account, ct *models.Contact) error {
	props := map[string]string{
		"firstname":   ct.FirstName,
		"lastname":    ct.LastName,
		"email":       ct.Email,
		"phone":       ct.Phone,
		"mobilephone": ct.MobilePhone,
		"fax":         ct.Fax,
		"jobtitle":    ct.JobTitle,
		"address":     ct.Address,
		"city":        ct.City,
		"zip":         ct.Zip,
		"state":       ct.StateCode,
		"country":     ct.CountryCode,
	}
	if ct.HSID != "" {
		return r.client.UpdateContact(ctx, account.ID, ct.HSID, props)
	}
	created, err := r.client.CreateContact(ctx, account.ID, props)
	if err != nil {
		return err
	}
	ct.HSID = created.ID
	if err := r.contacts.Save(ctx, ct); err != nil {
		return err
	}
	if ct.CompanyID != nil {
		if co, err := r.companies.FindByID(ctx, *ct.CompanyID); err == nil && co != nil && co.HSID != "" {
			if err := r.client.Associate(ctx, account.ID, "contacts", ct.HSID, "companies", co.HSID); err != nil {
				logs.Logger.Warnf("contact %s company association failed: %v", ct.HSID, err)
			}
		}
	}
	return nil
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

// parseDate accepts the three shapes date properties arrive in: epoch
// millis, a bare date, or full RFC 3339.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
