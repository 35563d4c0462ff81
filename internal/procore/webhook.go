package procore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"girder/internal/logs"
	"girder/internal/models"
)

// HandleWebhook dispatches one Procore notification. Procore fires the
// hook before its own transaction settles, so processing waits a beat
// before reading anything back.
func (r *Reconciler) HandleWebhook(ctx context.Context, account *models.Account, body WebhookBody) error {
	r.sleep(r.cfg.Sync.WebhookSettleDelay)

	switch body.ResourceName {
	case "Company Users":
		return r.processContactWebhook(ctx, account, strconv.FormatInt(body.ResourceID, 10))
	case "Company Vendors":
		return r.processCompanyWebhook(ctx, account, strconv.FormatInt(body.ResourceID, 10))
	}

	if body.ProjectID != 0 && body.ProjectID == body.ResourceID && body.EventType == "update" {
		remote, err := r.client.GetProject(ctx, account, strconv.FormatInt(body.ProjectID, 10))
		if err != nil {
			return err
		}
		_, err = r.ProcessProjectUpdate(ctx, remote)
		return err
	}
	return nil
}

// ProcessProjectUpdate copies the remote mirror fields onto the
// canonical project and marks it for the CRM sweep.
func (r *Reconciler) ProcessProjectUpdate(ctx context.Context, remote *remoteProject) (*models.Project, error) {
	procoreID := strconv.FormatInt(remote.ID, 10)
	p, err := r.projects.FindByProcoreID(ctx, procoreID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("no canonical project for procore id %s", procoreID)
	}

	p.ProcoreStage = remote.ProjectStage.Name
	p.ProcoreTotalValue = float64(remote.TotalValue)
	p.ProcoreEstimatedValue = float64(remote.EstimatedValue)
	p.ProcoreEstimatedStartDate = dateToMillis(remote.EstimatedStartDate)
	p.ProcoreEstimatedCompletionDate = dateToMillis(remote.EstimatedCompletionDate)
	p.ProcoreProjectedFinishDate = dateToMillis(remote.ProjectedFinishDate)
	p.ProcoreActualStartDate = dateToMillis(remote.ActualStartDate)
	p.NeedsHSUpdate = true

	if err := r.projects.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// processContactWebhook upserts the contact from the remote user record
// and notifies the CRM side.
func (r *Reconciler) processContactWebhook(ctx context.Context, account *models.Account, userID string) error {
	remote, err := r.client.GetUser(ctx, account, userID)
	if err != nil {
		return err
	}
	procoreID := strconv.FormatInt(remote.ID, 10)

	ct, err := r.contacts.FindByProcoreID(ctx, procoreID)
	if err != nil {
		return err
	}
	isNew := ct == nil
	if isNew {
		ct = &models.Contact{ProcoreID: procoreID}
	}

	ct.FirstName = remote.FirstName
	ct.LastName = remote.LastName
	ct.Email = remote.EmailAddress
	ct.Phone = remote.MobilePhone
	ct.JobTitle = remote.JobTitle
	ct.Address = remote.Address
	ct.City = remote.City
	ct.Zip = remote.Zip
	ct.StateCode = remote.StateCode
	ct.CountryCode = remote.CountryCode

	if ct.CompanyID == nil && remote.Vendor != nil {
		co, err := r.companies.FindByProcoreID(ctx, strconv.FormatInt(remote.Vendor.ID, 10))
		if err != nil {
			return err
		}
		if co != nil {
			ct.CompanyID = &co.ID
			ct.Company = co
		}
	}

	if isNew {
		err = r.contacts.Create(ctx, ct)
	} else {
		err = r.contacts.Save(ctx, ct)
	}
	if err != nil {
		return err
	}

	r.sleep(r.cfg.Sync.SettleDelay)
	if r.notifier == nil {
		logs.Logger.Warn("no crm notifier wired, contact change not propagated")
		return nil
	}
	return r.notifier.SyncContact(ctx, account, ct)
}

// processCompanyWebhook upserts the company from the remote vendor
// record and notifies the CRM side.
func (r *Reconciler) processCompanyWebhook(ctx context.Context, account *models.Account, vendorID string) error {
	remote, err := r.client.GetVendor(ctx, account, vendorID)
	if err != nil {
		return err
	}
	procoreID := strconv.FormatInt(remote.ID, 10)

	co, err := r.companies.FindByProcoreID(ctx, procoreID)
	if err != nil {
		return err
	}
	isNew := co == nil
	if isNew {
		co = &models.Company{ProcoreID: procoreID, CompanyType: models.CompanyTypeVendor}
	}

	co.Name = remote.Name
	co.Address = remote.Address
	co.Address2 = remote.Address2
	co.City = remote.City
	co.Zip = remote.Zip
	co.BusinessPhone = remote.BusinessPhone
	co.EmailAddress = remote.EmailAddress
	co.FaxNumber = remote.FaxNumber
	co.StateCode = remote.StateCode
	co.CountryCode = remote.CountryCode

	if isNew {
		err = r.companies.Create(ctx, co)
	} else {
		err = r.companies.Save(ctx, co)
	}
	if err != nil {
		return err
	}

	r.sleep(r.cfg.Sync.SettleDelay)
	if r.notifier == nil {
		logs.Logger.Warn("no crm notifier wired, company change not propagated")
		return nil
	}
	return r.notifier.SyncCompany(ctx, account, co)
}

// dateToMillis parses a bare ISO date to unix millis at midnight UTC.
func dateToMillis(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
