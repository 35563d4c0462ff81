package server

import (
	"context"

	"girder/internal/hubspot"
	"girder/internal/models"
	"girder/internal/procore"
)

// The two reconcilers call each other through narrow interfaces; these
// adapters close the loop without an import cycle.

// downstreamAdapter lets the CRM reconciler drive the Procore side.
type downstreamAdapter struct {
	rec *procore.Reconciler
}

var _ hubspot.Downstream = (*downstreamAdapter)(nil)

func (a *downstreamAdapter) EnsureProject(ctx context.Context, account *models.Account, p *models.Project) error {
	return a.rec.CreateAllForProject(ctx, account, p)
}

func (a *downstreamAdapter) EnsurePrimeContract(ctx context.Context, account *models.Account, p *models.Project) error {
	return a.rec.EnsurePrimeContract(ctx, account, p)
}

func (a *downstreamAdapter) PushCompany(ctx context.Context, account *models.Account, co *models.Company) error {
	return a.rec.CreateOrUpdateCompany(ctx, account, co, nil)
}

func (a *downstreamAdapter) PushContact(ctx context.Context, account *models.Account, ct *models.Contact) error {
	return a.rec.CreateOrUpdateContact(ctx, account, ct)
}

func (a *downstreamAdapter) PushAttachment(ctx context.Context, account *models.Account, p *models.Project, at *models.Attachment) error {
	return a.rec.CreateProjectFile(ctx, account, p, at)
}

// notifierAdapter lets the Procore reconciler push changes back into
// the CRM.
type notifierAdapter struct {
	rec *hubspot.Reconciler
}

var _ procore.CRMNotifier = (*notifierAdapter)(nil)

func (a *notifierAdapter) SyncContact(ctx context.Context, account *models.Account, ct *models.Contact) error {
	return a.rec.PushContactToHubSpot(ctx, account, ct)
}

func (a *notifierAdapter) SyncCompany(ctx context.Context, account *models.Account, co *models.Company) error {
	return a.rec.PushCompanyToHubSpot(ctx, account, co)
}
