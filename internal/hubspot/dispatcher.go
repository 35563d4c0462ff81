package hubspot

import (
	"context"
	"fmt"
	"strconv"

	"girder/config"
	"girder/internal/dedup"
	"girder/internal/logs"
	"girder/internal/models"
	"girder/internal/repo"
)

// changeSourceIntegration marks events produced by this integration's
// own API writes. The first such event stops the batch: processing our
// own echoes would bounce changes back and forth.
const changeSourceIntegration = "INTEGRATION"

// changeSourceDeletion marks events emitted when the source object was
// deleted; contact/company deletions are not propagated.
const changeSourceDeletion = "OBJECT_DELETION"

// changeFlagCreated marks property changes that merely restate a fresh
// creation, which the creation subscription already covers.
const changeFlagCreated = "CREATED"

// Dispatcher routes webhook batches to the reconciler. Batches are
// acknowledged first and processed by a single background worker, so
// the portal never sees a slow response and retries needlessly.
type Dispatcher struct {
	recon    *Reconciler
	accounts *repo.AccountStore
	cache    dedup.Cache
	cfg      *config.Config
	queue    chan []WebhookEvent
}

func NewDispatcher(recon *Reconciler, accounts *repo.AccountStore, cache dedup.Cache, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		recon:    recon,
		accounts: accounts,
		cache:    cache,
		cfg:      cfg,
		queue:    make(chan []WebhookEvent, 64),
	}
}

// Enqueue hands a batch to the background worker. A full queue drops
// the batch; the portal redelivers unacknowledged events anyway.
func (d *Dispatcher) Enqueue(events []WebhookEvent) {
	select {
	case d.queue <- events:
	default:
		logs.Logger.Warn("webhook queue full, dropping batch")
	}
}

// Run drains the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-d.queue:
			d.ProcessBatch(ctx, events)
		}
	}
}

// ProcessBatch handles one webhook delivery in order. The first
// INTEGRATION-sourced event short-circuits the rest of the batch;
// events before it are still processed. Other failures are isolated
// per event.
func (d *Dispatcher) ProcessBatch(ctx context.Context, events []WebhookEvent) {
	for _, ev := range events {
		if ev.ChangeSource == changeSourceIntegration {
			logs.Logger.Debugf("integration-sourced event %d, dropping rest of batch", ev.EventID)
			return
		}
		if err := d.processEvent(ctx, ev); err != nil {
			logs.Logger.Errorf("webhook event %d (%s, object %d): %v",
				ev.EventID, ev.SubscriptionType, ev.ObjectID, err)
		}
	}
}

func (d *Dispatcher) processEvent(ctx context.Context, ev WebhookEvent) error {
	if ev.ObjectID == 0 {
		return nil
	}

	key := dedupKey(ev)
	if _, seen, err := d.cache.Get(ctx, key); err != nil {
		logs.Logger.Warnf("dedup lookup failed for %s: %v", key, err)
	} else if seen {
		logs.Logger.Debugf("event %s already seen, skipping", key)
		return nil
	}
	if err := d.cache.Set(ctx, key, "1", d.cfg.Dedup.TTL); err != nil {
		logs.Logger.Warnf("dedup store failed for %s: %v", key, err)
	}

	account, err := d.resolveAccount(ctx, ev.PortalID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("no account for portal %d", ev.PortalID)
	}

	objectID := strconv.FormatInt(ev.ObjectID, 10)
	switch ev.SubscriptionType {
	case "deal.creation":
		_, err := d.recon.ProcessDeal(ctx, account, objectID)
		return err
	case "deal.propertyChange":
		switch ev.PropertyName {
		case "create_in_procore", "procore_refresh":
			if ev.PropertyValue != "true" {
				return nil
			}
			return d.recon.HandleProjectCreationWebhook(ctx, account, objectID)
		case "dealstage":
			return d.recon.HandleProjectCreationWebhook(ctx, account, objectID)
		default:
			project, err := d.recon.ProcessDeal(ctx, account, objectID)
			if err != nil {
				return err
			}
			return d.recon.downstream.EnsureProject(ctx, account, project)
		}
	case "company.propertyChange", "company.creation":
		if skipCRMObjectEvent(ev) {
			return nil
		}
		return d.recon.HandleCompanyUpdateWebhook(ctx, account, objectID)
	case "contact.propertyChange", "contact.creation":
		if skipCRMObjectEvent(ev) {
			return nil
		}
		return d.recon.HandleContactUpdateWebhook(ctx, account, objectID)
	default:
		logs.Logger.Debugf("unhandled subscription type %q", ev.SubscriptionType)
		return nil
	}
}

func (d *Dispatcher) resolveAccount(ctx context.Context, portalID int64) (*models.Account, error) {
	if portalID != 0 {
		account, err := d.accounts.FindByPortalID(ctx, strconv.FormatInt(portalID, 10))
		if err != nil || account != nil {
			return account, err
		}
	}
	return d.accounts.First(ctx)
}

// skipCRMObjectEvent filters contact/company events that must not
// propagate: deletion-sourced changes and the property changes a fresh
// creation restates.
func skipCRMObjectEvent(ev WebhookEvent) bool {
	return ev.ChangeSource == changeSourceDeletion || ev.ChangeFlag == changeFlagCreated
}

// dedupKey suppresses on the object id alone: once an object has been
// processed within the TTL, every follow-up event for it is an echo.
func dedupKey(ev WebhookEvent) string {
	return strconv.FormatInt(ev.ObjectID, 10)
}
