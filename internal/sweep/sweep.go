// Package sweep pushes Procore-originated project changes back to the
// CRM on a fixed interval.
package sweep

import (
	"context"
	"time"

	"girder/internal/logs"
	"girder/internal/models"
	"girder/internal/repo"
)

// DealWriter is the CRM-side surface the sweep drives.
type DealWriter interface {
	WriteDealUpdate(ctx context.Context, account *models.Account, p *models.Project) error
	ReadAttachmentsForProject(ctx context.Context, account *models.Account, p *models.Project) error
}

type Sweeper struct {
	projects *repo.ProjectStore
	accounts *repo.AccountStore
	writer   DealWriter
	interval time.Duration
}

func New(projects *repo.ProjectStore, accounts *repo.AccountStore, writer DealWriter, interval time.Duration) *Sweeper {
	return &Sweeper{projects: projects, accounts: accounts, writer: writer, interval: interval}
}

// Run ticks until the context is cancelled. Each tick is independent;
// a failed sweep leaves its flags for the next one.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				logs.Logger.Errorf("sweep: %v", err)
			}
		}
	}
}

// Sweep pushes every project marked needs_hs_update. The flag is
// cleared only after a successful push, so a failure retries on the
// next tick.
func (s *Sweeper) Sweep(ctx context.Context) error {
	account, err := s.accounts.First(ctx)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	pending, err := s.projects.FindNeedingHSUpdate(ctx)
	if err != nil {
		return err
	}
	for i := range pending {
		p := &pending[i]
		if p.HSID == "" {
			continue
		}
		if err := s.writer.WriteDealUpdate(ctx, account, p); err != nil {
			logs.Logger.Errorf("sweep push for deal %s: %v", p.HSID, err)
			continue
		}
		if err := s.writer.ReadAttachmentsForProject(ctx, account, p); err != nil {
			logs.Logger.Warnf("sweep attachment scan for deal %s: %v", p.HSID, err)
		}
		if err := s.projects.ClearNeedsHSUpdate(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}
