package sweep

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"girder/internal/models"
	"girder/internal/repo"
)

type fakeWriter struct {
	pushed       []string
	scanned      []string
	failDeals    map[string]bool
	failScanning bool
}

func (f *fakeWriter) WriteDealUpdate(ctx context.Context, account *models.Account, p *models.Project) error {
	if f.failDeals[p.HSID] {
		return errors.New("portal rejected update")
	}
	f.pushed = append(f.pushed, p.HSID)
	return nil
}

func (f *fakeWriter) ReadAttachmentsForProject(ctx context.Context, account *models.Account, p *models.Project) error {
	if f.failScanning {
		return errors.New("attachment scan failed")
	}
	f.scanned = append(f.scanned, p.HSID)
	return nil
}

func sweepSetup(t *testing.T) (*repo.ProjectStore, *repo.AccountStore, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Account{}, &models.Company{}, &models.Contact{},
		&models.Office{}, &models.PrimeContract{}, &models.Project{},
	))
	return repo.NewProjectStore(db), repo.NewAccountStore(db), db
}

func TestSweepPushesAndClearsFlag(t *testing.T) {
	projects, accounts, _ := sweepSetup(t)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, &models.Account{Username: "default"}))

	p := &models.Project{HSID: "d-1", ProcoreStage: "Awarded", NeedsHSUpdate: true}
	require.NoError(t, projects.Create(ctx, p))

	w := &fakeWriter{}
	s := New(projects, accounts, w, time.Minute)
	require.NoError(t, s.Sweep(ctx))

	assert.Equal(t, []string{"d-1"}, w.pushed)
	assert.Equal(t, []string{"d-1"}, w.scanned)

	pending, err := projects.FindNeedingHSUpdate(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweepFailedPushLeavesFlagForRetry(t *testing.T) {
	projects, accounts, _ := sweepSetup(t)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, &models.Account{Username: "default"}))

	require.NoError(t, projects.Create(ctx, &models.Project{HSID: "d-1", NeedsHSUpdate: true}))
	require.NoError(t, projects.Create(ctx, &models.Project{HSID: "d-2", NeedsHSUpdate: true}))

	w := &fakeWriter{failDeals: map[string]bool{"d-1": true}}
	s := New(projects, accounts, w, time.Minute)
	require.NoError(t, s.Sweep(ctx))

	pending, err := projects.FindNeedingHSUpdate(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d-1", pending[0].HSID)
	assert.Equal(t, []string{"d-2"}, w.pushed)
}

func TestSweepSkipsProjectsWithoutDeal(t *testing.T) {
	projects, accounts, _ := sweepSetup(t)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, &models.Account{Username: "default"}))

	// A project discovered on the Procore side first has no deal yet;
	// it must neither be pushed nor lose its flag.
	require.NoError(t, projects.Create(ctx, &models.Project{ProcoreID: "900", NeedsHSUpdate: true}))

	w := &fakeWriter{}
	s := New(projects, accounts, w, time.Minute)
	require.NoError(t, s.Sweep(ctx))

	assert.Empty(t, w.pushed)
	pending, err := projects.FindNeedingHSUpdate(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSweepAttachmentScanFailureStillClearsFlag(t *testing.T) {
	projects, accounts, _ := sweepSetup(t)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, &models.Account{Username: "default"}))

	p := &models.Project{HSID: "d-1", NeedsHSUpdate: true}
	require.NoError(t, projects.Create(ctx, p))

	w := &fakeWriter{failScanning: true}
	s := New(projects, accounts, w, time.Minute)
	require.NoError(t, s.Sweep(ctx))

	pending, err := projects.FindNeedingHSUpdate(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "the deal push succeeded; the scan retries on its own")
}

func TestSweepNoAccountIsANoOp(t *testing.T) {
	projects, accounts, _ := sweepSetup(t)
	ctx := context.Background()

	require.NoError(t, projects.Create(ctx, &models.Project{HSID: "d-1", NeedsHSUpdate: true}))

	w := &fakeWriter{}
	s := New(projects, accounts, w, time.Minute)
	require.NoError(t, s.Sweep(ctx))
	assert.Empty(t, w.pushed)
}
