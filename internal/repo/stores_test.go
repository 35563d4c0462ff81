package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"girder/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.Company{},
		&models.Contact{},
		&models.Office{},
		&models.PrimeContract{},
		&models.Project{},
		&models.Attachment{},
	))
	return db
}

func TestAccountStoreTokenUpdates(t *testing.T) {
	db := openTestDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	a := &models.Account{Username: "default"}
	require.NoError(t, s.Create(ctx, a))

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.SetHSTokens(ctx, a.ID, "tok", "ref", expiry))

	got, err := s.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.HSToken)
	assert.Equal(t, "ref", got.HSRefreshToken)
	require.NotNil(t, got.HSTokenExpiry)
	assert.WithinDuration(t, expiry, *got.HSTokenExpiry, time.Second)

	// The other system's triple is untouched.
	assert.Empty(t, got.ProcoreToken)
}

func TestAccountStoreMissesReturnNil(t *testing.T) {
	db := openTestDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	got, err := s.FindByID(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.FindByPortalID(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.First(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccountStoreFirstReturnsOldest(t *testing.T) {
	db := openTestDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Account{Username: "one"}))
	require.NoError(t, s.Create(ctx, &models.Account{Username: "two"}))

	got, err := s.First(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "one", got.Username)
}

func TestProjectStoreNeedsHSUpdateLifecycle(t *testing.T) {
	db := openTestDB(t)
	s := NewProjectStore(db)
	ctx := context.Background()

	dirty := &models.Project{HSID: "d-1", Name: "Bridge", NeedsHSUpdate: true}
	clean := &models.Project{HSID: "d-2", Name: "Tunnel"}
	require.NoError(t, s.Create(ctx, dirty))
	require.NoError(t, s.Create(ctx, clean))

	pending, err := s.FindNeedingHSUpdate(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d-1", pending[0].HSID)

	require.NoError(t, s.ClearNeedsHSUpdate(ctx, dirty.ID))

	pending, err = s.FindNeedingHSUpdate(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProjectStoreLookupsPreloadRelations(t *testing.T) {
	db := openTestDB(t)
	s := NewProjectStore(db)
	ctx := context.Background()

	co := &models.Company{HSID: "co-1", Name: "Acme Rail"}
	require.NoError(t, db.Create(co).Error)
	pc := &models.PrimeContract{HSID: "d-1", Title: "Prime"}
	require.NoError(t, db.Create(pc).Error)

	p := &models.Project{
		HSID:            "d-1",
		ProcoreID:       "777",
		CompanyID:       &co.ID,
		PrimeContractID: &pc.ID,
	}
	require.NoError(t, s.Create(ctx, p))

	byHS, err := s.FindByHSID(ctx, "d-1")
	require.NoError(t, err)
	require.NotNil(t, byHS)
	require.NotNil(t, byHS.Company)
	assert.Equal(t, "Acme Rail", byHS.Company.Name)
	require.NotNil(t, byHS.PrimeContract)
	assert.Equal(t, "Prime", byHS.PrimeContract.Title)

	byProcore, err := s.FindByProcoreID(ctx, "777")
	require.NoError(t, err)
	require.NotNil(t, byProcore)
	assert.Equal(t, byHS.ID, byProcore.ID)

	missing, err := s.FindByHSID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAttachmentStorePendingQueries(t *testing.T) {
	db := openTestDB(t)
	s := NewAttachmentStore(db)
	ctx := context.Background()

	p := &models.Project{HSID: "d-1"}
	require.NoError(t, db.Create(p).Error)
	other := &models.Project{HSID: "d-2"}
	require.NoError(t, db.Create(other).Error)

	pushed := &models.Attachment{ProjectID: p.ID, HSID: "f-1", ProcoreID: "100", FileOrigin: models.FileOriginHubSpot}
	pending := &models.Attachment{ProjectID: p.ID, HSID: "f-2", FileOrigin: models.FileOriginHubSpot}
	elsewhere := &models.Attachment{ProjectID: other.ID, HSID: "f-3", FileOrigin: models.FileOriginHubSpot}
	fromProcore := &models.Attachment{ProjectID: p.ID, ProcoreID: "200", FileOrigin: models.FileOriginProcore}
	for _, a := range []*models.Attachment{pushed, pending, elsewhere, fromProcore} {
		require.NoError(t, s.Create(ctx, a))
	}

	missing, err := s.FindMissingProcoreID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "f-2", missing[0].HSID)

	// Only procore-origin rows without a document object qualify.
	noDoc, err := s.FindMissingDocumentObject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, noDoc, 2)

	fromProcore.HSDocumentObjectID = "doc-1"
	require.NoError(t, s.Save(ctx, fromProcore))
	pushed.HSDocumentObjectID = "doc-2"
	require.NoError(t, s.Save(ctx, pushed))

	noDoc, err = s.FindMissingDocumentObject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, noDoc)
}

func TestAttachmentStoreRemoteIDGates(t *testing.T) {
	db := openTestDB(t)
	s := NewAttachmentStore(db)
	ctx := context.Background()

	p := &models.Project{HSID: "d-1"}
	require.NoError(t, db.Create(p).Error)
	require.NoError(t, s.Create(ctx, &models.Attachment{
		ProjectID: p.ID, HSID: "f-1", FileOrigin: models.FileOriginHubSpot,
	}))

	got, err := s.FindByHSID(ctx, p.ID, "f-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = s.FindByHSID(ctx, p.ID, "f-unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.FindByProcoreID(ctx, p.ID, "200")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestContactStoreFindByCompany(t *testing.T) {
	db := openTestDB(t)
	s := NewContactStore(db)
	ctx := context.Background()

	acme := &models.Company{Name: "Acme Rail"}
	zen := &models.Company{Name: "Zenith Civil"}
	require.NoError(t, db.Create(acme).Error)
	require.NoError(t, db.Create(zen).Error)

	require.NoError(t, s.Create(ctx, &models.Contact{Email: "a@acme.test", CompanyID: &acme.ID}))
	require.NoError(t, s.Create(ctx, &models.Contact{Email: "b@acme.test", CompanyID: &acme.ID}))
	require.NoError(t, s.Create(ctx, &models.Contact{Email: "z@zenith.test", CompanyID: &zen.ID}))

	staff, err := s.FindByCompany(ctx, acme.ID)
	require.NoError(t, err)
	assert.Len(t, staff, 2)

	staff, err = s.FindByCompany(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, staff)
}

func TestCompanyStoreFindByName(t *testing.T) {
	db := openTestDB(t)
	s := NewCompanyStore(db)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Company{Name: "Acme Rail", HSID: "co-1"}))

	got, err := s.FindByName(ctx, "Acme Rail")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "co-1", got.HSID)

	got, err = s.FindByName(ctx, "acme rail")
	require.NoError(t, err)
	assert.Nil(t, got, "name match is exact")
}
