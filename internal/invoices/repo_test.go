package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/pagination"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

func setupInvoicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  business_id TEXT NOT NULL,
  number TEXT NOT NULL,
  total_usd_cents INTEGER NOT NULL,
  settlement_target TEXT NOT NULL,
  conversion_mode TEXT NOT NULL DEFAULT 'convert_and_settle',
  payment_options TEXT,
  deposit_addresses TEXT,
  locked_quote TEXT,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedInvoice(t *testing.T, db *gorm.DB, businessID uuid.UUID, number string, createdAt time.Time) models.Invoice {
	t.Helper()

	invoice := models.Invoice{
		ID:               uuid.New(),
		BusinessID:       businessID,
		Number:           number,
		TotalUSDCents:    10_000,
		SettlementTarget: enums.AssetUSD,
		ConversionMode:   enums.ConversionModeConvertAndSettle,
		PaymentOptions:   types.ChainList{enums.ChainBitcoin},
		Status:           enums.InvoiceStatusDraft,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	require.NoError(t, db.Create(&invoice).Error)
	return invoice
}

func TestRepositoryListByBusinessPaginates(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	businessID := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	oldest := seedInvoice(t, db, businessID, "INV-1", base.Add(-2*time.Minute))
	middle := seedInvoice(t, db, businessID, "INV-2", base.Add(-time.Minute))
	newest := seedInvoice(t, db, businessID, "INV-3", base)
	seedInvoice(t, db, uuid.New(), "OTHER-1", base)

	page, err := repo.ListByBusiness(ctx, businessID, nil, pagination.LimitWithBuffer(2))
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, newest.ID, page[0].ID)
	assert.Equal(t, middle.ID, page[1].ID)

	cursor := &pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}
	rest, err := repo.ListByBusiness(ctx, businessID, cursor, pagination.LimitWithBuffer(2))
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, oldest.ID, rest[0].ID)
	assert.Equal(t, "INV-1", rest[0].Number)
}

func TestRepositoryFindByIDMissingReturnsNil(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)

	invoice, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, invoice)
}

func TestRepositoryUpdateStatusIf(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	invoice := seedInvoice(t, db, uuid.New(), "INV-CAS", time.Now().UTC())

	ok, err := repo.UpdateStatusIf(ctx, invoice.ID, []enums.InvoiceStatus{enums.InvoiceStatusDraft}, enums.InvoiceStatusSent)
	require.NoError(t, err)
	assert.True(t, ok)

	// The invoice already left draft, so the same transition loses the race.
	ok, err = repo.UpdateStatusIf(ctx, invoice.ID, []enums.InvoiceStatus{enums.InvoiceStatusDraft}, enums.InvoiceStatusSent)
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := repo.FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, enums.InvoiceStatusSent, updated.Status)
}

func TestRepositoryUpdateStatusIfRejectsIllegalTransitions(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	invoice := seedInvoice(t, db, uuid.New(), "INV-GRAPH", time.Now().UTC())

	cases := []struct {
		name string
		from enums.InvoiceStatus
		to   enums.InvoiceStatus
	}{
		{"skips the lifecycle", enums.InvoiceStatusSent, enums.InvoiceStatusComplete},
		{"leaves a terminal state", enums.InvoiceStatusComplete, enums.InvoiceStatusDraft},
		{"runs backwards", enums.InvoiceStatusSettling, enums.InvoiceStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := repo.UpdateStatusIf(ctx, invoice.ID, []enums.InvoiceStatus{tc.from}, tc.to)
			require.Error(t, err)
			assert.False(t, ok)
		})
	}

	// The row is untouched by rejected requests.
	kept, err := repo.FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, enums.InvoiceStatusDraft, kept.Status)
}
