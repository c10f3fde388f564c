package invoices

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/internal/quotes"
	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/pagination"
)

type fakeInvoiceRepo struct {
	byID    map[uuid.UUID]*models.Invoice
	created int
	updated int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{byID: map[uuid.UUID]*models.Invoice{}}
}

func (f *fakeInvoiceRepo) WithTx(*gorm.DB) Repository { return f }

func (f *fakeInvoiceRepo) Create(_ context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	f.created++
	copied := *invoice
	f.byID[invoice.ID] = &copied
	return nil
}

func (f *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *invoice
	return &copied, nil
}

func (f *fakeInvoiceRepo) Update(_ context.Context, invoice *models.Invoice) error {
	f.updated++
	copied := *invoice
	f.byID[invoice.ID] = &copied
	return nil
}

func (f *fakeInvoiceRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, from []enums.InvoiceStatus, to enums.InvoiceStatus) (bool, error) {
	invoice, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if invoice.Status == status {
			invoice.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInvoiceRepo) ListByStatus(_ context.Context, statuses []enums.InvoiceStatus, limit int) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, invoice := range f.byID {
		for _, status := range statuses {
			if invoice.Status == status {
				out = append(out, *invoice)
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) ListByBusiness(_ context.Context, businessID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, invoice := range f.byID {
		if invoice.BusinessID != businessID {
			continue
		}
		if cursor != nil && !invoice.CreatedAt.Before(cursor.CreatedAt) {
			continue
		}
		out = append(out, *invoice)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeBusinessRepo struct {
	byID map[uuid.UUID]*models.Business
}

func (f *fakeBusinessRepo) WithTx(*gorm.DB) BusinessRepository { return f }

func (f *fakeBusinessRepo) Create(_ context.Context, business *models.Business) error {
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}
	f.byID[business.ID] = business
	return nil
}

func (f *fakeBusinessRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Business, error) {
	return f.byID[id], nil
}

func newTestService(t *testing.T) (Service, *fakeInvoiceRepo, uuid.UUID) {
	t.Helper()
	rates, err := chains.NewStaticRateSource(config.RatesConfig{BTCUSD: "65000", ETHUSD: "3000", SOLUSD: "150"})
	if err != nil {
		t.Fatalf("NewStaticRateSource: %v", err)
	}
	registry, err := chains.NewRegistry(config.ChainsConfig{Network: "testnet"}, rates, simnet.NewStore())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	quoteSvc, err := quotes.NewService(registry, 15*time.Minute, nil)
	if err != nil {
		t.Fatalf("quotes.NewService: %v", err)
	}

	businessID := uuid.New()
	businesses := &fakeBusinessRepo{byID: map[uuid.UUID]*models.Business{
		businessID: {ID: businessID, Name: "Acme Imports", Email: "ops@acme.test"},
	}}
	repo := newFakeInvoiceRepo()

	svc, err := NewService(repo, businesses, registry, quoteSvc, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, businessID
}

func validCreateInput(businessID uuid.UUID) CreateInput {
	return CreateInput{
		BusinessID:       businessID,
		Number:           "INV-1001",
		TotalUSDCents:    10_000,
		SettlementTarget: enums.AssetUSD,
		ConversionMode:   enums.ConversionModeConvertAndSettle,
		PaymentOptions:   []enums.Chain{enums.ChainBitcoin, enums.ChainSolana},
	}
}

func TestCreateDraftsInvoice(t *testing.T) {
	svc, repo, businessID := newTestService(t)

	invoice, err := svc.Create(context.Background(), validCreateInput(businessID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if invoice.Status != enums.InvoiceStatusDraft {
		t.Fatalf("expected draft status, got %s", invoice.Status)
	}
	if invoice.ID == uuid.Nil {
		t.Fatal("expected invoice id to be assigned")
	}
	if len(invoice.DepositAddresses) != 0 {
		t.Fatal("draft invoices must not carry deposit addresses")
	}
	if !invoice.LockedQuote.IsZero() {
		t.Fatal("draft invoices must not carry a locked quote")
	}
	if repo.created != 1 {
		t.Fatalf("expected 1 create, got %d", repo.created)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, repo, businessID := newTestService(t)

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing business", func(in *CreateInput) { in.BusinessID = uuid.Nil }},
		{"missing number", func(in *CreateInput) { in.Number = "" }},
		{"zero total", func(in *CreateInput) { in.TotalUSDCents = 0 }},
		{"negative total", func(in *CreateInput) { in.TotalUSDCents = -5 }},
		{"bad target", func(in *CreateInput) { in.SettlementTarget = enums.Asset("doge") }},
		{"bad mode", func(in *CreateInput) { in.ConversionMode = enums.ConversionMode("hodl") }},
		{"no options", func(in *CreateInput) { in.PaymentOptions = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validCreateInput(businessID)
			tc.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			domainErr := pkgerrors.As(err)
			if domainErr == nil || domainErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION, got %v", err)
			}
		})
	}
	if repo.created != 0 {
		t.Fatalf("expected no creates, got %d", repo.created)
	}
}

func TestCreateRejectsUnsupportedPaymentOption(t *testing.T) {
	svc, _, businessID := newTestService(t)

	input := validCreateInput(businessID)
	input.PaymentOptions = []enums.Chain{enums.Chain("dogecoin")}
	_, err := svc.Create(context.Background(), input)
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeUnsupportedChain {
		t.Fatalf("expected UNSUPPORTED_CHAIN, got %v", err)
	}
}

func TestCreateUnknownBusiness(t *testing.T) {
	svc, _, _ := newTestService(t)

	input := validCreateInput(uuid.New())
	_, err := svc.Create(context.Background(), input)
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestIssueProvisionsAddressesAndLocksQuote(t *testing.T) {
	svc, _, businessID := newTestService(t)

	draft, err := svc.Create(context.Background(), validCreateInput(businessID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	issued, err := svc.Issue(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Status != enums.InvoiceStatusSent {
		t.Fatalf("expected sent status, got %s", issued.Status)
	}
	if len(issued.DepositAddresses) != 2 {
		t.Fatalf("expected 2 deposit addresses, got %d", len(issued.DepositAddresses))
	}
	for _, chain := range []enums.Chain{enums.ChainBitcoin, enums.ChainSolana} {
		deposit, ok := issued.DepositAddresses[chain]
		if !ok {
			t.Fatalf("missing %s deposit address", chain)
		}
		if deposit.Address == "" {
			t.Fatalf("empty %s deposit address", chain)
		}
	}
	if issued.LockedQuote.IsZero() {
		t.Fatal("expected locked quote")
	}
	if _, err := issued.LockedQuote.Rate(enums.AssetBTC); err != nil {
		t.Fatalf("quote missing btc rate: %v", err)
	}
	if _, err := issued.LockedQuote.Rate(enums.AssetETH); err == nil {
		t.Fatal("quote must not include rates for chains the invoice does not accept")
	}
	if remaining := issued.LockedQuote.SecondsRemaining(time.Now()); remaining <= 0 || remaining > 900 {
		t.Fatalf("unexpected quote validity window: %ds", remaining)
	}

	fetched, err := svc.Get(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != enums.InvoiceStatusSent {
		t.Fatalf("issue not persisted, status %s", fetched.Status)
	}
}

func TestIssueIsDraftOnly(t *testing.T) {
	svc, _, businessID := newTestService(t)

	draft, err := svc.Create(context.Background(), validCreateInput(businessID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Issue(context.Background(), draft.ID); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = svc.Issue(context.Background(), draft.ID)
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT on double issue, got %v", err)
	}
}

func TestGetUnknownInvoice(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetRelocksExpiredQuote(t *testing.T) {
	svc, repo, businessID := newTestService(t)

	draft, err := svc.Create(context.Background(), validCreateInput(businessID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	issued, err := svc.Issue(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Age the lock window out from under the stored invoice.
	stale := repo.byID[issued.ID]
	stale.LockedQuote.LockedAt = stale.LockedQuote.LockedAt.Add(-time.Hour)
	stale.LockedQuote.ExpiresAt = stale.LockedQuote.ExpiresAt.Add(-time.Hour)

	fetched, err := svc.Get(context.Background(), issued.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if remaining := fetched.LockedQuote.SecondsRemaining(time.Now()); remaining <= 0 || remaining > 900 {
		t.Fatalf("expected a re-locked quote window, got %ds", remaining)
	}

	persisted := repo.byID[issued.ID]
	if !persisted.LockedQuote.ExpiresAt.Equal(fetched.LockedQuote.ExpiresAt) {
		t.Fatal("re-locked quote was not persisted")
	}
}
