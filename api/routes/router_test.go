package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/internal/invoices"
	"github.com/atlaspay-io/atlaspay-backend/internal/pipeline"
	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/pagination"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubIdemStore struct {
	data map[string]string
}

func newStubIdemStore() *stubIdemStore {
	return &stubIdemStore{data: make(map[string]string)}
}

func (s *stubIdemStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", nil
}

func (s *stubIdemStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	s.data[key] = str
	return true, nil
}

func (s *stubIdemStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func (s *stubIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

type stubBusinessRepo struct{}

func (s stubBusinessRepo) WithTx(tx *gorm.DB) invoices.BusinessRepository { return s }

func (s stubBusinessRepo) Create(ctx context.Context, business *models.Business) error {
	business.ID = uuid.New()
	return nil
}

func (s stubBusinessRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	return &models.Business{ID: id, Name: "Acme Imports", Email: "ops@acme.test"}, nil
}

type stubInvoiceRepo struct {
	invoice *models.Invoice
}

func (s stubInvoiceRepo) WithTx(*gorm.DB) invoices.Repository { return s }

func (s stubInvoiceRepo) Create(context.Context, *models.Invoice) error { return nil }

func (s stubInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	if s.invoice != nil && s.invoice.ID == id {
		return s.invoice, nil
	}
	return nil, nil
}

func (s stubInvoiceRepo) Update(context.Context, *models.Invoice) error { return nil }

func (s stubInvoiceRepo) UpdateStatusIf(context.Context, uuid.UUID, []enums.InvoiceStatus, enums.InvoiceStatus) (bool, error) {
	return true, nil
}

func (s stubInvoiceRepo) ListByStatus(context.Context, []enums.InvoiceStatus, int) ([]models.Invoice, error) {
	return nil, nil
}

func (s stubInvoiceRepo) ListByBusiness(_ context.Context, businessID uuid.UUID, _ *pagination.Cursor, _ int) ([]models.Invoice, error) {
	if s.invoice != nil && s.invoice.BusinessID == businessID {
		return []models.Invoice{*s.invoice}, nil
	}
	return nil, nil
}

type stubInvoiceService struct {
	invoice *models.Invoice
}

func (s stubInvoiceService) Create(ctx context.Context, input invoices.CreateInput) (*models.Invoice, error) {
	return s.invoice, nil
}

func (s stubInvoiceService) Issue(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	return s.invoice, nil
}

func (s stubInvoiceService) Get(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	if s.invoice == nil || s.invoice.ID != invoiceID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return s.invoice, nil
}

type stubPipelineService struct{}

func (stubPipelineService) ProcessPayment(ctx context.Context, invoiceID uuid.UUID, details pipeline.PaymentDetails) (*models.Invoice, error) {
	return nil, nil
}

func (stubPipelineService) CheckAndProcessPayment(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	return false, nil
}

func (stubPipelineService) Summary(ctx context.Context, invoiceID uuid.UUID) (*pipeline.Summary, error) {
	return &pipeline.Summary{InvoiceID: invoiceID, Status: enums.InvoiceStatusSent}, nil
}

func testInvoice() *models.Invoice {
	return &models.Invoice{
		ID:               uuid.New(),
		BusinessID:       uuid.New(),
		Number:           "INV-1",
		TotalUSDCents:    5_000,
		SettlementTarget: enums.AssetUSD,
		ConversionMode:   enums.ConversionModeConvertAndSettle,
		PaymentOptions:   types.ChainList{enums.ChainBitcoin},
		Status:           enums.InvoiceStatusDraft,
	}
}

func newTestRouter(t *testing.T, env string) (http.Handler, *models.Invoice) {
	t.Helper()
	rates, err := chains.NewStaticRateSource(config.RatesConfig{BTCUSD: "65000", ETHUSD: "3000", SOLUSD: "150"})
	if err != nil {
		t.Fatalf("NewStaticRateSource: %v", err)
	}
	store := simnet.NewStore()
	registry, err := chains.NewRegistry(config.ChainsConfig{Network: "testnet"}, rates, store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	cfg := &config.Config{App: config.AppConfig{Env: env}}
	invoice := testInvoice()
	router := NewRouter(
		cfg, nil,
		stubPinger{}, stubPinger{}, newStubIdemStore(),
		stubBusinessRepo{},
		stubInvoiceRepo{invoice: invoice},
		stubInvoiceService{invoice: invoice},
		stubPipelineService{},
		registry, store,
	)
	return router, invoice
}

func TestRouterHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, config.AppEnvDev)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, config.AppEnvDev)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterInvoiceCreateRequiresIdempotencyKey(t *testing.T) {
	router, _ := newTestRouter(t, config.AppEnvDev)

	body := `{"business_id":"` + uuid.NewString() + `","number":"INV-1","total_usd_cents":5000,` +
		`"settlement_target":"usd","payment_options":["bitcoin"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "create-1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRouterInvoiceGetAndSummary(t *testing.T) {
	router, invoice := newTestRouter(t, config.AppEnvDev)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+invoice.ID.String(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("invoice get: expected 200 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+invoice.ID.String()+"/summary", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("invoice summary: expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data pipeline.Summary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if envelope.Data.InvoiceID != invoice.ID {
		t.Fatalf("unexpected summary invoice %s", envelope.Data.InvoiceID)
	}
}

func TestRouterInvoiceList(t *testing.T) {
	router, invoice := newTestRouter(t, config.AppEnvDev)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices?business_id="+invoice.BusinessID.String(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("invoice list: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Invoices   []json.RawMessage `json:"invoices"`
			NextCursor string            `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(envelope.Data.Invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(envelope.Data.Invoices))
	}
	if envelope.Data.NextCursor != "" {
		t.Fatalf("expected empty next cursor, got %q", envelope.Data.NextCursor)
	}
}

func TestRouterBusinessRoutes(t *testing.T) {
	router, _ := newTestRouter(t, config.AppEnvDev)

	body := `{"name":"Acme Imports","email":"ops@acme.test"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/businesses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "biz-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("business create: expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/businesses/"+uuid.NewString(), nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("business get: expected 200 got %d", resp.Code)
	}
}

func TestRouterSimulatePaymentHiddenInProd(t *testing.T) {
	router, invoice := newTestRouter(t, config.AppEnvProd)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/simulate-payment", strings.NewReader(`{"chain":"bitcoin"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "sim-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound && resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected simulate-payment to be absent in prod, got %d", resp.Code)
	}
}
