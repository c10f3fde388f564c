package conversion

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

type fakeRepository struct {
	created []*models.Conversion
	err     error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, conversion *models.Conversion) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, conversion)
	return nil
}

func (f *fakeRepository) ListByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]models.Conversion, error) {
	return nil, nil
}

func newTestService(t *testing.T) (Service, *fakeRepository) {
	t.Helper()
	rates, err := chains.NewStaticRateSource(config.RatesConfig{BTCUSD: "65000", ETHUSD: "3000", SOLUSD: "150"})
	if err != nil {
		t.Fatalf("NewStaticRateSource: %v", err)
	}
	registry, err := chains.NewRegistry(config.ChainsConfig{Network: "testnet"}, rates, simnet.NewStore())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	repo := &fakeRepository{}
	svc, err := NewService(registry, repo, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo
}

func testQuote() types.LockedQuote {
	now := time.Now()
	return types.LockedQuote{
		Rates: map[string]string{
			"BTC": "65000",
			"ETH": "3000",
			"SOL": "150",
			"USD": "1",
		},
		LockedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestIsConversionNeeded(t *testing.T) {
	svc, _ := newTestService(t)

	if !svc.IsConversionNeeded(enums.AssetBTC, enums.AssetUSD, enums.ConversionModeConvertAndSettle) {
		t.Fatal("BTC to USD should need conversion")
	}
	if svc.IsConversionNeeded(enums.AssetETH, enums.AssetETH, enums.ConversionModeConvertAndSettle) {
		t.Fatal("same asset should not need conversion")
	}
	if svc.IsConversionNeeded(enums.AssetBTC, enums.AssetUSD, enums.ConversionModeReceiveInKind) {
		t.Fatal("receive in kind should never convert")
	}
}

func TestExecuteConservesUSDValue(t *testing.T) {
	svc, repo := newTestService(t)
	invoiceID := uuid.New()

	record, err := svc.Execute(context.Background(), nil, ExecuteInput{
		InvoiceID:      invoiceID,
		FromAsset:      enums.AssetBTC,
		FromAmount:     big.NewInt(153847),
		ToAsset:        enums.AssetUSD,
		AmountUSDCents: 10000,
		Quote:          testQuote(),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if record.FromAmountUSDCents != record.ToAmountUSDCents {
		t.Fatalf("usd value not conserved: %d != %d", record.FromAmountUSDCents, record.ToAmountUSDCents)
	}
	if record.ToAmount != "10000" {
		t.Fatalf("expected 10000 cents, got %s", record.ToAmount)
	}
	if record.Status != enums.SettlementStatusCompleted {
		t.Fatalf("unexpected status %s", record.Status)
	}
	if record.TxRef == "" || record.TxRef[:9] != "sim_conv_" {
		t.Fatalf("unexpected tx ref %q", record.TxRef)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(repo.created))
	}

	var snapshot map[string]string
	if err := json.Unmarshal(record.RateSnapshot, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot["BTC"] != "65000" || snapshot["USD"] != "1" {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
}

func TestExecuteCryptoTarget(t *testing.T) {
	svc, _ := newTestService(t)

	// $100.00 into ETH at $3,000: exactly 1/30 ETH, ceiling division.
	record, err := svc.Execute(context.Background(), nil, ExecuteInput{
		InvoiceID:      uuid.New(),
		FromAsset:      enums.AssetBTC,
		FromAmount:     big.NewInt(153847),
		ToAsset:        enums.AssetETH,
		AmountUSDCents: 10000,
		Quote:          testQuote(),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	toAmount, ok := new(big.Int).SetString(record.ToAmount, 10)
	if !ok {
		t.Fatalf("unparseable to amount %q", record.ToAmount)
	}
	// 1/30 ETH in wei rounds up to 33333333333333334.
	expected, _ := new(big.Int).SetString("33333333333333334", 10)
	if toAmount.Cmp(expected) != 0 {
		t.Fatalf("expected %s wei, got %s", expected, toAmount)
	}
	if record.FromAmountUSDCents != 10000 || record.ToAmountUSDCents != 10000 {
		t.Fatalf("usd value not conserved: %+v", record)
	}
}

func TestExecuteValidation(t *testing.T) {
	svc, _ := newTestService(t)
	quote := testQuote()

	cases := []struct {
		name  string
		input ExecuteInput
	}{
		{"nil invoice", ExecuteInput{FromAsset: enums.AssetBTC, FromAmount: big.NewInt(1), ToAsset: enums.AssetUSD, AmountUSDCents: 1, Quote: quote}},
		{"same asset", ExecuteInput{InvoiceID: uuid.New(), FromAsset: enums.AssetBTC, FromAmount: big.NewInt(1), ToAsset: enums.AssetBTC, AmountUSDCents: 1, Quote: quote}},
		{"zero amount", ExecuteInput{InvoiceID: uuid.New(), FromAsset: enums.AssetBTC, FromAmount: big.NewInt(0), ToAsset: enums.AssetUSD, AmountUSDCents: 1, Quote: quote}},
		{"zero usd", ExecuteInput{InvoiceID: uuid.New(), FromAsset: enums.AssetBTC, FromAmount: big.NewInt(1), ToAsset: enums.AssetUSD, AmountUSDCents: 0, Quote: quote}},
		{"missing rate", ExecuteInput{InvoiceID: uuid.New(), FromAsset: enums.AssetBTC, FromAmount: big.NewInt(1), ToAsset: enums.AssetUSD, AmountUSDCents: 1, Quote: types.LockedQuote{Rates: map[string]string{"USD": "1"}}}},
	}
	for _, tc := range cases {
		if _, err := svc.Execute(context.Background(), nil, tc.input); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
