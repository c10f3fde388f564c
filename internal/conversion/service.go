package conversion

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

// ExecuteInput describes one conversion leg. FromAmount is in base units of
// the source asset; the USD value was fixed when the payment was detected.
type ExecuteInput struct {
	InvoiceID      uuid.UUID
	FromAsset      enums.Asset
	FromAmount     *big.Int
	ToAsset        enums.Asset
	AmountUSDCents int64
	Quote          types.LockedQuote
}

// Service converts a paid asset toward the settlement target through the USD
// pivot. The USD value is conserved exactly across the leg; only the native
// representation changes.
type Service interface {
	IsConversionNeeded(paid, target enums.Asset, mode enums.ConversionMode) bool
	Execute(ctx context.Context, tx *gorm.DB, input ExecuteInput) (*models.Conversion, error)
}

type service struct {
	registry *chains.Registry
	repo     Repository
	logg     *logger.Logger
}

// NewService wires the conversion engine.
func NewService(registry *chains.Registry, repo Repository, logg *logger.Logger) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("chain registry required")
	}
	if repo == nil {
		return nil, fmt.Errorf("conversion repository required")
	}
	return &service{registry: registry, repo: repo, logg: logg}, nil
}

// IsConversionNeeded reports whether a conversion leg must run. Receiving in
// kind keeps whatever asset the payer used, so no leg runs regardless of the
// configured target.
func (s *service) IsConversionNeeded(paid, target enums.Asset, mode enums.ConversionMode) bool {
	if mode == enums.ConversionModeReceiveInKind {
		return false
	}
	return paid != target
}

func (s *service) Execute(ctx context.Context, tx *gorm.DB, input ExecuteInput) (*models.Conversion, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, fmt.Errorf("invoice id is required")
	}
	if input.FromAsset == input.ToAsset {
		return nil, fmt.Errorf("conversion requires distinct assets")
	}
	if input.FromAmount == nil || input.FromAmount.Sign() <= 0 {
		return nil, fmt.Errorf("from amount must be positive")
	}
	if input.AmountUSDCents <= 0 {
		return nil, fmt.Errorf("usd amount must be positive")
	}

	fromRate, err := input.Quote.Rate(input.FromAsset)
	if err != nil {
		return nil, err
	}
	toRate, err := input.Quote.Rate(input.ToAsset)
	if err != nil {
		return nil, err
	}

	toAmount, err := s.targetAmount(input.ToAsset, input.AmountUSDCents, input.Quote)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(map[string]string{
		input.FromAsset.String(): fromRate.String(),
		input.ToAsset.String():   toRate.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode rate snapshot: %w", err)
	}

	record := &models.Conversion{
		InvoiceID:          input.InvoiceID,
		FromAsset:          input.FromAsset,
		ToAsset:            input.ToAsset,
		FromAmount:         input.FromAmount.String(),
		ToAmount:           toAmount.String(),
		FromAmountUSDCents: input.AmountUSDCents,
		ToAmountUSDCents:   input.AmountUSDCents,
		RateSnapshot:       snapshot,
		TxRef:              "sim_conv_" + uuid.NewString(),
		Status:             enums.SettlementStatusCompleted,
	}
	if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist conversion: %w", err)
	}

	if s.logg != nil {
		fields := map[string]any{
			"from_asset": input.FromAsset,
			"to_asset":   input.ToAsset,
			"usd_cents":  input.AmountUSDCents,
			"tx_ref":     record.TxRef,
		}
		logCtx := s.logg.WithInvoiceID(s.logg.WithFields(ctx, fields), input.InvoiceID.String())
		s.logg.Info(logCtx, "conversion executed")
	}
	return record, nil
}

// targetAmount renders the conserved USD value in the target asset's base
// units: cents as-is for USD, otherwise through the target chain's adapter
// at the locked rate.
func (s *service) targetAmount(target enums.Asset, usdCents int64, quote types.LockedQuote) (*big.Int, error) {
	if target == enums.AssetUSD {
		return big.NewInt(usdCents), nil
	}
	adapter, err := s.registry.AdapterForAsset(target)
	if err != nil {
		return nil, err
	}
	rate, err := quote.Rate(target)
	if err != nil {
		return nil, err
	}
	return adapter.USDToNative(usdCents, rate)
}
