package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
)

// ExecuteInput describes one crypto payout to the merchant.
type ExecuteInput struct {
	InvoiceID      uuid.UUID
	Asset          enums.Asset
	AmountNative   *big.Int
	AmountUSDCents int64
	PayoutAddress  string
}

// Service delivers the crypto leg of a settlement to the merchant's payout
// address. The payout address is validated against the asset's chain before
// anything is recorded.
type Service interface {
	Execute(ctx context.Context, tx *gorm.DB, input ExecuteInput) (*models.Settlement, error)
}

type service struct {
	registry *chains.Registry
	repo     Repository
	logg     *logger.Logger
}

// NewService wires the crypto settlement engine.
func NewService(registry *chains.Registry, repo Repository, logg *logger.Logger) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("chain registry required")
	}
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	return &service{registry: registry, repo: repo, logg: logg}, nil
}

func (s *service) Execute(ctx context.Context, tx *gorm.DB, input ExecuteInput) (*models.Settlement, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, fmt.Errorf("invoice id is required")
	}
	if !input.Asset.IsCrypto() {
		return nil, fmt.Errorf("settlement asset %q is not a crypto asset", input.Asset)
	}
	if input.AmountNative == nil || input.AmountNative.Sign() <= 0 {
		return nil, fmt.Errorf("settlement amount must be positive")
	}
	if input.AmountUSDCents <= 0 {
		return nil, fmt.Errorf("usd amount must be positive")
	}

	adapter, err := s.registry.AdapterForAsset(input.Asset)
	if err != nil {
		return nil, err
	}
	if !adapter.IsValidAddress(input.PayoutAddress) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPayoutAddress,
			fmt.Sprintf("payout address is not valid for %s", adapter.Chain()))
	}

	record := &models.Settlement{
		InvoiceID:      input.InvoiceID,
		Asset:          input.Asset,
		AmountNative:   input.AmountNative.String(),
		AmountUSDCents: input.AmountUSDCents,
		ToAddress:      input.PayoutAddress,
		TxRef:          "sim_settle_" + uuid.NewString(),
		Status:         enums.SettlementStatusCompleted,
	}
	if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist settlement: %w", err)
	}

	if s.logg != nil {
		fields := map[string]any{
			"asset":     input.Asset,
			"usd_cents": input.AmountUSDCents,
			"tx_ref":    record.TxRef,
		}
		logCtx := s.logg.WithInvoiceID(s.logg.WithFields(ctx, fields), input.InvoiceID.String())
		s.logg.Info(logCtx, "crypto settlement executed")
	}
	return record, nil
}
