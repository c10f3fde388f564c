package cashout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/fiatrail"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
)

// RailClient is the slice of the bank-rail client the cashout engine needs.
type RailClient interface {
	CreateDeposit(ctx context.Context, params fiatrail.DepositParams) (*fiatrail.Deposit, error)
}

// ExecuteInput describes one USD payout to the merchant's bank account.
type ExecuteInput struct {
	InvoiceID      uuid.UUID
	AmountUSDCents int64
	BankAccountID  string
	Reference      string
}

// Service moves settled USD onto the external bank rail. When a rail call
// fails for any reason and the simulate-on-failure policy is enabled, the
// payout is recorded as completed_simulated with the rail error preserved
// for audit instead of failing the run; the default policy fails loudly.
type Service interface {
	Execute(ctx context.Context, tx *gorm.DB, input ExecuteInput) (*models.FiatSettlement, error)
}

type service struct {
	rail              RailClient
	repo              Repository
	simulateOnFailure bool
	logg              *logger.Logger
}

// NewService wires the fiat cashout engine.
func NewService(rail RailClient, repo Repository, simulateOnFailure bool, logg *logger.Logger) (Service, error) {
	if rail == nil {
		return nil, fmt.Errorf("rail client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("fiat settlement repository required")
	}
	return &service{rail: rail, repo: repo, simulateOnFailure: simulateOnFailure, logg: logg}, nil
}

func (s *service) Execute(ctx context.Context, tx *gorm.DB, input ExecuteInput) (*models.FiatSettlement, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, fmt.Errorf("invoice id is required")
	}
	if input.AmountUSDCents <= 0 {
		return nil, fmt.Errorf("cashout amount must be positive")
	}
	if input.BankAccountID == "" {
		return nil, fmt.Errorf("bank account id is required")
	}

	record := &models.FiatSettlement{
		InvoiceID:      input.InvoiceID,
		AmountUSDCents: input.AmountUSDCents,
		BankAccountID:  input.BankAccountID,
	}

	deposit, railErr := s.rail.CreateDeposit(ctx, fiatrail.DepositParams{
		BankAccountID:  input.BankAccountID,
		AmountUSDCents: input.AmountUSDCents,
		Currency:       "USD",
		Reference:      input.Reference,
	})
	switch {
	case railErr == nil:
		record.ExternalTransferID = deposit.TransferID
		record.Status = enums.FiatSettlementStatusCompleted

	case s.shouldSimulate(railErr):
		note := railErr.Error()
		record.ExternalTransferID = "sim_" + uuid.NewString()
		record.Status = enums.FiatSettlementStatusCompletedSimulated
		record.ErrorNote = &note
		if s.logg != nil {
			logCtx := s.logg.WithInvoiceID(ctx, input.InvoiceID.String())
			s.logg.Warn(logCtx, "fiat rail unavailable, payout simulated")
		}

	default:
		return nil, railErr
	}

	if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist fiat settlement: %w", err)
	}

	if s.logg != nil {
		fields := map[string]any{
			"usd_cents":   input.AmountUSDCents,
			"transfer_id": record.ExternalTransferID,
			"status":      record.Status,
		}
		logCtx := s.logg.WithInvoiceID(s.logg.WithFields(ctx, fields), input.InvoiceID.String())
		s.logg.Info(logCtx, "fiat cashout recorded")
	}
	return record, nil
}

// shouldSimulate reports whether a rail error is absorbed into a simulated
// payout. The enabled policy covers every rail failure, outages and
// rejections alike, so a misbehaving rail can never strand an invoice; the
// original error stays on the record for audit.
func (s *service) shouldSimulate(err error) bool {
	return s.simulateOnFailure && err != nil
}
