package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/internal/cashout"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/conversion"
	"github.com/atlaspay-io/atlaspay-backend/internal/invoices"
	"github.com/atlaspay-io/atlaspay-backend/internal/settlement"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/metrics"
	"github.com/atlaspay-io/atlaspay-backend/pkg/outbox"
	"github.com/atlaspay-io/atlaspay-backend/pkg/outbox/payloads"
)

// TxRunner executes a function inside a database transaction. Satisfied by
// pkg/db.Client.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EventEmitter is the slice of the outbox service the pipeline uses.
// Satisfied by *outbox.Service.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StageHook runs between pipeline stages. It exists purely for demo pacing
// and observability; correctness never depends on it. Nil means no-op.
type StageHook func(ctx context.Context, stage string)

// PaymentDetails carries the evidence of one detected inbound transfer into
// the pipeline.
type PaymentDetails struct {
	Chain         enums.Chain
	TxRef         string
	AmountNative  *big.Int
	Confirmations int
	DetectedAt    time.Time
}

// Service drives an invoice through the settlement state machine:
// sent/pending, paid_detected, optional converting, settling, optional
// cashed_out, complete. Status moves only forward; failed and cancelled are
// terminal. Every transition writes its evidence record and queues an outbox
// event in the same transaction.
type Service interface {
	ProcessPayment(ctx context.Context, invoiceID uuid.UUID, details PaymentDetails) (*models.Invoice, error)
	CheckAndProcessPayment(ctx context.Context, invoiceID uuid.UUID) (bool, error)
	Summary(ctx context.Context, invoiceID uuid.UUID) (*Summary, error)
}

// Deps bundles the collaborators the pipeline orchestrates.
type Deps struct {
	Tx          TxRunner
	Invoices    invoices.Repository
	Businesses  invoices.BusinessRepository
	Payments    PaymentRepository
	Registry    *chains.Registry
	Conversions conversion.Service
	Settlements settlement.Service
	Cashouts    cashout.Service

	// Evidence logs backing the summary projection.
	ConversionLog conversion.Repository
	SettlementLog settlement.Repository
	CashoutLog    cashout.Repository

	Outbox    EventEmitter
	Metrics   *metrics.PipelineMetrics
	StageHook StageHook
	Logger    *logger.Logger
}

type service struct {
	deps Deps
}

// NewService wires the pipeline orchestrator.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Invoices == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if deps.Businesses == nil {
		return nil, fmt.Errorf("business repository required")
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("chain registry required")
	}
	if deps.Conversions == nil {
		return nil, fmt.Errorf("conversion service required")
	}
	if deps.Settlements == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if deps.Cashouts == nil {
		return nil, fmt.Errorf("cashout service required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.ConversionLog == nil || deps.SettlementLog == nil || deps.CashoutLog == nil {
		return nil, fmt.Errorf("evidence repositories required")
	}
	return &service{deps: deps}, nil
}

var payableStatuses = []enums.InvoiceStatus{enums.InvoiceStatusSent, enums.InvoiceStatusPending}

// CheckAndProcessPayment polls every enabled chain for a transfer covering
// the quote-derived expected amount and runs the pipeline on the first
// match. It no-ops (false, nil) when the invoice is past the payable states,
// which makes repeated triggers harmless.
func (s *service) CheckAndProcessPayment(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	if !invoice.Status.IsAwaitingPayment() {
		return false, nil
	}
	if invoice.LockedQuote.IsZero() {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice has no locked quote")
	}

	for _, chain := range invoice.PaymentOptions {
		adapter, err := s.deps.Registry.Adapter(chain)
		if err != nil {
			return false, err
		}
		deposit, ok := invoice.DepositAddresses[chain]
		if !ok {
			continue
		}
		rate, err := invoice.LockedQuote.Rate(adapter.NativeAsset())
		if err != nil {
			return false, err
		}
		expected, err := adapter.USDToNative(invoice.TotalUSDCents, rate)
		if err != nil {
			return false, err
		}
		match, err := adapter.CheckPayment(ctx, deposit, expected)
		if err != nil {
			return false, err
		}
		if match == nil {
			continue
		}

		details := PaymentDetails{
			Chain:         chain,
			TxRef:         match.TxRef,
			AmountNative:  match.Amount,
			Confirmations: match.Confirmations,
			DetectedAt:    match.DetectedAt,
		}
		if _, err := s.ProcessPayment(ctx, invoiceID, details); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// ProcessPayment runs the full settlement pipeline for one detected payment.
// A compare-and-swap on the invoice status gates entry, so concurrent
// triggers for the same invoice resolve to exactly one run; the loser gets a
// state-conflict error and no records are written. Failures past detection
// leave the invoice failed with all evidence created so far intact.
func (s *service) ProcessPayment(ctx context.Context, invoiceID uuid.UUID, details PaymentDetails) (*models.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	business, err := s.deps.Businesses.FindByID(ctx, invoice.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	if err := s.validateDetails(details); err != nil {
		return nil, err
	}

	adapter, err := s.deps.Registry.Adapter(details.Chain)
	if err != nil {
		return nil, err
	}
	paidAsset := adapter.NativeAsset()
	rate, err := invoice.LockedQuote.Rate(paidAsset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "quote missing rate for paid asset")
	}
	paidUSDCents, err := adapter.NativeToUSD(details.AmountNative, rate)
	if err != nil {
		return nil, err
	}

	ctx = s.logCtx(ctx, invoice, details.Chain)

	// Stage 1: claim the invoice and record the payment.
	if err := s.detectPayment(ctx, invoice, details, paidAsset, paidUSDCents); err != nil {
		return nil, err
	}
	s.deps.Metrics.IncDetection(details.Chain.String())
	s.hook(ctx, "paid_detected")

	settleAsset := invoice.SettlementTarget
	if invoice.ConversionMode == enums.ConversionModeReceiveInKind {
		settleAsset = paidAsset
	}

	// Stage 2: conversion leg, when the paid asset is not the settle asset.
	settleNative := new(big.Int).Set(details.AmountNative)
	settleUSDCents := paidUSDCents
	if s.deps.Conversions.IsConversionNeeded(paidAsset, settleAsset, invoice.ConversionMode) {
		conv, err := s.convert(ctx, invoice, paidAsset, settleAsset, details.AmountNative, paidUSDCents)
		if err != nil {
			return nil, s.fail(ctx, invoice, "converting", err)
		}
		settleUSDCents = conv.ToAmountUSDCents
		if settleAsset.IsCrypto() {
			parsed, ok := new(big.Int).SetString(conv.ToAmount, 10)
			if !ok {
				return nil, s.fail(ctx, invoice, "converting",
					pkgerrors.New(pkgerrors.CodeInternal, "conversion produced a malformed amount"))
			}
			settleNative = parsed
		}
		s.hook(ctx, "converting")
	}

	// Stage 3: deliver to the merchant, crypto payout or bank rail.
	if settleAsset.IsCrypto() {
		if err := s.settleCrypto(ctx, invoice, business, settleAsset, settleNative, settleUSDCents); err != nil {
			return nil, s.fail(ctx, invoice, "settling", err)
		}
	} else {
		if err := s.settleFiat(ctx, invoice, business); err != nil {
			return nil, s.fail(ctx, invoice, "settling", err)
		}
	}

	s.deps.Metrics.IncRun(settleAsset.String())
	if s.deps.Logger != nil {
		s.deps.Logger.Info(ctx, "pipeline run complete")
	}

	return s.loadInvoice(ctx, invoiceID)
}

func (s *service) detectPayment(ctx context.Context, invoice *models.Invoice, details PaymentDetails, paidAsset enums.Asset, paidUSDCents int64) error {
	started := time.Now()
	payment := &models.Payment{
		InvoiceID:      invoice.ID,
		Chain:          details.Chain,
		Asset:          paidAsset,
		AmountNative:   details.AmountNative.String(),
		AmountUSDCents: paidUSDCents,
		TxRef:          details.TxRef,
		Confirmations:  details.Confirmations,
		DetectedAt:     details.DetectedAt,
	}

	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := s.deps.Invoices.WithTx(tx).UpdateStatusIf(ctx, invoice.ID, payableStatuses, enums.InvoiceStatusPaidDetected)
		if err != nil {
			return err
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("invoice is %s, payment already being processed", invoice.Status))
		}

		if err := s.deps.Payments.WithTx(tx).Create(ctx, payment); err != nil {
			return fmt.Errorf("persist payment: %w", err)
		}

		invoice.Status = enums.InvoiceStatusPaidDetected
		invoice.LockedQuote.PaidChain = &details.Chain
		invoice.LockedQuote.PaidAsset = &paidAsset
		amountStr := details.AmountNative.String()
		invoice.LockedQuote.PaidAmount = &amountStr
		invoice.LockedQuote.PaidAmountUSDCents = &paidUSDCents
		detectedAt := details.DetectedAt
		invoice.LockedQuote.PaidAt = &detectedAt
		if err := s.deps.Invoices.WithTx(tx).Update(ctx, invoice); err != nil {
			return fmt.Errorf("lock payment onto quote: %w", err)
		}

		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoicePaymentDetected,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         s.actor(invoice),
			Data: payloads.PaymentDetectedEvent{
				InvoiceID:      invoice.ID,
				BusinessID:     invoice.BusinessID,
				PaymentID:      payment.ID,
				Chain:          details.Chain,
				Asset:          paidAsset,
				AmountNative:   payment.AmountNative,
				AmountUSDCents: paidUSDCents,
				TxRef:          details.TxRef,
				DetectedAt:     details.DetectedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	s.deps.Metrics.ObserveStage("paid_detected", time.Since(started))
	return nil
}

func (s *service) convert(ctx context.Context, invoice *models.Invoice, fromAsset, toAsset enums.Asset, fromAmount *big.Int, usdCents int64) (*models.Conversion, error) {
	started := time.Now()
	var conv *models.Conversion
	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.deps.Invoices.WithTx(tx).UpdateStatusIf(ctx, invoice.ID,
			[]enums.InvoiceStatus{enums.InvoiceStatusPaidDetected}, enums.InvoiceStatusConverting)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice left paid_detected before conversion")
		}
		invoice.Status = enums.InvoiceStatusConverting

		conv, err = s.deps.Conversions.Execute(ctx, tx, conversion.ExecuteInput{
			InvoiceID:      invoice.ID,
			FromAsset:      fromAsset,
			FromAmount:     fromAmount,
			ToAsset:        toAsset,
			AmountUSDCents: usdCents,
			Quote:          invoice.LockedQuote,
		})
		if err != nil {
			return err
		}

		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceConverted,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         s.actor(invoice),
			Data: payloads.ConvertedEvent{
				InvoiceID:        invoice.ID,
				BusinessID:       invoice.BusinessID,
				ConversionID:     conv.ID,
				FromAsset:        fromAsset,
				ToAsset:          toAsset,
				FromAmountNative: conv.FromAmount,
				ToAmountNative:   conv.ToAmount,
				AmountUSDCents:   conv.ToAmountUSDCents,
				TxRef:            conv.TxRef,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.ObserveStage("converting", time.Since(started))
	return conv, nil
}

func (s *service) settleCrypto(ctx context.Context, invoice *models.Invoice, business *models.Business, asset enums.Asset, amountNative *big.Int, usdCents int64) error {
	started := time.Now()
	payoutAddress := business.PayoutAddress(asset)
	if payoutAddress == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidPayoutAddress,
			fmt.Sprintf("business has no payout address for %s", asset))
	}

	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.deps.Invoices.WithTx(tx).UpdateStatusIf(ctx, invoice.ID,
			[]enums.InvoiceStatus{enums.InvoiceStatusPaidDetected, enums.InvoiceStatusConverting}, enums.InvoiceStatusSettling)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice not ready for settlement")
		}
		invoice.Status = enums.InvoiceStatusSettling

		record, err := s.deps.Settlements.Execute(ctx, tx, settlement.ExecuteInput{
			InvoiceID:      invoice.ID,
			Asset:          asset,
			AmountNative:   amountNative,
			AmountUSDCents: usdCents,
			PayoutAddress:  payoutAddress,
		})
		if err != nil {
			return err
		}

		if err := s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceSettled,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         s.actor(invoice),
			Data: payloads.SettledEvent{
				InvoiceID:      invoice.ID,
				BusinessID:     invoice.BusinessID,
				SettlementID:   record.ID,
				Asset:          asset,
				AmountNative:   record.AmountNative,
				AmountUSDCents: record.AmountUSDCents,
				PayoutAddress:  payoutAddress,
				TxRef:          record.TxRef,
			},
		}); err != nil {
			return err
		}

		return s.complete(ctx, tx, invoice, enums.InvoiceStatusSettling)
	})
	if err != nil {
		return err
	}
	s.deps.Metrics.ObserveStage("settling", time.Since(started))
	s.hook(ctx, "settling")
	return nil
}

func (s *service) settleFiat(ctx context.Context, invoice *models.Invoice, business *models.Business) error {
	started := time.Now()
	if business.BankAccountID == nil || *business.BankAccountID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "business has no bank account configured")
	}

	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.deps.Invoices.WithTx(tx).UpdateStatusIf(ctx, invoice.ID,
			[]enums.InvoiceStatus{enums.InvoiceStatusPaidDetected, enums.InvoiceStatusConverting}, enums.InvoiceStatusSettling)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice not ready for settlement")
		}
		invoice.Status = enums.InvoiceStatusSettling

		// Fiat settlement always nets to the invoice's full USD total.
		record, err := s.deps.Cashouts.Execute(ctx, tx, cashout.ExecuteInput{
			InvoiceID:      invoice.ID,
			AmountUSDCents: invoice.TotalUSDCents,
			BankAccountID:  *business.BankAccountID,
			Reference:      "invoice-" + invoice.Number,
		})
		if err != nil {
			return err
		}

		moved, err = s.deps.Invoices.WithTx(tx).UpdateStatusIf(ctx, invoice.ID,
			[]enums.InvoiceStatus{enums.InvoiceStatusSettling}, enums.InvoiceStatusCashedOut)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice left settling before cashout")
		}
		invoice.Status = enums.InvoiceStatusCashedOut

		if err := s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceCashedOut,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         s.actor(invoice),
			Data: payloads.CashedOutEvent{
				InvoiceID:          invoice.ID,
				BusinessID:         invoice.BusinessID,
				FiatSettlementID:   record.ID,
				AmountUSDCents:     record.AmountUSDCents,
				ExternalTransferID: record.ExternalTransferID,
				Status:             record.Status,
			},
		}); err != nil {
			return err
		}

		return s.complete(ctx, tx, invoice, enums.InvoiceStatusCashedOut)
	})
	if err != nil {
		return err
	}
	s.deps.Metrics.ObserveStage("settling", time.Since(started))
	s.hook(ctx, "cashed_out")
	return nil
}

func (s *service) complete(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, from enums.InvoiceStatus) error {
	moved, err := s.deps.Invoices.WithTx(tx).UpdateStatusIf(ctx, invoice.ID,
		[]enums.InvoiceStatus{from}, enums.InvoiceStatusComplete)
	if err != nil {
		return err
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice moved out of "+from.String())
	}
	invoice.Status = enums.InvoiceStatusComplete

	return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceCompleted,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Actor:         s.actor(invoice),
		Data: payloads.CompletedEvent{
			InvoiceID:        invoice.ID,
			BusinessID:       invoice.BusinessID,
			SettlementTarget: invoice.SettlementTarget,
			ConversionMode:   invoice.ConversionMode,
			TotalUSDCents:    invoice.TotalUSDCents,
			FinalStatus:      enums.InvoiceStatusComplete,
			CompletedAt:      time.Now(),
		},
	})
}

// fail moves the invoice to the terminal failed state and queues the failure
// event. Evidence records written before the failure are kept. The original
// error is returned so the caller sees why the run died.
func (s *service) fail(ctx context.Context, invoice *models.Invoice, stage string, cause error) error {
	s.deps.Metrics.IncFailure(stage)
	if s.deps.Logger != nil {
		s.deps.Logger.Error(ctx, "pipeline run failed at "+stage, cause)
	}

	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.deps.Invoices.WithTx(tx).UpdateStatusIf(ctx, invoice.ID,
			[]enums.InvoiceStatus{enums.InvoiceStatusPaidDetected, enums.InvoiceStatusConverting, enums.InvoiceStatusSettling},
			enums.InvoiceStatusFailed)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		invoice.Status = enums.InvoiceStatusFailed

		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceFailed,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         s.actor(invoice),
			Data: payloads.FailedEvent{
				InvoiceID:  invoice.ID,
				BusinessID: invoice.BusinessID,
				Stage:      stage,
				Status:     enums.InvoiceStatusFailed,
				Reason:     cause.Error(),
				FailedAt:   time.Now(),
			},
		})
	})
	if err != nil && s.deps.Logger != nil {
		s.deps.Logger.Error(ctx, "could not mark invoice failed", err)
	}
	return cause
}

func (s *service) loadInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.deps.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return invoice, nil
}

func (s *service) validateDetails(details PaymentDetails) error {
	if details.AmountNative == nil || details.AmountNative.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if details.TxRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment tx reference is required")
	}
	if details.DetectedAt.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment detection time is required")
	}
	return nil
}

func (s *service) actor(invoice *models.Invoice) *outbox.ActorRef {
	id := invoice.ID
	return &outbox.ActorRef{
		BusinessID: invoice.BusinessID,
		InvoiceID:  &id,
		Source:     "pipeline",
	}
}

func (s *service) hook(ctx context.Context, stage string) {
	if s.deps.StageHook != nil {
		s.deps.StageHook(ctx, stage)
	}
}

func (s *service) logCtx(ctx context.Context, invoice *models.Invoice, chain enums.Chain) context.Context {
	if s.deps.Logger == nil {
		return ctx
	}
	ctx = s.deps.Logger.WithInvoiceID(ctx, invoice.ID.String())
	ctx = s.deps.Logger.WithBusinessID(ctx, invoice.BusinessID.String())
	return s.deps.Logger.WithChain(ctx, chain.String())
}
