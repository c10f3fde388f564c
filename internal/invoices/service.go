package invoices

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/quotes"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

// CreateInput describes a new draft invoice.
type CreateInput struct {
	BusinessID       uuid.UUID            `json:"business_id"`
	Number           string               `json:"number"`
	TotalUSDCents    int64                `json:"total_usd_cents"`
	SettlementTarget enums.Asset          `json:"settlement_target"`
	ConversionMode   enums.ConversionMode `json:"conversion_mode"`
	PaymentOptions   []enums.Chain        `json:"payment_options"`
}

// Service owns the invoice lifecycle up to the point the pipeline takes
// over: drafting, and issuing (provisioning deposit addresses and locking
// the rate quote).
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Invoice, error)
	Issue(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	Get(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
}

type service struct {
	repo       Repository
	businesses BusinessRepository
	registry   *chains.Registry
	quotes     quotes.Service
	logg       *logger.Logger
}

// NewService wires the invoice lifecycle service.
func NewService(repo Repository, businesses BusinessRepository, registry *chains.Registry, quoteSvc quotes.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if businesses == nil {
		return nil, fmt.Errorf("business repository required")
	}
	if registry == nil {
		return nil, fmt.Errorf("chain registry required")
	}
	if quoteSvc == nil {
		return nil, fmt.Errorf("quote service required")
	}
	return &service{repo: repo, businesses: businesses, registry: registry, quotes: quoteSvc, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Invoice, error) {
	if input.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	if input.Number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required")
	}
	if input.TotalUSDCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice total must be positive")
	}
	if !input.SettlementTarget.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement target %q", input.SettlementTarget))
	}
	if input.ConversionMode == "" {
		input.ConversionMode = enums.ConversionModeConvertAndSettle
	}
	if !input.ConversionMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid conversion mode %q", input.ConversionMode))
	}
	if len(input.PaymentOptions) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one payment option is required")
	}
	for _, chain := range input.PaymentOptions {
		if _, err := s.registry.Adapter(chain); err != nil {
			return nil, err
		}
	}

	business, err := s.businesses.FindByID(ctx, input.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}

	invoice := &models.Invoice{
		BusinessID:       input.BusinessID,
		Number:           input.Number,
		TotalUSDCents:    input.TotalUSDCents,
		SettlementTarget: input.SettlementTarget,
		ConversionMode:   input.ConversionMode,
		PaymentOptions:   types.ChainList(input.PaymentOptions),
		Status:           enums.InvoiceStatusDraft,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("persist invoice: %w", err)
	}

	if s.logg != nil {
		logCtx := s.logg.WithInvoiceID(s.logg.WithBusinessID(ctx, input.BusinessID.String()), invoice.ID.String())
		s.logg.Info(logCtx, "invoice drafted")
	}
	return invoice, nil
}

// Issue provisions a deposit address for every payment option, locks the
// rate quote, and moves the invoice from draft to sent. Issuing twice is a
// state conflict.
func (s *service) Issue(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.mustFind(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != enums.InvoiceStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice is %s, only draft invoices can be issued", invoice.Status))
	}

	addresses := make(types.DepositAddressBook, len(invoice.PaymentOptions))
	for _, chain := range invoice.PaymentOptions {
		adapter, err := s.registry.Adapter(chain)
		if err != nil {
			return nil, err
		}
		deposit, err := adapter.GenerateDepositAddress(ctx, invoice.ID)
		if err != nil {
			return nil, fmt.Errorf("provision %s deposit address: %w", chain, err)
		}
		addresses[chain] = deposit
	}

	quote, err := s.quotes.Create(ctx, invoice.PaymentOptions)
	if err != nil {
		return nil, err
	}

	invoice.DepositAddresses = addresses
	invoice.LockedQuote = quote
	invoice.Status = enums.InvoiceStatusSent
	if err := s.repo.Update(ctx, invoice); err != nil {
		return nil, fmt.Errorf("persist issued invoice: %w", err)
	}

	if s.logg != nil {
		fields := map[string]any{
			"payment_options": len(addresses),
			"quote_expires":   quote.ExpiresAt,
		}
		logCtx := s.logg.WithInvoiceID(s.logg.WithFields(ctx, fields), invoice.ID.String())
		s.logg.Info(logCtx, "invoice issued")
	}
	return invoice, nil
}

// Get loads an invoice and, while it is still awaiting payment, re-locks an
// expired quote so the payer always sees a live lock window.
func (s *service) Get(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.mustFind(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.IsAwaitingPayment() || invoice.LockedQuote.IsZero() {
		return invoice, nil
	}

	quote, refreshed, err := s.quotes.Ensure(ctx, invoice.LockedQuote, invoice.PaymentOptions)
	if err != nil {
		return nil, err
	}
	if refreshed {
		invoice.LockedQuote = quote
		if err := s.repo.Update(ctx, invoice); err != nil {
			return nil, fmt.Errorf("persist refreshed quote: %w", err)
		}
		if s.logg != nil {
			s.logg.Info(s.logg.WithInvoiceID(ctx, invoice.ID.String()), "expired quote re-locked")
		}
	}
	return invoice, nil
}

func (s *service) mustFind(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return invoice, nil
}
