package watcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

// quoteInvoiceStore reads and rewrites invoices whose quote needs renewing.
type quoteInvoiceStore interface {
	ListByStatus(ctx context.Context, statuses []enums.InvoiceStatus, limit int) ([]models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
}

// quoteIssuer re-locks rates for an invoice's payment options.
type quoteIssuer interface {
	Create(ctx context.Context, paymentOptions []enums.Chain) (types.LockedQuote, error)
}

// QuoteRefreshJobParams configure the quote renewal job.
type QuoteRefreshJobParams struct {
	Logger    *logger.Logger
	Invoices  quoteInvoiceStore
	Quotes    quoteIssuer
	BatchSize int
}

// NewQuoteRefreshJob renews expired quotes on invoices still awaiting
// payment. Expiry is self-healing, never an error: the payer simply gets a
// fresh rate lock with a new window.
func NewQuoteRefreshJob(params QuoteRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentCheckBatch
	}
	return &quoteRefreshJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		quotes:   params.Quotes,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type quoteRefreshJob struct {
	logg     *logger.Logger
	invoices quoteInvoiceStore
	quotes   quoteIssuer
	batch    int
	now      func() time.Time
}

func (j *quoteRefreshJob) Name() string { return "quote-refresh" }

func (j *quoteRefreshJob) Run(ctx context.Context) error {
	open, err := j.invoices.ListByStatus(ctx,
		[]enums.InvoiceStatus{enums.InvoiceStatusSent, enums.InvoiceStatusPending}, j.batch)
	if err != nil {
		return fmt.Errorf("list open invoices: %w", err)
	}

	now := j.now()
	var errs error
	refreshed := 0
	for i := range open {
		invoice := &open[i]
		if invoice.LockedQuote.IsZero() || invoice.LockedQuote.IsValidAt(now) {
			continue
		}
		quote, err := j.quotes.Create(ctx, invoice.PaymentOptions)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", invoice.ID, err))
			continue
		}
		invoice.LockedQuote = quote
		if err := j.invoices.Update(ctx, invoice); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", invoice.ID, err))
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		logCtx := j.logg.WithField(ctx, "refreshed", refreshed)
		j.logg.Info(logCtx, "expired quotes re-locked")
	}
	return errs
}
