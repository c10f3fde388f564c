package watcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
)

const defaultPaymentCheckBatch = 100

// openInvoiceReader lists invoices still awaiting payment.
type openInvoiceReader interface {
	ListByStatus(ctx context.Context, statuses []enums.InvoiceStatus, limit int) ([]models.Invoice, error)
}

// paymentChecker is the slice of the pipeline the job drives.
type paymentChecker interface {
	CheckAndProcessPayment(ctx context.Context, invoiceID uuid.UUID) (bool, error)
}

// PaymentCheckJobParams configure the payment polling job.
type PaymentCheckJobParams struct {
	Logger    *logger.Logger
	Invoices  openInvoiceReader
	Pipeline  paymentChecker
	BatchSize int
}

// NewPaymentCheckJob polls every open invoice's enabled chains for inbound
// transfers and runs the settlement pipeline on each match.
func NewPaymentCheckJob(params PaymentCheckJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice reader required")
	}
	if params.Pipeline == nil {
		return nil, fmt.Errorf("pipeline required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentCheckBatch
	}
	return &paymentCheckJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		pipeline: params.Pipeline,
		batch:    batch,
	}, nil
}

type paymentCheckJob struct {
	logg     *logger.Logger
	invoices openInvoiceReader
	pipeline paymentChecker
	batch    int
}

func (j *paymentCheckJob) Name() string { return "payment-check" }

func (j *paymentCheckJob) Run(ctx context.Context) error {
	open, err := j.invoices.ListByStatus(ctx,
		[]enums.InvoiceStatus{enums.InvoiceStatusSent, enums.InvoiceStatusPending}, j.batch)
	if err != nil {
		return fmt.Errorf("list open invoices: %w", err)
	}

	var errs error
	detected := 0
	for _, invoice := range open {
		found, err := j.pipeline.CheckAndProcessPayment(ctx, invoice.ID)
		if err != nil {
			// One bad invoice must not starve the rest of the batch.
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", invoice.ID, err))
			continue
		}
		if found {
			detected++
		}
	}

	if detected > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"open_invoices": len(open),
			"detected":      detected,
		})
		j.logg.Info(logCtx, "payment check cycle found transfers")
	}
	return errs
}
