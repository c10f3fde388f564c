package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// Step statuses as surfaced to the UI layer.
const (
	StepComplete   = "complete"
	StepInProgress = "in_progress"
	StepPending    = "pending"
	StepFailed     = "failed"
	StepSkipped    = "skipped"
)

// Step is one entry in the ordered pipeline projection.
type Step struct {
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	TxRef      string     `json:"tx_ref,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// Summary is the read model the UI renders without re-deriving any business
// rules: the invoice's current state plus an ordered list of pipeline steps.
type Summary struct {
	InvoiceID             uuid.UUID            `json:"invoice_id"`
	Status                enums.InvoiceStatus  `json:"status"`
	SettlementTarget      enums.Asset          `json:"settlement_target"`
	ConversionMode        enums.ConversionMode `json:"conversion_mode"`
	TotalUSDCents         int64                `json:"total_usd_cents"`
	TotalUSD              string               `json:"total_usd"`
	QuoteSecondsRemaining int64                `json:"quote_seconds_remaining"`
	Steps                 []Step               `json:"steps"`
}

// Summary builds the ordered step projection for one invoice.
func (s *service) Summary(ctx context.Context, invoiceID uuid.UUID) (*Summary, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	payments, err := s.deps.Payments.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	conversions, err := s.deps.ConversionLog.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.deps.SettlementLog.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	fiatSettlements, err := s.deps.CashoutLog.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	failed := invoice.Status == enums.InvoiceStatusFailed
	steps := make([]Step, 0, 5)

	// Issued.
	issued := Step{Name: "issued", Status: StepPending}
	if !invoice.LockedQuote.IsZero() {
		lockedAt := invoice.LockedQuote.LockedAt
		issued.Status = StepComplete
		issued.Detail = fmt.Sprintf("awaiting payment of %s", formatUSDCents(invoice.TotalUSDCents))
		issued.OccurredAt = &lockedAt
	}
	steps = append(steps, issued)

	// Payment detected.
	detected := Step{Name: "payment_detected", Status: StepPending}
	if len(payments) > 0 {
		payment := payments[len(payments)-1]
		detectedAt := payment.DetectedAt
		detected.Status = StepComplete
		detected.Detail = fmt.Sprintf("%s %s on %s (%s)",
			s.formatNative(payment.Asset, payment.AmountNative), payment.Asset, payment.Chain,
			formatUSDCents(payment.AmountUSDCents))
		detected.TxRef = payment.TxRef
		detected.OccurredAt = &detectedAt
	} else if failed {
		detected.Status = StepSkipped
	}
	steps = append(steps, detected)

	// Conversion leg.
	converted := Step{Name: "converted", Status: StepPending}
	switch {
	case len(conversions) > 0:
		conv := conversions[len(conversions)-1]
		createdAt := conv.CreatedAt
		converted.Status = StepComplete
		converted.Detail = fmt.Sprintf("%s %s to %s %s",
			s.formatNative(conv.FromAsset, conv.FromAmount), conv.FromAsset,
			s.formatNative(conv.ToAsset, conv.ToAmount), conv.ToAsset)
		converted.TxRef = conv.TxRef
		converted.OccurredAt = &createdAt
	case conversionImpossible(invoice.Status):
		converted.Status = StepSkipped
	case invoice.Status == enums.InvoiceStatusConverting:
		converted.Status = StepInProgress
	}
	steps = append(steps, converted)

	// Delivery leg: crypto payout or fiat cashout.
	if len(fiatSettlements) > 0 || (invoice.SettlementTarget.IsFiat() && invoice.ConversionMode != enums.ConversionModeReceiveInKind) {
		cashedOut := Step{Name: "cashed_out", Status: StepPending}
		if len(fiatSettlements) > 0 {
			fiat := fiatSettlements[len(fiatSettlements)-1]
			createdAt := fiat.CreatedAt
			cashedOut.Status = StepComplete
			cashedOut.Detail = fmt.Sprintf("%s to bank account %s", formatUSDCents(fiat.AmountUSDCents), fiat.BankAccountID)
			if fiat.Status == enums.FiatSettlementStatusCompletedSimulated {
				cashedOut.Detail += " (simulated)"
			}
			cashedOut.TxRef = fiat.ExternalTransferID
			cashedOut.OccurredAt = &createdAt
		} else if failed {
			cashedOut.Status = StepFailed
		} else if invoice.Status == enums.InvoiceStatusSettling {
			cashedOut.Status = StepInProgress
		}
		steps = append(steps, cashedOut)
	} else {
		settled := Step{Name: "settled", Status: StepPending}
		if len(settlements) > 0 {
			record := settlements[len(settlements)-1]
			createdAt := record.CreatedAt
			settled.Status = StepComplete
			settled.Detail = fmt.Sprintf("%s %s to %s",
				s.formatNative(record.Asset, record.AmountNative), record.Asset, record.ToAddress)
			settled.TxRef = record.TxRef
			settled.OccurredAt = &createdAt
		} else if failed {
			settled.Status = StepFailed
		} else if invoice.Status == enums.InvoiceStatusSettling {
			settled.Status = StepInProgress
		}
		steps = append(steps, settled)
	}

	// Terminal.
	terminal := Step{Name: "complete", Status: StepPending}
	switch invoice.Status {
	case enums.InvoiceStatusComplete:
		terminal.Status = StepComplete
	case enums.InvoiceStatusFailed:
		terminal.Name = "failed"
		terminal.Status = StepFailed
	case enums.InvoiceStatusCancelled:
		terminal.Name = "cancelled"
		terminal.Status = StepComplete
	}
	steps = append(steps, terminal)

	return &Summary{
		InvoiceID:             invoice.ID,
		Status:                invoice.Status,
		SettlementTarget:      invoice.SettlementTarget,
		ConversionMode:        invoice.ConversionMode,
		TotalUSDCents:         invoice.TotalUSDCents,
		TotalUSD:              formatUSDCents(invoice.TotalUSDCents),
		QuoteSecondsRemaining: invoice.LockedQuote.SecondsRemaining(time.Now()),
		Steps:                 steps,
	}, nil
}

// conversionImpossible reports whether the run has advanced past the point
// where a conversion leg could still happen without one being recorded.
func conversionImpossible(status enums.InvoiceStatus) bool {
	switch status {
	case enums.InvoiceStatusSettling, enums.InvoiceStatusCashedOut, enums.InvoiceStatusComplete,
		enums.InvoiceStatusFailed, enums.InvoiceStatusCancelled:
		return true
	}
	return false
}

func (s *service) formatNative(asset enums.Asset, amount string) string {
	if asset.IsFiat() {
		cents, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return amount
		}
		return formatUSDCents(cents.Int64())
	}
	adapter, err := s.deps.Registry.AdapterForAsset(asset)
	if err != nil {
		return amount
	}
	native, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return amount
	}
	return adapter.FormatAmount(native)
}

func formatUSDCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
