package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
)

// PaymentDetectedEvent signals that an inbound chain payment covered an invoice.
type PaymentDetectedEvent struct {
	InvoiceID      uuid.UUID   `json:"invoice_id"`
	BusinessID     uuid.UUID   `json:"business_id"`
	PaymentID      uuid.UUID   `json:"payment_id"`
	Chain          enums.Chain `json:"chain"`
	Asset          enums.Asset `json:"asset"`
	AmountNative   string      `json:"amount_native"`
	AmountUSDCents int64       `json:"amount_usd_cents"`
	TxRef          string      `json:"tx_ref"`
	DetectedAt     time.Time   `json:"detected_at"`
}

// ConvertedEvent is emitted when a paid asset has been converted toward the settlement target.
type ConvertedEvent struct {
	InvoiceID        uuid.UUID   `json:"invoice_id"`
	BusinessID       uuid.UUID   `json:"business_id"`
	ConversionID     uuid.UUID   `json:"conversion_id"`
	FromAsset        enums.Asset `json:"from_asset"`
	ToAsset          enums.Asset `json:"to_asset"`
	FromAmountNative string      `json:"from_amount_native"`
	ToAmountNative   string      `json:"to_amount_native"`
	AmountUSDCents   int64       `json:"amount_usd_cents"`
	TxRef            string      `json:"tx_ref"`
}

// SettledEvent is emitted once the crypto leg has been delivered to the payout address.
type SettledEvent struct {
	InvoiceID      uuid.UUID   `json:"invoice_id"`
	BusinessID     uuid.UUID   `json:"business_id"`
	SettlementID   uuid.UUID   `json:"settlement_id"`
	Asset          enums.Asset `json:"asset"`
	AmountNative   string      `json:"amount_native"`
	AmountUSDCents int64       `json:"amount_usd_cents"`
	PayoutAddress  string      `json:"payout_address"`
	TxRef          string      `json:"tx_ref"`
}

// CashedOutEvent reports a fiat transfer initiated on the external rail.
type CashedOutEvent struct {
	InvoiceID          uuid.UUID                  `json:"invoice_id"`
	BusinessID         uuid.UUID                  `json:"business_id"`
	FiatSettlementID   uuid.UUID                  `json:"fiat_settlement_id"`
	AmountUSDCents     int64                      `json:"amount_usd_cents"`
	ExternalTransferID string                     `json:"external_transfer_id"`
	Status             enums.FiatSettlementStatus `json:"status"`
}

// CompletedEvent marks the terminal success of the settlement pipeline.
type CompletedEvent struct {
	InvoiceID        uuid.UUID            `json:"invoice_id"`
	BusinessID       uuid.UUID            `json:"business_id"`
	SettlementTarget enums.Asset          `json:"settlement_target"`
	ConversionMode   enums.ConversionMode `json:"conversion_mode"`
	TotalUSDCents    int64                `json:"total_usd_cents"`
	FinalStatus      enums.InvoiceStatus  `json:"final_status"`
	CompletedAt      time.Time            `json:"completed_at"`
}

// FailedEvent records a pipeline run that ended in the failed state.
type FailedEvent struct {
	InvoiceID  uuid.UUID           `json:"invoice_id"`
	BusinessID uuid.UUID           `json:"business_id"`
	Stage      string              `json:"stage"`
	Status     enums.InvoiceStatus `json:"status"`
	Reason     string              `json:"reason"`
	FailedAt   time.Time           `json:"failed_at"`
}
