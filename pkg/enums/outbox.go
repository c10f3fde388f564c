package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateInvoice        OutboxAggregateType = "invoice"
	AggregatePayment        OutboxAggregateType = "payment"
	AggregateSettlement     OutboxAggregateType = "settlement"
	AggregateFiatSettlement OutboxAggregateType = "fiat_settlement"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateInvoice,
	AggregatePayment,
	AggregateSettlement,
	AggregateFiatSettlement,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType enumerates domain events emitted through the outbox.
type OutboxEventType string

const (
	EventInvoicePaymentDetected OutboxEventType = "invoice.payment_detected"
	EventInvoiceConverted       OutboxEventType = "invoice.converted"
	EventInvoiceSettled         OutboxEventType = "invoice.settled"
	EventInvoiceCashedOut       OutboxEventType = "invoice.cashed_out"
	EventInvoiceCompleted       OutboxEventType = "invoice.completed"
	EventInvoiceFailed          OutboxEventType = "invoice.failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInvoicePaymentDetected,
	EventInvoiceConverted,
	EventInvoiceSettled,
	EventInvoiceCashedOut,
	EventInvoiceCompleted,
	EventInvoiceFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
