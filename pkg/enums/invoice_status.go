package enums

import "fmt"

// InvoiceStatus tracks the settlement pipeline lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft        InvoiceStatus = "draft"
	InvoiceStatusSent         InvoiceStatus = "sent"
	InvoiceStatusPending      InvoiceStatus = "pending"
	InvoiceStatusPaidDetected InvoiceStatus = "paid_detected"
	InvoiceStatusConverting   InvoiceStatus = "converting"
	InvoiceStatusSettling     InvoiceStatus = "settling"
	InvoiceStatusCashedOut    InvoiceStatus = "cashed_out"
	InvoiceStatusComplete     InvoiceStatus = "complete"
	InvoiceStatusFailed       InvoiceStatus = "failed"
	InvoiceStatusCancelled    InvoiceStatus = "cancelled"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPending,
	InvoiceStatusPaidDetected,
	InvoiceStatusConverting,
	InvoiceStatusSettling,
	InvoiceStatusCashedOut,
	InvoiceStatusComplete,
	InvoiceStatusFailed,
	InvoiceStatusCancelled,
}

// invoiceStatusGraph is the directed forward-only transition graph. Statuses
// never regress; failed and cancelled are the only off-ramps.
var invoiceStatusGraph = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:        {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:         {InvoiceStatusPending, InvoiceStatusPaidDetected, InvoiceStatusFailed, InvoiceStatusCancelled},
	InvoiceStatusPending:      {InvoiceStatusPaidDetected, InvoiceStatusFailed, InvoiceStatusCancelled},
	InvoiceStatusPaidDetected: {InvoiceStatusConverting, InvoiceStatusSettling, InvoiceStatusFailed},
	InvoiceStatusConverting:   {InvoiceStatusSettling, InvoiceStatusFailed},
	InvoiceStatusSettling:     {InvoiceStatusCashedOut, InvoiceStatusComplete, InvoiceStatusFailed},
	InvoiceStatusCashedOut:    {InvoiceStatusComplete, InvoiceStatusFailed},
	InvoiceStatusComplete:     {},
	InvoiceStatusFailed:       {},
	InvoiceStatusCancelled:    {},
}

// String implements fmt.Stringer.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InvoiceStatus.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s InvoiceStatus) IsTerminal() bool {
	return len(invoiceStatusGraph[s]) == 0 && s.IsValid()
}

// IsAwaitingPayment reports whether payment detection may still run.
func (s InvoiceStatus) IsAwaitingPayment() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusPending
}

// CanTransitionTo reports whether the graph allows moving to next.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, candidate := range invoiceStatusGraph[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
