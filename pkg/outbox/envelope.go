package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies which business and component produced the event.
type ActorRef struct {
	BusinessID uuid.UUID  `json:"businessId"`
	InvoiceID  *uuid.UUID `json:"invoiceId,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// EnvelopeVersion is the current payload envelope schema version. Consumers
// key their decoders on it.
const EnvelopeVersion = 1

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
