package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/outbox"
	"github.com/atlaspay-io/atlaspay-backend/pkg/outbox/payloads"
	"github.com/atlaspay-io/atlaspay-backend/pkg/outbox/registry"
)

const consumerName = "invoice-activity"

type repository interface {
	Create(ctx context.Context, record *models.InvoiceActivity) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer tails the invoice events subscription and materializes a
// per-invoice activity feed. Redis idempotency keeps redelivered messages
// from writing duplicate rows.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	decoders     *registry.DecoderRegistry
	idempotency  idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds an invoice activity consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("invoice events subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		decoders:     newInvoiceDecoders(),
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		// Unknown types and undecodable payloads will not improve on redelivery.
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "discarding event without a decoder")
		return processResult{}
	}

	record, err := buildRecord(eventType, eventID, envelope, decoded)
	if err != nil {
		c.logg.Error(logCtx, "failed to build activity record", err)
		return processResult{}
	}

	if err := c.repo.Create(ctx, record); err != nil {
		c.logg.Error(logCtx, "failed to persist activity record", err)
		_ = c.idempotency.Delete(ctx, consumerName, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "invoice_id", record.InvoiceID.String()), "invoice activity recorded")
	return processResult{}
}

// newInvoiceDecoders registers a typed decoder per lifecycle event at the
// current envelope version.
func newInvoiceDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	reg.Register(enums.EventInvoicePaymentDetected, outbox.EnvelopeVersion, decodeInto(func() interface{} { return &payloads.PaymentDetectedEvent{} }))
	reg.Register(enums.EventInvoiceConverted, outbox.EnvelopeVersion, decodeInto(func() interface{} { return &payloads.ConvertedEvent{} }))
	reg.Register(enums.EventInvoiceSettled, outbox.EnvelopeVersion, decodeInto(func() interface{} { return &payloads.SettledEvent{} }))
	reg.Register(enums.EventInvoiceCashedOut, outbox.EnvelopeVersion, decodeInto(func() interface{} { return &payloads.CashedOutEvent{} }))
	reg.Register(enums.EventInvoiceCompleted, outbox.EnvelopeVersion, decodeInto(func() interface{} { return &payloads.CompletedEvent{} }))
	reg.Register(enums.EventInvoiceFailed, outbox.EnvelopeVersion, decodeInto(func() interface{} { return &payloads.FailedEvent{} }))
	return reg
}

func decodeInto(factory func() interface{}) func(json.RawMessage) (interface{}, error) {
	return func(raw json.RawMessage) (interface{}, error) {
		target := factory()
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, err
		}
		return target, nil
	}
}

func buildRecord(eventType enums.OutboxEventType, eventID uuid.UUID, envelope outbox.PayloadEnvelope, decoded interface{}) (*models.InvoiceActivity, error) {
	record := &models.InvoiceActivity{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: envelope.OccurredAt,
	}

	switch p := decoded.(type) {
	case *payloads.PaymentDetectedEvent:
		record.InvoiceID = p.InvoiceID
		record.BusinessID = p.BusinessID
		record.Summary = fmt.Sprintf("payment of %s %s detected on %s", p.AmountNative, p.Asset, p.Chain)
	case *payloads.ConvertedEvent:
		record.InvoiceID = p.InvoiceID
		record.BusinessID = p.BusinessID
		record.Summary = fmt.Sprintf("converted %s %s into %s %s", p.FromAmountNative, p.FromAsset, p.ToAmountNative, p.ToAsset)
	case *payloads.SettledEvent:
		record.InvoiceID = p.InvoiceID
		record.BusinessID = p.BusinessID
		record.Summary = fmt.Sprintf("settled %s %s to %s", p.AmountNative, p.Asset, p.PayoutAddress)
	case *payloads.CashedOutEvent:
		record.InvoiceID = p.InvoiceID
		record.BusinessID = p.BusinessID
		record.Summary = fmt.Sprintf("fiat transfer %s initiated (%s)", p.ExternalTransferID, p.Status)
	case *payloads.CompletedEvent:
		record.InvoiceID = p.InvoiceID
		record.BusinessID = p.BusinessID
		record.Summary = fmt.Sprintf("invoice completed, %s settled", formatUSD(p.TotalUSDCents))
	case *payloads.FailedEvent:
		record.InvoiceID = p.InvoiceID
		record.BusinessID = p.BusinessID
		record.Summary = fmt.Sprintf("pipeline failed at %s: %s", p.Stage, p.Reason)
	default:
		return nil, fmt.Errorf("no activity mapping for %s", eventType)
	}

	if record.InvoiceID == uuid.Nil {
		return nil, errors.New("invoice id missing from payload")
	}
	return record, nil
}

func formatUSD(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
