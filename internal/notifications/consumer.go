package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/registry"
)

const customerNotificationConsumer = "customer-notifications"

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer delivers queued customer notifications by email.
type Consumer struct {
	repo         Repository
	sender       Sender
	subscription subscriber
	idempotency  idempotencyChecker
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds a customer notification consumer.
func NewConsumer(repo Repository, sender Sender, subscription subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventCustomerNotificationRequested, 1, func(raw json.RawMessage) (interface{}, error) {
		var payload payloads.CustomerNotificationRequestedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	return &Consumer{
		repo:         repo,
		sender:       sender,
		subscription: subscription,
		idempotency:  manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventCustomerNotificationRequested) {
		c.logg.Debug(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, customerNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventCustomerNotificationRequested, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	payload := decoded.(payloads.CustomerNotificationRequestedEvent)
	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())

	if err := c.deliver(ctx, eventID, payload); err != nil {
		c.logg.Error(logCtx, "notification delivery failed", err)
		_ = c.idempotency.Delete(ctx, customerNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	c.logg.Info(c.logg.WithField(logCtx, "kind", payload.Kind), "customer notified")
	return processResult{ack: true}
}

// deliver sends the email and records the outcome. A row already stored for
// the event means an earlier delivery succeeded.
func (c *Consumer) deliver(ctx context.Context, eventID uuid.UUID, payload payloads.CustomerNotificationRequestedEvent) error {
	if _, err := c.repo.FindByEventID(ctx, eventID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	record := &models.CustomerNotification{
		EventID:   eventID,
		OrderID:   payload.OrderID,
		UserID:    payload.UserID,
		Channel:   enums.NotificationChannelEmail,
		Recipient: payload.Recipient,
		Subject:   payload.Subject,
		Body:      payload.Body,
	}
	if payload.Recipient == "" {
		reason := "missing recipient"
		record.FailureReason = &reason
		return c.repo.Create(ctx, record)
	}
	if err := c.sender.Send(ctx, payload.Recipient, payload.Subject, payload.Body); err != nil {
		return err
	}
	sentAt := time.Now().UTC()
	record.SentAt = &sentAt
	return c.repo.Create(ctx, record)
}
