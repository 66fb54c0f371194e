package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
	"github.com/aurelia-jewels/aurelia-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderReader loads an order with its customer.
type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Notifier queues customer messages. Delivery failures never reach the caller.
type Notifier interface {
	NotifyCustomer(ctx context.Context, orderID uuid.UUID, msg Message)
}

// Service queues customer notifications and lists the delivery log.
type Service interface {
	Notifier
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo   Repository
	orders OrderReader
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// ListParams configures pagination for an order's notifications.
type ListParams struct {
	OrderID uuid.UUID
	Limit   int
	Cursor  string
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.CustomerNotification `json:"items"`
	Cursor string                        `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository, orders OrderReader, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, orders: orders, tx: tx, outbox: outbox, logg: logg}, nil
}

func (s *service) NotifyCustomer(ctx context.Context, orderID uuid.UUID, msg Message) {
	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
		"notification_kind": msg.Kind,
	})
	if err := s.queue(ctx, orderID, msg); err != nil {
		s.logg.Error(ctx, "customer notification not queued", err)
		return
	}
	s.logg.Info(ctx, "customer notification queued")
}

func (s *service) queue(ctx context.Context, orderID uuid.UUID, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	recipient := order.ShippingAddress.Email
	var userID *uuid.UUID
	if order.User != nil {
		userID = &order.User.ID
		if strings.TrimSpace(order.User.Email) != "" {
			recipient = order.User.Email
		}
	}
	if strings.TrimSpace(recipient) == "" {
		return errors.New("customer has no email address")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCustomerNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   order.ID,
			Actor:         outbox.SystemActor(),
			Data: payloads.CustomerNotificationRequestedEvent{
				OrderID:   order.ID,
				ReturnID:  msg.ReturnID,
				UserID:    userID,
				Kind:      string(msg.Kind),
				Recipient: recipient,
				Subject:   msg.Subject,
				Body:      msg.Body,
				Data:      msg.Data,
			},
		})
	})
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	query := listNotificationsParams{
		OrderID: params.OrderID,
		Limit:   params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByOrder(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	if rows == nil {
		rows = []models.CustomerNotification{}
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}
