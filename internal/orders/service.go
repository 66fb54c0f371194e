package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/internal/inventory"
	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockRestorer puts an order's reserved stock back on the shelf.
type StockRestorer interface {
	Restore(ctx context.Context, orderID uuid.UUID, reason string) (*inventory.Result, error)
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*CancelResult, error)
}

// CancelInput identifies the order to cancel and who asked for it.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID *uuid.UUID
	Reason  string
}

// CancelResult reports the cancelled order and the stock restoration outcome.
// Inventory failures do not undo the cancellation.
type CancelResult struct {
	Order          *models.Order     `json:"order"`
	Inventory      *inventory.Result `json:"inventory,omitempty"`
	InventoryError string            `json:"inventory_error,omitempty"`
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory StockRestorer
	notifier  notifications.Notifier
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, inventory StockRestorer, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		inventory: inventory,
		notifier:  notifier,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*CancelResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	cancelledAt := s.now().UTC()

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err)
		}
		if !cancellable(current.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be cancelled", current.Status))
		}
		if current.Shipment != nil && current.Shipment.AWBCode != "" {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already handed to courier")
		}

		ok, err := repo.UpdateStatus(ctx, current.ID, current.Status, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": cancelledAt,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		actor := outbox.SystemActor()
		if input.ActorID != nil {
			actor = &outbox.ActorRef{UserID: input.ActorID, Role: enums.RoleAdmin.String()}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Actor:         actor,
			Data: payloads.OrderCancelledEvent{
				OrderID:     current.ID,
				OrderNumber: current.OrderNumber,
				CancelledAt: cancelledAt,
				Reason:      reason,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order cancelled")
		}

		current.Status = enums.OrderStatusCancelled
		current.CancelledAt = &cancelledAt
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CancelResult{Order: order}
	restored, err := s.inventory.Restore(ctx, order.ID, inventory.ReasonOrderCancelled)
	if err != nil {
		s.logg.Error(ctx, "stock restore after cancellation failed", err)
		result.InventoryError = err.Error()
	} else {
		result.Inventory = restored
	}

	s.notifier.NotifyCustomer(ctx, order.ID, notifications.OrderCancelled(order.OrderNumber, reason))
	s.logg.Info(s.logg.WithField(ctx, "reason", reason), "order cancelled")
	return result, nil
}

func cancellable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusConfirmed
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
