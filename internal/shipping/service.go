package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/internal/orders"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/courier"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/metrics"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
	"github.com/aurelia-jewels/aurelia-backend/pkg/pagination"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 3
	scanFactor         = 4
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CourierGateway is the subset of the courier API used for outbound orders.
type CourierGateway interface {
	CreateOrder(ctx context.Context, req courier.ForwardOrderRequest) (*courier.OrderResponse, error)
	Serviceability(ctx context.Context, q courier.ServiceabilityQuery) ([]courier.CourierOption, error)
	AssignAWB(ctx context.Context, shipmentID courier.ID, courierID int, isReturn bool) (*courier.AWBAssignment, error)
	GeneratePickup(ctx context.Context, shipmentID courier.ID) (*courier.PickupConfirmation, error)
	TrackByAWB(ctx context.Context, awb string) (*courier.TrackingInfo, error)
	TrackingURL(awb string) string
}

// Summary is the outcome of a shipping sweep.
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (s *Summary) record(err error) {
	s.Processed++
	if err == nil {
		s.Succeeded++
		return
	}
	s.Failed++
}

// Service hands paid orders to the courier and follows them to delivery.
type Service interface {
	ShipOrder(ctx context.Context, orderID uuid.UUID) (*types.OrderShipment, error)
	AutoShipOrders(ctx context.Context) (*Summary, error)
	RetryFailedShipments(ctx context.Context) (*Summary, error)
	CheckDeliveredOrders(ctx context.Context) (*Summary, error)
}

type service struct {
	repo      orders.Repository
	tx        txRunner
	outbox    outboxPublisher
	courier   CourierGateway
	notifier  notifications.Notifier
	warehouse config.WarehouseConfig
	cfg       config.ShippingConfig
	logg      *logger.Logger
	metrics   *metrics.ReturnsMetrics
	limit     int
	now       func() time.Time
}

// NewService builds the forward shipping service.
func NewService(
	repo orders.Repository,
	tx txRunner,
	outbox outboxPublisher,
	gateway CourierGateway,
	notifier notifications.Notifier,
	warehouse config.WarehouseConfig,
	cfg config.ShippingConfig,
	logg *logger.Logger,
	m *metrics.ReturnsMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !types.ValidPostalCode(warehouse.PostalCode) {
		return nil, fmt.Errorf("warehouse postal code required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		courier:   gateway,
		notifier:  notifier,
		warehouse: warehouse,
		cfg:       cfg,
		logg:      logg,
		metrics:   m,
		limit:     defaultBatchSize,
		now:       time.Now,
	}, nil
}

func (s *service) ShipOrder(ctx context.Context, orderID uuid.UUID) (*types.OrderShipment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be shipped", order.Status))
	}
	if !order.PaymentCompleted() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment is not completed")
	}
	return s.ship(ctx, order)
}

func (s *service) AutoShipOrders(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	if !s.cfg.AutoShip {
		return summary, nil
	}
	cutoff := s.now().UTC().Add(-s.cfg.AutoShipDelay())
	pending, err := s.repo.ListAwaitingShipment(ctx, cutoff, s.limit)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders awaiting shipment")
	}
	s.sweep(ctx, pending, summary)
	s.logSweep(ctx, "auto-ship sweep finished", summary)
	return summary, nil
}

func (s *service) RetryFailedShipments(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	retryable, err := s.listRetryable(ctx)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list confirmed orders")
	}
	s.sweep(ctx, retryable, summary)
	s.logSweep(ctx, "shipment retry sweep finished", summary)
	return summary, nil
}

// listRetryable pages through confirmed orders until it has a full batch of
// failed shipments with attempts left. Orders parked at the attempt ceiling
// stay confirmed, so a single capped read would be crowded out by them.
func (s *service) listRetryable(ctx context.Context) ([]models.Order, error) {
	pageSize := s.limit * scanFactor
	retryable := make([]models.Order, 0, s.limit)
	var cursor *pagination.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.repo.ListByStatusAfter(ctx, enums.OrderStatusConfirmed, cursor, pageSize)
		if err != nil {
			return nil, err
		}
		for _, order := range rows {
			sh := order.Shipment
			if sh != nil && sh.Status == enums.ShipmentStatusFailed && sh.Attempts < s.cfg.MaxAttempts {
				retryable = append(retryable, order)
				if len(retryable) == s.limit {
					return retryable, nil
				}
			}
		}
		if len(rows) < pageSize {
			return retryable, nil
		}
		last := rows[len(rows)-1]
		cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

func (s *service) sweep(ctx context.Context, batch []models.Order, summary *Summary) {
	for i := range batch {
		if ctx.Err() != nil {
			return
		}
		order := &batch[i]
		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		_, err := s.ship(orderCtx, order)
		if err != nil {
			s.logg.Warn(orderCtx, "shipment failed: "+err.Error())
		}
		summary.record(err)
	}
}

// ship books the courier order, assigns a courier and requests pickup.
// Steps already completed on an earlier attempt are skipped.
func (s *service) ship(ctx context.Context, order *models.Order) (*types.OrderShipment, error) {
	shipment := types.OrderShipment{Status: enums.ShipmentStatusCreated}
	if order.Shipment != nil {
		shipment = *order.Shipment
	}

	if err := validateForShipment(order); err != nil {
		// Bad address data is not retried until an operator fixes it.
		shipment.Attempts = s.cfg.MaxAttempts
		s.markFailed(ctx, order, shipment, err)
		return nil, err
	}

	shipment.Attempts++
	if shipment.ShipmentID == "" {
		resp, err := s.courier.CreateOrder(ctx, buildForwardOrder(order, s.warehouse, s.now()))
		if err == nil && !resp.Accepted() {
			err = errors.New("courier returned no shipment id")
		}
		if err != nil {
			wrapped := pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier order creation failed")
			s.markFailed(ctx, order, shipment, wrapped)
			return nil, wrapped
		}
		shipment.ShipmentID = resp.ShipmentID.String()
		shipment.CourierOrderID = resp.OrderID.String()
	}

	if shipment.AWBCode == "" {
		if err := s.assignCourier(ctx, order, &shipment); err != nil {
			wrapped := pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier assignment failed")
			s.markFailed(ctx, order, shipment, wrapped)
			return nil, wrapped
		}
	}

	if _, err := s.courier.GeneratePickup(ctx, courier.ID(shipment.ShipmentID)); err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier pickup request failed")
		s.markFailed(ctx, order, shipment, wrapped)
		return nil, wrapped
	}

	shippedAt := s.now().UTC()
	shipment.Status = enums.ShipmentStatusPickupScheduled
	shipment.ShippedAt = &shippedAt
	shipment.LastError = ""

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed, enums.OrderStatusShipped, map[string]any{
			"shipment": &shipment,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order shipped")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		return s.emit(ctx, tx, order.ID, enums.EventOrderShipped, payloads.OrderShippedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			AWBCode:     shipment.AWBCode,
			CourierName: shipment.CourierName,
			TrackingURL: shipment.TrackingURL,
			ShippedAt:   shippedAt,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "recording shipped order failed", err)
		if saveErr := s.repo.UpdateShipment(ctx, order.ID, shipment); saveErr != nil {
			s.logg.Error(ctx, "saving shipment failed", saveErr)
		}
		return nil, err
	}

	s.metrics.IncShipment("shipped")
	s.notifier.NotifyCustomer(ctx, order.ID, notifications.OrderShipped(order.OrderNumber, shipment.AWBCode, shipment.CourierName, shipment.TrackingURL))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"awb":      shipment.AWBCode,
		"courier":  shipment.CourierName,
		"attempts": shipment.Attempts,
	}), "order shipped")
	return &shipment, nil
}

func (s *service) assignCourier(ctx context.Context, order *models.Order, shipment *types.OrderShipment) error {
	options, err := s.courier.Serviceability(ctx, courier.ServiceabilityQuery{
		PickupPostcode:   s.warehouse.PostalCode,
		DeliveryPostcode: strings.TrimSpace(order.ShippingAddress.PostalCode),
		WeightKg:         courier.ParcelWeight(unitCount(order)),
	})
	if err != nil {
		return err
	}
	option, ok := courier.SelectCourier(options)
	if !ok {
		return errors.New("no courier serves this postal code")
	}
	assignment, err := s.courier.AssignAWB(ctx, courier.ID(shipment.ShipmentID), option.CourierCompanyID, false)
	if err != nil {
		return err
	}
	if assignment == nil || assignment.AWBCode == "" {
		return errors.New("courier returned no awb")
	}
	shipment.AWBCode = assignment.AWBCode
	shipment.CourierName = assignment.CourierName
	if shipment.CourierName == "" {
		shipment.CourierName = option.CourierName
	}
	shipment.TrackingURL = s.courier.TrackingURL(assignment.AWBCode)
	shipment.Status = enums.ShipmentStatusCourierAssigned
	return nil
}

func (s *service) markFailed(ctx context.Context, order *models.Order, shipment types.OrderShipment, cause error) {
	shipment.Status = enums.ShipmentStatusFailed
	shipment.LastError = cause.Error()
	if err := s.repo.UpdateShipment(ctx, order.ID, shipment); err != nil {
		s.logg.Error(ctx, "saving failed shipment failed", err)
	}
	s.metrics.IncShipment("failed")
}

func (s *service) CheckDeliveredOrders(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	shipped, err := s.repo.ListByStatus(ctx, enums.OrderStatusShipped, s.limit)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipped orders")
	}
	for i := range shipped {
		if ctx.Err() != nil {
			break
		}
		order := &shipped[i]
		if order.Shipment == nil || order.Shipment.AWBCode == "" {
			continue
		}
		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		err := s.trackOrder(orderCtx, order)
		if err != nil {
			s.logg.Warn(orderCtx, "delivery check failed: "+err.Error())
		}
		summary.record(err)
	}
	s.logSweep(ctx, "delivery check finished", summary)
	return summary, nil
}

func (s *service) trackOrder(ctx context.Context, order *models.Order) error {
	shipment := *order.Shipment
	info, err := s.courier.TrackByAWB(ctx, shipment.AWBCode)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier tracking failed")
	}
	trackedAt := s.now().UTC()
	shipment.LastTrackedAt = &trackedAt
	if info.TrackURL != "" {
		shipment.TrackingURL = info.TrackURL
	}

	label := strings.ToLower(strings.TrimSpace(info.CurrentStatus))
	if label != "delivered" {
		if label == "in transit" || label == "out for delivery" || label == "picked up" {
			shipment.Status = enums.ShipmentStatusInTransit
		}
		if err := s.repo.UpdateShipment(ctx, order.ID, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save shipment tracking")
		}
		return nil
	}

	shipment.Status = enums.ShipmentStatusDelivered
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, enums.OrderStatusDelivered, map[string]any{
			"shipment":     &shipment,
			"delivered_at": trackedAt,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		return s.emit(ctx, tx, order.ID, enums.EventOrderDelivered, payloads.OrderDeliveredEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			DeliveredAt: trackedAt,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.IncShipment("delivered")
	s.notifier.NotifyCustomer(ctx, order.ID, notifications.OrderDelivered(order.OrderNumber))
	s.logg.Info(s.logg.WithField(ctx, "awb", shipment.AWBCode), "order delivered")
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, eventType enums.OutboxEventType, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         outbox.SystemActor(),
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(eventType))
	}
	return nil
}

func (s *service) logSweep(ctx context.Context, msg string, summary *Summary) {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"processed": summary.Processed,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}), msg)
}
