package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
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

// Item conditions accepted at intake. Only unused and sealed items qualify a
// return for automatic approval.
const (
	ConditionUnused  = "unused"
	ConditionSealed  = "sealed"
	ConditionUsed    = "used"
	ConditionDamaged = "damaged"
)

var validConditions = map[string]bool{
	ConditionUnused:  true,
	ConditionSealed:  true,
	ConditionUsed:    true,
	ConditionDamaged: true,
}

// sweepPageSize is how many rows each sweep listing reads per page while its
// jsonb filter runs in Go.
const sweepPageSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderReader loads an order with its line items and customer.
type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type numberAllocator interface {
	Next(ctx context.Context) (string, error)
}

// CreateItemInput is one requested return line.
type CreateItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Reason    string
	Condition string
}

// CreateInput is a customer's return request.
type CreateInput struct {
	OrderID       uuid.UUID
	UserID        uuid.UUID
	Items         []CreateItemInput
	PickupAddress *types.Address
	CustomerNote  string
}

// UpdateStatusInput moves a return to a new status. Optional fields are
// written in the same guarded update as the status.
type UpdateStatusInput struct {
	ReturnID         uuid.UUID
	To               enums.ReturnStatus
	ActorID          *uuid.UUID
	ActorRole        enums.Role
	Note             string
	Reason           string
	CustomerResponse *string
	Pickup           *types.ReturnPickup
	RefundDetails    *types.RefundDetails
	// Events are emitted in the same transaction as the status change.
	Events           []outbox.DomainEvent
}

// Service owns return requests and is the only writer of their status.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.ReturnRequest, error)
	AddNote(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, note string) (*models.ReturnAdminNote, error)
	SavePickup(ctx context.Context, returnID uuid.UUID, pickup types.ReturnPickup, events ...outbox.DomainEvent) error
	SaveRefundDetails(ctx context.Context, returnID uuid.UUID, details types.RefundDetails) error
	ListPendingAutoApproval(ctx context.Context, limit int) ([]models.ReturnRequest, error)
	ListAwaitingPickup(ctx context.Context, limit int) ([]models.ReturnRequest, error)
	ListTrackable(ctx context.Context, limit int) ([]models.ReturnRequest, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]models.ReturnRequest, error)
}

type service struct {
	repo    Repository
	orders  OrderReader
	numbers numberAllocator
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.ReturnsMetrics
	window  time.Duration
	now     func() time.Time
}

// NewService builds the returns service.
func NewService(
	repo Repository,
	orders OrderReader,
	numbers *NumberAllocator,
	tx txRunner,
	outbox outboxPublisher,
	cfg config.ReturnsConfig,
	logg *logger.Logger,
	m *metrics.ReturnsMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("return number allocator required")
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
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = 15
	}
	return &service{
		repo:    repo,
		orders:  orders,
		numbers: numbers,
		tx:      tx,
		outbox:  outbox,
		logg:    logg,
		metrics: m,
		window:  time.Duration(windowDays) * 24 * time.Hour,
		now:     time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned").
			WithDetails(map[string]any{"order_status": order.Status})
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, err
	}

	var created *models.ReturnRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		active, err := repo.CountActiveForOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open returns")
		}
		if active > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has an open return")
		}
		returned, err := repo.ReturnedQuantities(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load returned quantities")
		}

		ret, err := s.buildReturn(order, input, returned)
		if err != nil {
			return err
		}
		ret.ReturnNumber = number
		if err := repo.Create(ctx, ret); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return")
		}
		if note := strings.TrimSpace(input.CustomerNote); note != "" {
			if err := repo.AppendNote(ctx, &models.ReturnAdminNote{
				ReturnID: ret.ID,
				Note:     "Customer note: " + note,
				AuthorID: &input.UserID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append note")
			}
		}
		actor := &outbox.ActorRef{UserID: &input.UserID, Role: enums.RoleCustomer.String()}
		if err := s.emitStatusChanged(ctx, tx, ret, "", enums.ReturnStatusRequested, "", actor); err != nil {
			return err
		}
		created = ret
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition("", string(enums.ReturnStatusRequested))
	ctx = s.logg.WithReturnID(ctx, created.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"return_number": created.ReturnNumber,
		"eligible":      created.IsEligibleForAutoApproval,
		"items":         len(created.Items),
	}), "return requested")
	return created, nil
}

func (s *service) buildReturn(order *models.Order, input CreateInput, returned map[uuid.UUID]int) (*models.ReturnRequest, error) {
	lines := make(map[uuid.UUID]models.OrderLineItem, len(order.Items))
	for _, line := range order.Items {
		lines[line.ProductID] = line
	}

	var reasons []string
	seen := map[uuid.UUID]bool{}
	eligible := order.DeliveredAt != nil && s.now().Sub(*order.DeliveredAt) <= s.window
	items := make([]models.ReturnItem, 0, len(input.Items))
	total := decimal.Zero

	for i, in := range input.Items {
		label := fmt.Sprintf("item %d", i+1)
		line, ok := lines[in.ProductID]
		if !ok {
			reasons = append(reasons, label+": product is not part of the order")
			continue
		}
		if seen[in.ProductID] {
			reasons = append(reasons, label+": duplicate product")
			continue
		}
		seen[in.ProductID] = true

		remaining := line.Qty - returned[in.ProductID]
		switch {
		case in.Quantity <= 0:
			reasons = append(reasons, label+": quantity must be positive")
		case in.Quantity > remaining:
			reasons = append(reasons, fmt.Sprintf("%s: quantity %d exceeds returnable %d", label, in.Quantity, remaining))
		}
		if strings.TrimSpace(in.Reason) == "" {
			reasons = append(reasons, label+": reason is required")
		}
		condition := strings.ToLower(strings.TrimSpace(in.Condition))
		if condition == "" {
			condition = ConditionUnused
		}
		if !validConditions[condition] {
			reasons = append(reasons, fmt.Sprintf("%s: unknown condition %q", label, in.Condition))
		}
		if condition != ConditionUnused && condition != ConditionSealed {
			eligible = false
		}

		items = append(items, models.ReturnItem{
			Position:  len(items),
			ProductID: line.ProductID,
			Name:      line.Name,
			SKU:       line.SKU,
			Quantity:  in.Quantity,
			UnitPrice: line.UnitPrice,
			Reason:    strings.TrimSpace(in.Reason),
			Condition: condition,
		})
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))))
	}
	if verr := pkgerrors.Validation(reasons); verr != nil {
		return nil, verr
	}

	address := order.ShippingAddress
	if input.PickupAddress != nil {
		address = *input.PickupAddress
	}
	if address.Email == "" && order.User != nil {
		address.Email = order.User.Email
	}

	return &models.ReturnRequest{
		OrderID:                   order.ID,
		UserID:                    order.UserID,
		Status:                    enums.ReturnStatusRequested,
		IsEligibleForAutoApproval: eligible,
		Pickup: types.ReturnPickup{
			Status:  enums.PickupStatusPending,
			Address: address,
		},
		RefundDetails: types.RefundDetails{
			OriginalAmount: total.Round(2),
		},
		Items: items,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	ret, err := s.repo.FindDetailed(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return ret, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.ReturnRequest, error) {
	if input.ReturnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid return status %q", input.To))
	}
	ctx = s.logg.WithReturnID(ctx, input.ReturnID.String())

	var from enums.ReturnStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.FindByID(ctx, input.ReturnID)
		if err != nil {
			return mapLoadError(err)
		}
		from = ret.Status
		if from == input.To {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("return is already %s", from))
		}
		if !from.CanTransitionTo(input.To) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move return from %s to %s", from, input.To)).
				WithDetails(map[string]any{
					"from":    from,
					"to":      input.To,
					"allowed": from.AllowedTransitions(),
				})
		}

		ok, err := repo.UpdateStatus(ctx, ret.ID, from, input.To, s.transitionUpdates(input))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return status changed concurrently")
		}

		if note := strings.TrimSpace(input.Note); note != "" {
			if err := repo.AppendNote(ctx, &models.ReturnAdminNote{
				ReturnID: ret.ID,
				Note:     note,
				AuthorID: input.ActorID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append note")
			}
		}
		if err := s.emitStatusChanged(ctx, tx, ret, from, input.To, input.Reason, actorRef(input)); err != nil {
			return err
		}
		for _, event := range input.Events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit return event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(input.To))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"from": from,
		"to":   input.To,
	}), "return status updated")

	ret, err := s.repo.FindByID(ctx, input.ReturnID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return ret, nil
}

func (s *service) transitionUpdates(input UpdateStatusInput) map[string]any {
	now := s.now().UTC()
	updates := map[string]any{}
	switch input.To {
	case enums.ReturnStatusApproved:
		updates["approved_at"] = now
	case enums.ReturnStatusReceived:
		updates["received_at"] = now
	case enums.ReturnStatusCompleted:
		updates["completed_at"] = now
	case enums.ReturnStatusCancelled:
		updates["cancelled_at"] = now
	}
	if input.CustomerResponse != nil {
		updates["customer_response"] = *input.CustomerResponse
	}
	if input.Pickup != nil {
		updates["pickup"] = *input.Pickup
	}
	if input.RefundDetails != nil {
		updates["refund_details"] = *input.RefundDetails
	}
	return updates
}

func actorRef(input UpdateStatusInput) *outbox.ActorRef {
	if input.ActorID == nil {
		return outbox.SystemActor()
	}
	role := input.ActorRole
	if !role.IsValid() {
		role = enums.RoleAdmin
	}
	return &outbox.ActorRef{UserID: input.ActorID, Role: role.String()}
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, ret *models.ReturnRequest, from, to enums.ReturnStatus, reason string, actor *outbox.ActorRef) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReturnStatusChanged,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   ret.ID,
		Actor:         actor,
		Data: payloads.ReturnStatusChangedEvent{
			ReturnID:     ret.ID,
			ReturnNumber: ret.ReturnNumber,
			OrderID:      ret.OrderID,
			From:         from,
			To:           to,
			Reason:       reason,
			ChangedAt:    s.now().UTC(),
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit return status event")
	}
	return nil
}

func (s *service) AddNote(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, note string) (*models.ReturnAdminNote, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}
	if _, err := s.repo.FindByID(ctx, returnID); err != nil {
		return nil, mapLoadError(err)
	}
	entry := &models.ReturnAdminNote{
		ReturnID: returnID,
		Note:     note,
		AuthorID: actorID,
	}
	if err := s.repo.AppendNote(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append note")
	}
	return entry, nil
}

// SavePickup stores the courier state and emits events in the same
// transaction.
func (s *service) SavePickup(ctx context.Context, returnID uuid.UUID, pickup types.ReturnPickup, events ...outbox.DomainEvent) error {
	if len(events) == 0 {
		if err := s.repo.SavePickup(ctx, returnID, pickup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pickup")
		}
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).SavePickup(ctx, returnID, pickup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pickup")
		}
		for _, event := range events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit pickup event")
			}
		}
		return nil
	})
}

func (s *service) SaveRefundDetails(ctx context.Context, returnID uuid.UUID, details types.RefundDetails) error {
	if err := s.repo.SaveRefundDetails(ctx, returnID, details); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save refund details")
	}
	return nil
}

func (s *service) ListPendingAutoApproval(ctx context.Context, limit int) ([]models.ReturnRequest, error) {
	rows, err := s.repo.ListEligibleRequested(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requested returns")
	}
	return rows, nil
}

// ListAwaitingPickup returns approved returns with no courier assigned yet,
// plus scheduled ones whose courier step never completed.
func (s *service) ListAwaitingPickup(ctx context.Context, limit int) ([]models.ReturnRequest, error) {
	return s.listFiltered(ctx, []enums.ReturnStatus{
		enums.ReturnStatusApproved,
		enums.ReturnStatusPickupScheduled,
	}, limit, func(ret models.ReturnRequest) bool {
		if ret.Status == enums.ReturnStatusPickupScheduled {
			return ret.Pickup.HasShipment() && !ret.Pickup.HasAWB()
		}
		return !ret.Pickup.HasAWB()
	})
}

func (s *service) ListTrackable(ctx context.Context, limit int) ([]models.ReturnRequest, error) {
	return s.listFiltered(ctx, []enums.ReturnStatus{
		enums.ReturnStatusPickupScheduled,
		enums.ReturnStatusPickedUp,
		enums.ReturnStatusInTransit,
	}, limit, func(ret models.ReturnRequest) bool {
		return ret.Pickup.HasAWB()
	})
}

func (s *service) ListPendingRefunds(ctx context.Context, limit int) ([]models.ReturnRequest, error) {
	return s.listFiltered(ctx, []enums.ReturnStatus{
		enums.ReturnStatusRefundProcessed,
	}, limit, func(ret models.ReturnRequest) bool {
		return ret.RefundDetails.TransactionID != "" && ret.RefundDetails.Status == enums.RefundStatusPending
	})
}

// listFiltered pages through the statuses until limit rows pass keep. Rows
// that never match (fully scheduled pickups, settled refunds) accumulate in
// these statuses, so reading a single capped page would starve newer rows.
func (s *service) listFiltered(ctx context.Context, statuses []enums.ReturnStatus, limit int, keep func(models.ReturnRequest) bool) ([]models.ReturnRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	out := make([]models.ReturnRequest, 0, limit)
	var cursor *pagination.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.repo.ListByStatus(ctx, statuses, cursor, sweepPageSize)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
		}
		for _, row := range rows {
			if keep(row) {
				out = append(out, row)
				if len(out) == limit {
					return out, nil
				}
			}
		}
		if len(rows) < sweepPageSize {
			return out, nil
		}
		last := rows[len(rows)-1]
		cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
}
