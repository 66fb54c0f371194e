package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/metrics"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// Per-item failure reasons recorded on the result and the audit log.
const (
	ReasonProductNotFound   = "product_not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonInvalidQuantity   = "invalid_quantity"
)

// Well-known adjustment reasons.
const (
	ReasonOrderPlaced      = "order_placed"
	ReasonOrderCancelled   = "order_cancelled"
	ReasonRefundSuccessful = "refund_successful"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Item is one product quantity to adjust.
type Item struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int
}

// Result reports what an adjustment changed and which items it skipped.
type Result struct {
	Success            bool                        `json:"success"`
	PartialRestore     bool                        `json:"partial_restore,omitempty"`
	TotalItemsAffected int                         `json:"total_items_affected"`
	ProductsUpdated    int                         `json:"products_updated"`
	Details            []types.InventoryItemDetail `json:"details"`
	Errors             []types.InventoryItemError  `json:"errors"`
}

// Service adjusts product stock for an order's line items.
type Service interface {
	Reserve(ctx context.Context, orderID uuid.UUID) (*Result, error)
	Restore(ctx context.Context, orderID uuid.UUID, reason string) (*Result, error)
	RestoreItems(ctx context.Context, orderID uuid.UUID, reason string, items []Item) (*Result, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.ReturnsMetrics
}

// NewService builds the inventory adjuster.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger, m *metrics.ReturnsMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
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
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		logg:    logg,
		metrics: m,
	}, nil
}

func (s *service) Reserve(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	return s.adjust(ctx, orderID, enums.InventoryActionReserve, ReasonOrderPlaced, nil)
}

func (s *service) Restore(ctx context.Context, orderID uuid.UUID, reason string) (*Result, error) {
	return s.adjust(ctx, orderID, enums.InventoryActionRestore, reason, nil)
}

func (s *service) RestoreItems(ctx context.Context, orderID uuid.UUID, reason string, items []Item) (*Result, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no items to restore")
	}
	return s.adjust(ctx, orderID, enums.InventoryActionRestore, reason, items)
}

func (s *service) adjust(ctx context.Context, orderID uuid.UUID, action enums.InventoryAction, reason string, explicit []Item) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if reason == "" {
		reason = string(action)
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderWithItems(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		items := explicit
		if items == nil {
			items = itemsFromOrder(order)
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
		}

		res := &Result{
			Details: []types.InventoryItemDetail{},
			Errors:  []types.InventoryItemError{},
		}
		for _, item := range items {
			if err := s.applyItem(ctx, repo, action, item, res); err != nil {
				return err
			}
		}
		switch action {
		case enums.InventoryActionReserve:
			res.Success = len(res.Errors) == 0
		default:
			res.Success = true
			res.PartialRestore = len(res.Details) > 0 && len(res.Errors) > 0
		}

		entry := &models.InventoryLogEntry{
			OrderID:            orderID,
			Action:             action,
			Reason:             reason,
			TotalItemsAffected: res.TotalItemsAffected,
			ProductsUpdated:    res.ProductsUpdated,
			Details:            res.Details,
			Errors:             res.Errors,
		}
		if err := repo.InsertLogEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append inventory log")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         outbox.SystemActor(),
			Data: payloads.InventoryAdjustedEvent{
				OrderID:            orderID,
				Action:             action,
				Reason:             reason,
				TotalItemsAffected: res.TotalItemsAffected,
				ProductsUpdated:    res.ProductsUpdated,
				ErrorCount:         len(res.Errors),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit inventory event")
		}

		result = res
		return nil
	})
	if err != nil {
		s.metrics.IncInventory(string(action), "error")
		s.logg.Error(ctx, "inventory adjustment failed", err)
		return nil, err
	}

	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	s.metrics.IncInventory(string(action), outcome)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"action":           action,
		"reason":           reason,
		"items_affected":   result.TotalItemsAffected,
		"products_updated": result.ProductsUpdated,
		"item_errors":      len(result.Errors),
	}), "inventory adjusted")
	return result, nil
}

// applyItem adjusts one product. Per-item problems are recorded on res;
// only infrastructure errors are returned.
func (s *service) applyItem(ctx context.Context, repo Repository, action enums.InventoryAction, item Item, res *Result) error {
	if item.Quantity <= 0 {
		res.Errors = append(res.Errors, types.InventoryItemError{
			ProductID: item.ProductID,
			Name:      item.Name,
			Reason:    ReasonInvalidQuantity,
			Requested: item.Quantity,
		})
		return nil
	}

	product, err := repo.FindProduct(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res.Errors = append(res.Errors, types.InventoryItemError{
				ProductID: item.ProductID,
				Name:      item.Name,
				Reason:    ReasonProductNotFound,
				Requested: item.Quantity,
			})
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	name := item.Name
	if name == "" {
		name = product.Name
	}

	var previousStock, newStock int
	switch action {
	case enums.InventoryActionReserve:
		stock, ok, err := repo.DecrementStock(ctx, product.ID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
		}
		if !ok {
			available := product.Stock
			if fresh, ferr := repo.FindProduct(ctx, product.ID); ferr == nil {
				available = fresh.Stock
			}
			res.Errors = append(res.Errors, types.InventoryItemError{
				ProductID: product.ID,
				Name:      name,
				Reason:    ReasonInsufficientStock,
				Requested: item.Quantity,
				Available: &available,
			})
			return nil
		}
		newStock = stock
		previousStock = stock + item.Quantity
	default:
		stock, ok, err := repo.IncrementStock(ctx, product.ID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
		if !ok {
			res.Errors = append(res.Errors, types.InventoryItemError{
				ProductID: product.ID,
				Name:      name,
				Reason:    ReasonProductNotFound,
				Requested: item.Quantity,
			})
			return nil
		}
		newStock = stock
		previousStock = stock - item.Quantity
	}

	res.Details = append(res.Details, types.InventoryItemDetail{
		ProductID:     product.ID,
		Name:          name,
		Quantity:      item.Quantity,
		PreviousStock: previousStock,
		NewStock:      newStock,
	})
	res.TotalItemsAffected += item.Quantity
	res.ProductsUpdated++
	return nil
}

func itemsFromOrder(order *models.Order) []Item {
	items := make([]Item, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, Item{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Qty,
		})
	}
	return items
}
