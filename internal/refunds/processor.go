package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/internal/inventory"
	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/internal/returns"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/metrics"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// OrderStore reads orders and marks them refunded.
type OrderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, summary types.OrderRefundSummary) error
}

// StockRestorer returns refunded items to stock.
type StockRestorer interface {
	RestoreItems(ctx context.Context, orderID uuid.UUID, reason string, items []inventory.Item) (*inventory.Result, error)
}

// RefundResult is the outcome of an automatic refund attempt.
type RefundResult struct {
	Success                  bool                  `json:"success"`
	RequiresManualProcessing bool                  `json:"requires_manual_processing,omitempty"`
	ReturnID                 uuid.UUID             `json:"return_id"`
	TransactionID            string                `json:"transaction_id,omitempty"`
	Amount                   decimal.Decimal       `json:"amount"`
	Status                   enums.RefundStatus    `json:"status,omitempty"`
	OrderRefunded            bool                  `json:"order_refunded"`
	Inventory                *inventory.Result     `json:"inventory,omitempty"`
	Warnings                 []string              `json:"warnings,omitempty"`
	Error                    string                `json:"error,omitempty"`
	Return                   *models.ReturnRequest `json:"return,omitempty"`
}

// StatusResult reports a reconciliation poll against the gateway.
type StatusResult struct {
	ReturnID       uuid.UUID            `json:"return_id"`
	TransactionID  string               `json:"transaction_id"`
	PreviousStatus enums.RefundStatus   `json:"previous_status"`
	Status         enums.RefundStatus   `json:"status"`
	Changed        bool                 `json:"changed"`
	Gateway        *types.GatewayRefund `json:"gateway,omitempty"`
}

// Processor moves money back to the customer for approved returns.
type Processor interface {
	ProcessAutomaticRefund(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID) (*RefundResult, error)
	CheckRefundStatus(ctx context.Context, returnID uuid.UUID) (*StatusResult, error)
	HandleApprovedRefund(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID) *RefundResult
}

type processor struct {
	returns   returns.Service
	orders    OrderStore
	inventory StockRestorer
	gateway   PaymentGateway
	notifier  notifications.Notifier
	cfg       config.ReturnsConfig
	logg      *logger.Logger
	metrics   *metrics.ReturnsMetrics
	now       func() time.Time
}

// NewProcessor wires the refund processor.
func NewProcessor(
	returnsSvc returns.Service,
	orders OrderStore,
	inventory StockRestorer,
	gateway PaymentGateway,
	notifier notifications.Notifier,
	cfg config.ReturnsConfig,
	logg *logger.Logger,
	m *metrics.ReturnsMetrics,
) (Processor, error) {
	if returnsSvc == nil {
		return nil, fmt.Errorf("returns service required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &processor{
		returns:   returnsSvc,
		orders:    orders,
		inventory: inventory,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
		logg:      logg,
		metrics:   m,
		now:       time.Now,
	}, nil
}

func (p *processor) ProcessAutomaticRefund(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID) (*RefundResult, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	ctx = p.logg.WithReturnID(ctx, returnID.String())

	ret, err := p.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	order, amount, err := p.checkPreconditions(ctx, ret)
	if err != nil {
		p.recordFailure(ctx, ret.ID, actorID, err)
		return nil, err
	}

	processedAt := p.now().UTC()
	receipt := fmt.Sprintf("%s-%d", ret.ReturnNumber, processedAt.Unix())
	gw, err := p.gateway.Refund(ctx, RefundRequest{
		PaymentID:   strings.TrimSpace(*order.PaymentReference),
		AmountMinor: amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:    strings.ToLower(order.Currency),
		Receipt:     receipt,
		Metadata: map[string]string{
			"return_id":     ret.ID.String(),
			"return_number": ret.ReturnNumber,
			"order_number":  order.OrderNumber,
		},
	})
	if err == nil && gw != nil && gw.Status == enums.RefundStatusFailed {
		err = fmt.Errorf("gateway reported refund %s as %s", gw.ID, gw.GatewayStatus)
	}
	if err == nil && (gw == nil || gw.ID == "") {
		err = fmt.Errorf("gateway returned no refund id")
	}
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeGateway, err, "gateway refund failed")
		p.recordFailure(ctx, ret.ID, actorID, wrapped)
		p.metrics.IncRefund(string(enums.RefundStatusFailed))
		return nil, wrapped
	}

	details := ret.RefundDetails
	details.RefundAmount = &amount
	details.TransactionID = gw.ID
	details.Status = gw.Status
	details.Receipt = receipt
	details.GatewayResponse = gw
	details.ProcessedAt = &processedAt

	result := &RefundResult{
		Success:       true,
		ReturnID:      ret.ID,
		TransactionID: gw.ID,
		Amount:        amount,
		Status:        gw.Status,
	}

	updated, err := p.returns.UpdateStatus(ctx, returns.UpdateStatusInput{
		ReturnID:      ret.ID,
		To:            enums.ReturnStatusRefundProcessed,
		ActorID:       actorID,
		Note:          fmt.Sprintf("Refund of %s %s issued. Transaction ID: %s", strings.ToUpper(order.Currency), amount.StringFixed(2), gw.ID),
		RefundDetails: &details,
		Events: []outbox.DomainEvent{{
			EventType:     enums.EventReturnRefundProcessed,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   ret.ID,
			Data: payloads.ReturnRefundProcessedEvent{
				ReturnID:      ret.ID,
				ReturnNumber:  ret.ReturnNumber,
				OrderID:       order.ID,
				Amount:        amount,
				TransactionID: gw.ID,
				Status:        string(gw.Status),
			},
		}},
	})
	if err != nil {
		// Money already moved; keep the transaction on record even when the
		// transition could not be applied.
		p.logg.Error(ctx, "refund status transition failed", err)
		result.Warnings = append(result.Warnings, "status transition failed: "+err.Error())
		if saveErr := p.returns.SaveRefundDetails(ctx, ret.ID, details); saveErr != nil {
			p.logg.Error(ctx, "saving refund details failed", saveErr)
			result.Warnings = append(result.Warnings, "refund details not saved: "+saveErr.Error())
		}
	} else {
		result.Return = updated
	}

	if amount.GreaterThanOrEqual(order.TotalAmount) {
		err := p.orders.MarkRefunded(ctx, order.ID, types.OrderRefundSummary{
			ReturnID:      ret.ID.String(),
			ReturnNumber:  ret.ReturnNumber,
			Amount:        amount,
			TransactionID: gw.ID,
			RefundedAt:    processedAt,
		})
		if err != nil {
			p.logg.Error(ctx, "marking order refunded failed", err)
			result.Warnings = append(result.Warnings, "order not marked refunded: "+err.Error())
			p.addNote(ctx, ret.ID, actorID, "Order could not be marked refunded: "+err.Error())
		} else {
			result.OrderRefunded = true
		}
	}

	restored, err := p.inventory.RestoreItems(ctx, order.ID, inventory.ReasonRefundSuccessful, restoreItems(ret))
	switch {
	case err != nil:
		p.logg.Error(ctx, "inventory restore after refund failed", err)
		result.Warnings = append(result.Warnings, "inventory not restored: "+err.Error())
		p.addNote(ctx, ret.ID, actorID, "Inventory restoration failed after refund: "+err.Error()+". Restore stock manually.")
	case restored != nil && len(restored.Errors) > 0:
		result.Inventory = restored
		p.addNote(ctx, ret.ID, actorID, fmt.Sprintf("Inventory partially restored after refund: %d item(s) skipped", len(restored.Errors)))
	default:
		result.Inventory = restored
	}

	p.notifier.NotifyCustomer(ctx, order.ID, notifications.RefundProcessed(ret.ID, ret.ReturnNumber, amount, order.Currency))
	p.metrics.IncRefund(string(gw.Status))
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"transaction_id": gw.ID,
		"amount":         amount.StringFixed(2),
		"order_refunded": result.OrderRefunded,
	}), "refund processed")
	return result, nil
}

// checkPreconditions returns the order and the amount to refund.
func (p *processor) checkPreconditions(ctx context.Context, ret *models.ReturnRequest) (*models.Order, decimal.Decimal, error) {
	if ret.Status != enums.ReturnStatusApprovedRefund {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("return must be %s to refund, current status is %s", enums.ReturnStatusApprovedRefund, ret.Status))
	}
	if ret.RefundDetails.HasSuccessfulTransaction() {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeIdempotency,
			fmt.Sprintf("refund already processed with transaction %s", ret.RefundDetails.TransactionID))
	}
	order, err := p.orders.FindByID(ctx, ret.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order for return not found")
		}
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !order.PaymentCompleted() {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order payment is %s, refund requires a completed payment", order.PaymentStatus))
	}
	if order.PaymentReference == nil || strings.TrimSpace(*order.PaymentReference) == "" {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order has no payment reference to refund")
	}
	amount := ret.RefundDetails.Amount()
	if !amount.IsPositive() {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}
	if amount.GreaterThan(order.TotalAmount) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("refund amount %s exceeds order total %s", amount.StringFixed(2), order.TotalAmount.StringFixed(2)))
	}
	return order, amount, nil
}

func (p *processor) CheckRefundStatus(ctx context.Context, returnID uuid.UUID) (*StatusResult, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	ctx = p.logg.WithReturnID(ctx, returnID.String())

	ret, err := p.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	details := ret.RefundDetails
	if details.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no refund transaction recorded for return")
	}

	gw, err := p.gateway.GetRefund(ctx, details.TransactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch refund status")
	}

	checkedAt := p.now().UTC()
	result := &StatusResult{
		ReturnID:       ret.ID,
		TransactionID:  details.TransactionID,
		PreviousStatus: details.Status,
		Status:         gw.Status,
		Changed:        gw.Status != details.Status,
		Gateway:        gw,
	}

	details.LastCheckedAt = &checkedAt
	if result.Changed {
		details.Status = gw.Status
		details.GatewayResponse = gw
	}
	if err := p.returns.SaveRefundDetails(ctx, ret.ID, details); err != nil {
		return nil, err
	}
	if result.Changed {
		p.addNote(ctx, ret.ID, nil, fmt.Sprintf("Refund %s status changed from %s to %s", details.TransactionID, result.PreviousStatus, result.Status))
		p.metrics.IncRefund(string(gw.Status))
		p.logg.Info(p.logg.WithFields(ctx, map[string]any{
			"transaction_id": details.TransactionID,
			"from":           result.PreviousStatus,
			"to":             result.Status,
		}), "refund status reconciled")
	}
	return result, nil
}

func (p *processor) HandleApprovedRefund(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID) *RefundResult {
	if !p.cfg.AutoRefund {
		p.metrics.IncRefund("manual")
		return &RefundResult{ReturnID: returnID, RequiresManualProcessing: true}
	}
	result, err := p.ProcessAutomaticRefund(ctx, returnID, actorID)
	if err != nil {
		p.logg.Warn(p.logg.WithReturnID(ctx, returnID.String()), "automatic refund needs manual processing: "+err.Error())
		return &RefundResult{ReturnID: returnID, RequiresManualProcessing: true, Error: err.Error()}
	}
	return result
}

func (p *processor) recordFailure(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, err error) {
	p.addNote(ctx, returnID, actorID, "Automatic refund failed: "+err.Error())
}

func (p *processor) addNote(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, note string) {
	if _, err := p.returns.AddNote(ctx, returnID, actorID, note); err != nil {
		p.logg.Error(ctx, "append refund note failed", err)
	}
}

func restoreItems(ret *models.ReturnRequest) []inventory.Item {
	items := make([]inventory.Item, 0, len(ret.Items))
	for _, item := range ret.Items {
		items = append(items, inventory.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
		})
	}
	return items
}
