package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/aurelia-jewels/aurelia-backend/internal/orders"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

const (
	JobOrderTTL = "order-ttl"

	defaultPendingOrderTTL = 48 * time.Hour
	orderTTLBatch          = 200
	orderExpiredReason     = "Payment was not completed in time"
)

type pendingOrderReader interface {
	ListByStatus(ctx context.Context, status enums.OrderStatus, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, input orders.CancelInput) (*orders.CancelResult, error)
}

// OrderTTLJobParams configure the unpaid order expiry job.
type OrderTTLJobParams struct {
	Logger *logger.Logger
	Reader pendingOrderReader
	Orders orderCanceller
	MaxAge time.Duration
}

// NewOrderTTLJob builds the job that cancels orders left unpaid past MaxAge,
// which puts their reserved stock back.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultPendingOrderTTL
	}
	return &orderTTLJob{
		logg:   params.Logger,
		reader: params.Reader,
		orders: params.Orders,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	reader pendingOrderReader
	orders orderCanceller
	maxAge time.Duration
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return JobOrderTTL }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	pending, err := j.reader.ListByStatus(ctx, enums.OrderStatusPending, orderTTLBatch)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	var errs error
	expired := 0
	for _, order := range pending {
		if !order.CreatedAt.Before(cutoff) {
			continue
		}
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		res, err := j.orders.Cancel(orderCtx, orders.CancelInput{OrderID: order.ID, Reason: orderExpiredReason})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if res.InventoryError != "" {
			j.logg.Warn(orderCtx, "expired order stock restore failed: "+res.InventoryError)
		}
		expired++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	}), "order expiration loop complete")
	return errs
}
