package cron

import (
	"context"
	"fmt"

	"github.com/aurelia-jewels/aurelia-backend/internal/automation"
	"github.com/aurelia-jewels/aurelia-backend/internal/shipping"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

// Job names exposed to operators.
const (
	JobPendingReturns       = "pending-returns-sweep"
	JobReturnTracking       = "return-tracking-update"
	JobRefundReconcile      = "refund-reconcile"
	JobAutoShipOrders       = "auto-ship-orders"
	JobRetryFailedShipments = "retry-failed-shipments"
	JobCheckDelivered       = "check-delivered-orders"
)

type returnsSweeper interface {
	ProcessPendingReturns(ctx context.Context) (*automation.SweepSummary, error)
	UpdateTrackingForActiveReturns(ctx context.Context) (*automation.SweepSummary, error)
	ReconcileRefunds(ctx context.Context) (*automation.SweepSummary, error)
}

type shippingSweeper interface {
	AutoShipOrders(ctx context.Context) (*shipping.Summary, error)
	RetryFailedShipments(ctx context.Context) (*shipping.Summary, error)
	CheckDeliveredOrders(ctx context.Context) (*shipping.Summary, error)
}

// sweepCounts is what every sweep reports back.
type sweepCounts struct {
	processed int
	succeeded int
	failed    int
}

type sweepJob struct {
	name string
	logg *logger.Logger
	run  func(ctx context.Context) (sweepCounts, error)
}

func (j *sweepJob) Name() string { return j.name }

// Run fails only when the sweep itself could not run; per-item failures are
// logged by the sweep and counted here.
func (j *sweepJob) Run(ctx context.Context) error {
	counts, err := j.run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"processed": counts.processed,
		"succeeded": counts.succeeded,
		"failed":    counts.failed,
	}), "sweep complete")
	return nil
}

// NewReturnJobs builds the return automation sweeps.
func NewReturnJobs(engine returnsSweeper, logg *logger.Logger) ([]Job, error) {
	if engine == nil {
		return nil, fmt.Errorf("automation engine required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	wrap := func(fn func(context.Context) (*automation.SweepSummary, error)) func(context.Context) (sweepCounts, error) {
		return func(ctx context.Context) (sweepCounts, error) {
			s, err := fn(ctx)
			if s == nil {
				return sweepCounts{}, err
			}
			return sweepCounts{processed: s.Processed, succeeded: s.Succeeded, failed: s.Failed}, err
		}
	}
	return []Job{
		&sweepJob{name: JobPendingReturns, logg: logg, run: wrap(engine.ProcessPendingReturns)},
		&sweepJob{name: JobReturnTracking, logg: logg, run: wrap(engine.UpdateTrackingForActiveReturns)},
		&sweepJob{name: JobRefundReconcile, logg: logg, run: wrap(engine.ReconcileRefunds)},
	}, nil
}

// NewShippingJobs builds the forward shipment sweeps.
func NewShippingJobs(svc shippingSweeper, logg *logger.Logger) ([]Job, error) {
	if svc == nil {
		return nil, fmt.Errorf("shipping service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	wrap := func(fn func(context.Context) (*shipping.Summary, error)) func(context.Context) (sweepCounts, error) {
		return func(ctx context.Context) (sweepCounts, error) {
			s, err := fn(ctx)
			if s == nil {
				return sweepCounts{}, err
			}
			return sweepCounts{processed: s.Processed, succeeded: s.Succeeded, failed: s.Failed}, err
		}
	}
	return []Job{
		&sweepJob{name: JobAutoShipOrders, logg: logg, run: wrap(svc.AutoShipOrders)},
		&sweepJob{name: JobRetryFailedShipments, logg: logg, run: wrap(svc.RetryFailedShipments)},
		&sweepJob{name: JobCheckDelivered, logg: logg, run: wrap(svc.CheckDeliveredOrders)},
	}, nil
}
