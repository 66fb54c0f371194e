package cron

import (
	"time"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

// DefaultJobsParams carries the collaborators of the standard job set.
type DefaultJobsParams struct {
	Logger          *logger.Logger
	Engine          returnsSweeper
	Shipping        shippingSweeper
	PendingOrders   pendingOrderReader
	Orders          orderCanceller
	Outbox          purger
	Notifications   purger
	Cron            config.CronConfig
	OutboxRetention time.Duration
}

// DefaultJobs builds every periodic job in registration order. The cron worker
// runs them on its interval and the admin API runs them on demand.
func DefaultJobs(p DefaultJobsParams) ([]Job, error) {
	jobs, err := NewReturnJobs(p.Engine, p.Logger)
	if err != nil {
		return nil, err
	}
	shippingJobs, err := NewShippingJobs(p.Shipping, p.Logger)
	if err != nil {
		return nil, err
	}
	jobs = append(jobs, shippingJobs...)

	ttl, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger: p.Logger,
		Reader: p.PendingOrders,
		Orders: p.Orders,
		MaxAge: p.Cron.PendingOrderTTL,
	})
	if err != nil {
		return nil, err
	}
	outboxJob, err := NewOutboxRetentionJob(p.Logger, p.Outbox, p.OutboxRetention)
	if err != nil {
		return nil, err
	}
	notificationJob, err := NewNotificationRetentionJob(p.Logger, p.Notifications, p.Cron.NotificationRetention)
	if err != nil {
		return nil, err
	}
	return append(jobs, ttl, outboxJob, notificationJob), nil
}
