// Package app assembles the return and order services shared by the api and
// cron-worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aurelia-jewels/aurelia-backend/internal/automation"
	"github.com/aurelia-jewels/aurelia-backend/internal/cron"
	"github.com/aurelia-jewels/aurelia-backend/internal/inventory"
	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/internal/orders"
	"github.com/aurelia-jewels/aurelia-backend/internal/pickups"
	"github.com/aurelia-jewels/aurelia-backend/internal/refunds"
	"github.com/aurelia-jewels/aurelia-backend/internal/returns"
	"github.com/aurelia-jewels/aurelia-backend/internal/shipping"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/courier"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/metrics"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	pkgstripe "github.com/aurelia-jewels/aurelia-backend/pkg/stripe"
)

// Services is the wired service graph.
type Services struct {
	Orders        orders.Service
	OrderRepo     orders.Repository
	Inventory     inventory.Service
	Notifications notifications.Service
	Returns       returns.Service
	Pickups       pickups.Coordinator
	Refunds       refunds.Processor
	Shipping      shipping.Service
	Engine        automation.Engine
	Outbox        *outbox.Repository
	Jobs          []cron.Job
}

// RedisClient is what the graph needs from redis: return number sequences
// and per-job cron locks.
type RedisClient interface {
	DailySequence(ctx context.Context, name string, at time.Time) (int64, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// Params are the shared clients the graph is built on.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    RedisClient
	Registry prometheus.Registerer
}

// Build wires every service and the default cron job set. The courier and
// stripe clients authenticate lazily, so Build makes no network calls.
func Build(ctx context.Context, p Params) (*Services, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil || p.Redis == nil {
		return nil, fmt.Errorf("config, logger, db and redis are required")
	}
	cfg := p.Config
	logg := p.Logger
	conn := p.DB.DB()
	m := metrics.NewReturnsMetrics(p.Registry)

	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	orderRepo := orders.NewRepository(conn)
	notificationRepo := notifications.NewRepository(conn)

	notifier, err := notifications.NewService(notificationRepo, orderRepo, p.DB, outboxSvc, logg)
	if err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}
	inventorySvc, err := inventory.NewService(inventory.NewRepository(conn), p.DB, outboxSvc, logg, m)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	orderSvc, err := orders.NewService(orderRepo, p.DB, outboxSvc, inventorySvc, notifier, logg)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	numbers, err := returns.NewNumberAllocator(p.Redis)
	if err != nil {
		return nil, fmt.Errorf("return numbers: %w", err)
	}
	returnsSvc, err := returns.NewService(returns.NewRepository(conn), orderRepo, numbers, p.DB, outboxSvc, cfg.Returns, logg, m)
	if err != nil {
		return nil, fmt.Errorf("returns service: %w", err)
	}

	courierClient, err := courier.NewClient(cfg.Courier, logg)
	if err != nil {
		return nil, fmt.Errorf("courier client: %w", err)
	}
	pickupSvc, err := pickups.NewCoordinator(returnsSvc, courierClient, notifier, cfg.Warehouse, logg, m)
	if err != nil {
		return nil, fmt.Errorf("pickup coordinator: %w", err)
	}
	shippingSvc, err := shipping.NewService(orderRepo, p.DB, outboxSvc, courierClient, notifier, cfg.Warehouse, cfg.Shipping, logg, m)
	if err != nil {
		return nil, fmt.Errorf("shipping service: %w", err)
	}

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, fmt.Errorf("stripe client: %w", err)
	}
	gateway, err := refunds.NewStripeGateway(stripeClient)
	if err != nil {
		return nil, fmt.Errorf("stripe gateway: %w", err)
	}
	refundSvc, err := refunds.NewProcessor(returnsSvc, orderRepo, inventorySvc, gateway, notifier, cfg.Returns, logg, m)
	if err != nil {
		return nil, fmt.Errorf("refund processor: %w", err)
	}

	engine, err := automation.NewEngine(returnsSvc, pickupSvc, refundSvc, notifier, cfg.Returns, logg)
	if err != nil {
		return nil, fmt.Errorf("automation engine: %w", err)
	}

	jobs, err := cron.DefaultJobs(cron.DefaultJobsParams{
		Logger:          logg,
		Engine:          engine,
		Shipping:        shippingSvc,
		PendingOrders:   orderRepo,
		Orders:          orderSvc,
		Outbox:          outboxRepo,
		Notifications:   notificationRepo,
		Cron:            cfg.Cron,
		OutboxRetention: cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("cron jobs: %w", err)
	}

	return &Services{
		Orders:        orderSvc,
		OrderRepo:     orderRepo,
		Inventory:     inventorySvc,
		Notifications: notifier,
		Returns:       returnsSvc,
		Pickups:       pickupSvc,
		Refunds:       refundSvc,
		Shipping:      shippingSvc,
		Engine:        engine,
		Outbox:        outboxRepo,
		Jobs:          jobs,
	}, nil
}

// Scheduler builds a cron service over the default jobs with per-job redis locks.
func (s *Services) Scheduler(p Params) (*cron.Service, error) {
	locker, err := cron.NewRedisLocker(p.Redis, p.Config.Cron.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron locker: %w", err)
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   p.Logger,
		Registry: cron.NewRegistry(s.Jobs...),
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(p.Registry),
		Interval: p.Config.Cron.Interval,
	})
}
