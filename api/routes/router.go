package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurelia-jewels/aurelia-backend/api/controllers"
	ordercontrollers "github.com/aurelia-jewels/aurelia-backend/api/controllers/orders"
	returncontrollers "github.com/aurelia-jewels/aurelia-backend/api/controllers/returns"
	"github.com/aurelia-jewels/aurelia-backend/api/middleware"
	"github.com/aurelia-jewels/aurelia-backend/internal/automation"
	"github.com/aurelia-jewels/aurelia-backend/internal/inventory"
	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/internal/orders"
	"github.com/aurelia-jewels/aurelia-backend/internal/refunds"
	"github.com/aurelia-jewels/aurelia-backend/internal/returns"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	pkgredis "github.com/aurelia-jewels/aurelia-backend/pkg/redis"
)

// RedisStore is the Redis surface used for idempotency and rate limiting.
type RedisStore interface {
	pkgredis.IdempotencyStore
	controllers.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RouterParams carries the services the HTTP surface dispatches to.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         RedisStore
	Gatherer      prometheus.Gatherer
	Returns       returns.Service
	Engine        automation.Engine
	Pickups       returncontrollers.PickupCoordinator
	Refunds       refunds.Processor
	Inventory     inventory.Service
	Orders        orders.Service
	Notifications notifications.Service
	Jobs          controllers.JobRunner
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": p.DB,
			"redis":    p.Redis,
		}))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(cfg.RateLimit, p.Redis, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.With(middleware.RequireRole(logg, enums.RoleCustomer)).
			Post("/returns", returncontrollers.CreateReturn(p.Returns, p.Engine, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))
			adminOnly := middleware.RequireRole(logg, enums.RoleAdmin)

			r.Get("/ping", controllers.AdminPing())

			r.Route("/returns/{returnId}", func(r chi.Router) {
				r.Get("/", returncontrollers.Get(p.Returns, logg))
				r.Post("/process", returncontrollers.Process(p.Engine, logg))
				r.Patch("/status", returncontrollers.UpdateStatus(p.Engine, logg))
				r.Post("/notes", returncontrollers.AddNote(p.Returns, logg))
				r.Post("/pickup", returncontrollers.AutomatePickup(p.Pickups, logg))
				r.Post("/pickup/shipment", returncontrollers.CreateShipment(p.Pickups, logg))
				r.Post("/pickup/courier", returncontrollers.AssignCourier(p.Pickups, logg))
				r.Post("/pickup/cancel", returncontrollers.CancelPickup(p.Pickups, logg))
				r.Post("/tracking", returncontrollers.RefreshTracking(p.Pickups, logg))
				r.With(adminOnly).Post("/refund", returncontrollers.IssueRefund(p.Refunds, logg))
				r.Get("/refund/status", returncontrollers.RefundStatus(p.Refunds, logg))
			})

			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.With(adminOnly).Post("/inventory/reserve", ordercontrollers.ReserveInventory(p.Inventory, logg))
				r.With(adminOnly).Post("/inventory/restore", ordercontrollers.RestoreInventory(p.Inventory, logg))
				r.With(adminOnly).Post("/cancel", ordercontrollers.Cancel(p.Orders, logg))
				r.Get("/notifications", ordercontrollers.ListNotifications(p.Notifications, logg))
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", controllers.ListJobs(p.Jobs))
				r.With(adminOnly).Post("/{name}", controllers.RunJob(p.Jobs, logg))
			})
		})
	})

	return r
}
