package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Returns   ReturnsConfig
	Warehouse WarehouseConfig
	Shipping  ShippingConfig
	Courier   CourierConfig
	Stripe    StripeConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Eventing  EventingConfig
	Outbox    OutboxConfig
	Mail      MailConfig
	Cron      CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"AURELIA_APP_ENV" required:"true"`
	Port         string   `envconfig:"AURELIA_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"AURELIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"AURELIA_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool     `envconfig:"AURELIA_AUTO_MIGRATE" default:"false"`
	CORSOrigins  []string `envconfig:"AURELIA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AURELIA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AURELIA_DB_DSN"`
	Driver string `envconfig:"AURELIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AURELIA_DB_HOST"`
	LegacyPort     int    `envconfig:"AURELIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AURELIA_DB_USER"`
	LegacyPassword string `envconfig:"AURELIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"AURELIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"AURELIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AURELIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AURELIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AURELIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AURELIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// UsesSQLite reports whether the configured driver is the embedded SQLite engine.
func (db DBConfig) UsesSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"AURELIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AURELIA_REDIS_ADDR"`
	Password     string        `envconfig:"AURELIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AURELIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AURELIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AURELIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AURELIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AURELIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AURELIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AURELIA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AURELIA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AURELIA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig bounds requests per actor on the authenticated API.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"AURELIA_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"AURELIA_RATE_LIMIT_REQUESTS" default:"120"`
}

// ReturnsConfig carries the automation switches for the return lifecycle.
type ReturnsConfig struct {
	AutoApprove        bool `envconfig:"AURELIA_RETURNS_AUTO_APPROVE" default:"true"`
	AutoSchedulePickup bool `envconfig:"AURELIA_RETURNS_AUTO_SCHEDULE_PICKUP" default:"true"`
	AutoRefund         bool `envconfig:"AURELIA_RETURNS_AUTO_REFUND" default:"false"`
	SweepBatchSize     int  `envconfig:"AURELIA_RETURNS_SWEEP_BATCH_SIZE" default:"50"`
	WindowDays         int  `envconfig:"AURELIA_RETURNS_WINDOW_DAYS" default:"15"`
}

// WarehouseConfig is the fixed deliver-to address for reverse pickups and the
// pickup-from address for forward shipments.
type WarehouseConfig struct {
	Name        string `envconfig:"AURELIA_WAREHOUSE_NAME" default:"Aurelia Jewels Warehouse"`
	Line1       string `envconfig:"AURELIA_WAREHOUSE_ADDRESS_LINE1"`
	Line2       string `envconfig:"AURELIA_WAREHOUSE_ADDRESS_LINE2"`
	City        string `envconfig:"AURELIA_WAREHOUSE_CITY"`
	State       string `envconfig:"AURELIA_WAREHOUSE_STATE"`
	PostalCode  string `envconfig:"AURELIA_WAREHOUSE_PINCODE"`
	Country     string `envconfig:"AURELIA_WAREHOUSE_COUNTRY" default:"India"`
	Phone       string `envconfig:"AURELIA_WAREHOUSE_PHONE"`
	Email       string `envconfig:"AURELIA_WAREHOUSE_EMAIL"`
	PickupAlias string `envconfig:"AURELIA_WAREHOUSE_PICKUP_LOCATION" default:"Primary"`
}

type ShippingConfig struct {
	AutoShip             bool `envconfig:"AURELIA_SHIPPING_AUTO_SHIP" default:"false"`
	AutoShipDelayMinutes int  `envconfig:"AURELIA_SHIPPING_AUTO_SHIP_DELAY_MINUTES" default:"30"`
	MaxAttempts          int  `envconfig:"AURELIA_SHIPPING_MAX_ATTEMPTS" default:"3"`
}

// AutoShipDelay returns the configured grace period before an order ships.
func (s ShippingConfig) AutoShipDelay() time.Duration {
	if s.AutoShipDelayMinutes <= 0 {
		return 0
	}
	return time.Duration(s.AutoShipDelayMinutes) * time.Minute
}

type CourierConfig struct {
	BaseURL     string        `envconfig:"AURELIA_COURIER_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	Email       string        `envconfig:"AURELIA_COURIER_EMAIL"`
	Password    string        `envconfig:"AURELIA_COURIER_PASSWORD"`
	Timeout     time.Duration `envconfig:"AURELIA_COURIER_TIMEOUT" default:"20s"`
	TrackingURL string        `envconfig:"AURELIA_COURIER_TRACKING_URL" default:"https://shiprocket.co/tracking/"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"AURELIA_STRIPE_API_KEY"`
	Env      string `envconfig:"AURELIA_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"AURELIA_STRIPE_CURRENCY" default:"inr"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AURELIA_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"AURELIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"AURELIA_PUBSUB_DOMAIN_TOPIC" default:"aurelia-domain-events"`
	DomainSubscription string `envconfig:"AURELIA_PUBSUB_DOMAIN_SUBSCRIPTION" default:"aurelia-domain-events-sub"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"AURELIA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"AURELIA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"AURELIA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"AURELIA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"AURELIA_OUTBOX_RETENTION" default:"720h"`
}

type MailConfig struct {
	Host     string `envconfig:"AURELIA_SMTP_HOST"`
	Port     int    `envconfig:"AURELIA_SMTP_PORT" default:"587"`
	Username string `envconfig:"AURELIA_SMTP_USERNAME"`
	Password string `envconfig:"AURELIA_SMTP_PASSWORD"`
	From     string `envconfig:"AURELIA_SMTP_FROM" default:"care@aureliajewels.in"`
}

// Enabled reports whether outgoing mail is configured.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"AURELIA_CRON_INTERVAL" default:"5m"`
	LockTTL               time.Duration `envconfig:"AURELIA_CRON_LOCK_TTL" default:"4m"`
	PendingOrderTTL       time.Duration `envconfig:"AURELIA_CRON_PENDING_ORDER_TTL" default:"48h"`
	NotificationRetention time.Duration `envconfig:"AURELIA_CRON_NOTIFICATION_RETENTION" default:"2160h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.UsesSQLite() {
		db.DSN = "file:aurelia.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
