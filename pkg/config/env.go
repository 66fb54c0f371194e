package config

const (
	EnvPrefix = "AURELIA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "AURELIA_APP_ENV"
	EnvPort     = "AURELIA_APP_PORT"
	EnvLogLevel = "AURELIA_LOG_LEVEL"

	EnvDBDSN    = "AURELIA_DB_DSN"
	EnvDBDriver = "AURELIA_DB_DRIVER"
	EnvDBHost   = "AURELIA_DB_HOST"
	EnvDBUser   = "AURELIA_DB_USER"
	EnvDBName   = "AURELIA_DB_NAME"

	EnvRedisURL = "AURELIA_REDIS_URL"

	EnvJWTSecret = "AURELIA_JWT_SECRET"
	EnvJWTIssuer = "AURELIA_JWT_ISSUER"

	EnvReturnsAutoApprove        = "AURELIA_RETURNS_AUTO_APPROVE"
	EnvReturnsAutoSchedulePickup = "AURELIA_RETURNS_AUTO_SCHEDULE_PICKUP"
	EnvReturnsAutoRefund         = "AURELIA_RETURNS_AUTO_REFUND"

	EnvWarehousePincode = "AURELIA_WAREHOUSE_PINCODE"

	EnvShippingAutoShip      = "AURELIA_SHIPPING_AUTO_SHIP"
	EnvShippingAutoShipDelay = "AURELIA_SHIPPING_AUTO_SHIP_DELAY_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
