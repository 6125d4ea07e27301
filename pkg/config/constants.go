package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "STOREFRONT_APP_ENV"
	EnvPort               = "STOREFRONT_APP_PORT"
	EnvDBDSN              = "STOREFRONT_DB_DSN"
	EnvDBHost             = "STOREFRONT_DB_HOST"
	EnvDBUser             = "STOREFRONT_DB_USER"
	EnvDBPassword         = "STOREFRONT_DB_PASSWORD"
	EnvDBName             = "STOREFRONT_DB_NAME"
	EnvRedisURL           = "STOREFRONT_REDIS_URL"
	EnvJWTSecret          = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer          = "STOREFRONT_JWT_ISSUER"
	EnvCancellationWindow = "STOREFRONT_ORDERS_CANCELLATION_WINDOW"
	EnvCancellationPolicy = "STOREFRONT_ORDERS_CANCELLATION_POLICY"
	EnvPaymentsAttempts   = "STOREFRONT_PAYMENTS_MAX_ATTEMPTS"
)
