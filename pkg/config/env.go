package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "STOREFRONT_APP_ENV"
	EnvPort                   = "STOREFRONT_APP_PORT"
	EnvDBDSN                  = "STOREFRONT_DB_DSN"
	EnvDBHost                 = "STOREFRONT_DB_HOST"
	EnvDBUser                 = "STOREFRONT_DB_USER"
	EnvDBName                 = "STOREFRONT_DB_NAME"
	EnvRedisURL               = "STOREFRONT_REDIS_URL"
	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer              = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"
	EnvAccessTimeout          = "STOREFRONT_ACCESS_TIMEOUT"
	EnvDBDriver               = "STOREFRONT_DB_DRIVER"
	EnvCronLockTTL            = "STOREFRONT_CRON_LOCK_TTL"
	EnvCronJobTimeout         = "STOREFRONT_CRON_JOB_TIMEOUT"
)
