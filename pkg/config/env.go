package config

const (
	EnvPrefix = "REMITFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "REMITFLOW_APP_ENV"
	EnvPort                   = "REMITFLOW_APP_PORT"
	EnvLogFormat              = "REMITFLOW_LOG_FORMAT"
	EnvDBDSN                  = "REMITFLOW_DB_DSN"
	EnvDBHost                 = "REMITFLOW_DB_HOST"
	EnvDBUser                 = "REMITFLOW_DB_USER"
	EnvDBName                 = "REMITFLOW_DB_NAME"
	EnvRedisURL               = "REMITFLOW_REDIS_URL"
	EnvJWTSecret              = "REMITFLOW_JWT_SECRET"
	EnvJWTIssuer              = "REMITFLOW_JWT_ISSUER"
	EnvJWTExpMins             = "REMITFLOW_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "REMITFLOW_REFRESH_TOKEN_TTL_MINUTES"
	EnvCORSAllowedOrigins     = "REMITFLOW_CORS_ALLOWED_ORIGINS"
	EnvCommissionMinAmount    = "REMITFLOW_COMMISSION_MIN_AMOUNT"
	EnvReferenceAttempts      = "REMITFLOW_TRANSFER_REFERENCE_ATTEMPTS"
)
