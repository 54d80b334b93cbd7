package config

const (
	EnvPrefix = "THALIBOX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "THALIBOX_APP_ENV"
	EnvPort                   = "THALIBOX_APP_PORT"
	EnvDBDSN                  = "THALIBOX_DB_DSN"
	EnvDBHost                 = "THALIBOX_DB_HOST"
	EnvDBUser                 = "THALIBOX_DB_USER"
	EnvDBName                 = "THALIBOX_DB_NAME"
	EnvRedisURL               = "THALIBOX_REDIS_URL"
	EnvJWTSecret              = "THALIBOX_JWT_SECRET"
	EnvJWTIssuer              = "THALIBOX_JWT_ISSUER"
	EnvJWTExpMins             = "THALIBOX_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "THALIBOX_REFRESH_TOKEN_TTL_MINUTES"
	EnvSettlementCommission   = "THALIBOX_SETTLEMENT_COMMISSION_PERCENT"
	EnvSettlementGST          = "THALIBOX_SETTLEMENT_GST_PERCENT"
	EnvRazorpayKeyID          = "THALIBOX_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret      = "THALIBOX_RAZORPAY_KEY_SECRET"
	EnvRealtimeOrigins        = "THALIBOX_REALTIME_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
