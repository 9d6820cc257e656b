package config

// EnvPrefix is passed to envconfig; individual fields carry fully prefixed
// names so this stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "RENTARIDE_APP_ENV"
	EnvPort   = "RENTARIDE_APP_PORT"

	EnvDBDSN  = "RENTARIDE_DB_DSN"
	EnvDBHost = "RENTARIDE_DB_HOST"
	EnvDBUser = "RENTARIDE_DB_USER"
	EnvDBName = "RENTARIDE_DB_NAME"

	EnvRedisURL = "RENTARIDE_REDIS_URL"

	EnvEsewaProductCode = "RENTARIDE_ESEWA_PRODUCT_CODE"
	EnvEsewaSecretKey   = "RENTARIDE_ESEWA_SECRET_KEY"
	EnvEsewaSuccessURL  = "RENTARIDE_ESEWA_SUCCESS_URL"
	EnvEsewaFailureURL  = "RENTARIDE_ESEWA_FAILURE_URL"

	EnvFrontendSuccessURL = "RENTARIDE_FRONTEND_SUCCESS_URL"
	EnvFrontendFailureURL = "RENTARIDE_FRONTEND_FAILURE_URL"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
