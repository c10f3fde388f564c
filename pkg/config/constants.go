package config

// EnvPrefix namespaces every environment variable consumed by envconfig.
const EnvPrefix = "ATLASPAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "ATLASPAY_DB_DSN"
	EnvDBHost = "ATLASPAY_DB_HOST"
	EnvDBUser = "ATLASPAY_DB_USER"
	EnvDBName = "ATLASPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
