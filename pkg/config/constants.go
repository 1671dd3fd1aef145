package config

// EnvPrefix is passed to envconfig; individual fields carry fully prefixed
// names so the prefix stays empty here.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Canonical environment variable names, shared with tests and deploy tooling.
const (
	EnvAppEnv   = "FARMBOX_APP_ENV"
	EnvPort     = "FARMBOX_APP_PORT"
	EnvDBDSN    = "FARMBOX_DB_DSN"
	EnvDBHost   = "FARMBOX_DB_HOST"
	EnvDBUser   = "FARMBOX_DB_USER"
	EnvDBName   = "FARMBOX_DB_NAME"
	EnvRedisURL = "FARMBOX_REDIS_URL"

	EnvSquareAccessToken   = "FARMBOX_SQUARE_ACCESS_TOKEN"   //nolint:gosec
	EnvSquareWebhookSecret = "FARMBOX_SQUARE_WEBHOOK_SECRET" //nolint:gosec

	EnvGCPProjectID       = "FARMBOX_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "FARMBOX_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub    = "FARMBOX_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
