package config

const (
	EnvPrefix = "STOCKROOM"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "STOCKROOM_APP_ENV"
	EnvPort   = "STOCKROOM_APP_PORT"

	EnvDBDSN  = "STOCKROOM_DB_DSN"
	EnvDBHost = "STOCKROOM_DB_HOST"
	EnvDBUser = "STOCKROOM_DB_USER"
	EnvDBName = "STOCKROOM_DB_NAME"

	EnvRedisURL = "STOCKROOM_REDIS_URL"

	EnvGCPProjectID          = "STOCKROOM_GCP_PROJECT_ID"
	EnvPubSubSalesTopic      = "STOCKROOM_PUBSUB_SALES_TOPIC"
	EnvPubSubSalesSub        = "STOCKROOM_PUBSUB_SALES_SUBSCRIPTION"
	EnvPubSubDomainTopic     = "STOCKROOM_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub       = "STOCKROOM_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvFulfillmentMaxRetries = "STOCKROOM_FULFILLMENT_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
