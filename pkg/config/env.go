package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLockTTL = "LOCK_TTL"

	EnvWaitlistExpiryAge    = "WAITLIST_EXPIRY_AGE"
	EnvWaitlistMinPriority  = "WAITLIST_MIN_PRIORITY"
	EnvWaitlistMaxPriority  = "WAITLIST_MAX_PRIORITY"
	EnvSweepInterval        = "SWEEP_INTERVAL"
	EnvEventTopic           = "EVENT_TOPIC"
	EnvEventDLQTopic        = "EVENT_DLQ_TOPIC"
	EnvEventPublishTimeout  = "EVENT_PUBLISH_TIMEOUT"
)
