package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "resourcehub"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Advisory locks auto-expire so a crashed holder cannot wedge a resource.
	DefaultLockTTL = 10 * time.Second

	DefaultWaitlistExpiryAge   = 30 * 24 * time.Hour
	DefaultWaitlistMinPriority = 0
	DefaultWaitlistMaxPriority = 100
	DefaultSweepInterval       = 5 * time.Minute

	DefaultEventTopic          = "booking-events"
	DefaultEventDLQTopic       = "booking-events-dlq"
	DefaultEventPublishTimeout = 5 * time.Second

	DefaultPaginationLimit = 100
)
