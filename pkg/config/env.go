package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvJWTSecret  = "JWT_SECRET"
	EnvJWTExpire  = "JWT_EXPIRE"
	EnvJWTIssuer  = "JWT_ISSUER"
	EnvBcryptCost = "BCRYPT_COST"

	EnvEventRequireApproval = "EVENT_REQUIRE_APPROVAL"
	EnvMaxTicketsPerBooking = "MAX_TICKETS_PER_BOOKING"
	EnvDefaultPageSize      = "DEFAULT_PAGE_SIZE"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout       = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL       = "IDEMPOTENCY_TTL"
	EnvIdempotencyRedisAddr = "IDEMPOTENCY_REDIS_ADDR"
	EnvRedisPassword        = "REDIS_PASSWORD"
	EnvRedisDB              = "REDIS_DB"
	EnvMaxRequestSize       = "MAX_REQUEST_SIZE"
	EnvCORSAllowedOrigins   = "CORS_ALLOWED_ORIGINS"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvKafkaEnabled      = "KAFKA_ENABLED"
	EnvKafkaBookingTopic = "KAFKA_BOOKING_TOPIC"
)
