package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabaseName = "ticketing"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultJWTExpire  = 7 * 24 * time.Hour
	DefaultJWTIssuer  = "ticketing-api"
	DefaultBcryptCost = 10
	MinJWTSecretLen   = 16

	DefaultMaxTicketsPerBooking = 100
	DefaultPageSize             = 9
	MaxPageSize                 = 100
	MaxPage                     = 1_000_000

	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultKafkaBookingTopic = "booking-events"
)

var DefaultCORSAllowedOrigins = []string{"*"}
