package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ticketing/pkg/client"
	"ticketing/pkg/logger"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	JWTSecret  string
	JWTExpire  time.Duration
	JWTIssuer  string
	BcryptCost int

	EventRequireApproval bool
	MaxTicketsPerBooking int
	DefaultPageSize      int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout       time.Duration
	IdempotencyTTL       time.Duration
	IdempotencyRedisAddr string
	RedisPassword        string
	RedisDB              int
	MaxRequestSize       int
	CORSAllowedOrigins   []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	KafkaEnabled      bool
	KafkaBookingTopic string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads .env (if present) and the process environment. Invalid
// configuration is fatal.
func Load(serviceName string) *Config {
	envFileErr := godotenv.Load()

	cfg := FromEnv(serviceName)

	if envFileErr != nil && !errors.Is(envFileErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to read .env file", "error", envFileErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the environment without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret:  getEnvStr(EnvJWTSecret, ""),
		JWTExpire:  getEnvDuration(EnvJWTExpire, DefaultJWTExpire),
		JWTIssuer:  getEnvStr(EnvJWTIssuer, DefaultJWTIssuer),
		BcryptCost: getEnvNum(EnvBcryptCost, DefaultBcryptCost),

		EventRequireApproval: getEnvBool(EnvEventRequireApproval, false),
		MaxTicketsPerBooking: getEnvNum(EnvMaxTicketsPerBooking, DefaultMaxTicketsPerBooking),
		DefaultPageSize:      getEnvNum(EnvDefaultPageSize, DefaultPageSize),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout:       getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL:       getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		IdempotencyRedisAddr: getEnvStr(EnvIdempotencyRedisAddr, ""),
		RedisPassword:        getEnvStr(EnvRedisPassword, ""),
		RedisDB:              getEnvNum(EnvRedisDB, 0),
		MaxRequestSize:       getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),
		CORSAllowedOrigins:   getEnvList(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		KafkaEnabled:      getEnvBool(EnvKafkaEnabled, false),
		KafkaBookingTopic: getEnvStr(EnvKafkaBookingTopic, DefaultKafkaBookingTopic),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.IdempotencyRedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	port, err := strconv.Atoi(cfg.Port)
	check(err == nil && port >= 1 && port <= 65535, "Port must be between 1 and 65535, got: %s", cfg.Port)

	if cfg.MongoURI == "" {
		check(false, "MongoURI cannot be empty")
	} else {
		check(mongoSchemeRegex.MatchString(cfg.MongoURI),
			"MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI))
	}
	check(cfg.MongoDatabaseName != "", "MongoDatabaseName cannot be empty")

	check(len(cfg.JWTSecret) >= MinJWTSecretLen, "JWTSecret must be at least %d characters", MinJWTSecretLen)
	check(cfg.BcryptCost >= bcrypt.MinCost && cfg.BcryptCost <= bcrypt.MaxCost,
		"BcryptCost must be between %d and %d, got: %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost)

	check(cfg.MaxTicketsPerBooking > 0, "MaxTicketsPerBooking must be positive, got: %d", cfg.MaxTicketsPerBooking)
	check(cfg.DefaultPageSize > 0 && cfg.DefaultPageSize <= MaxPageSize,
		"DefaultPageSize must be between 1 and %d, got: %d", MaxPageSize, cfg.DefaultPageSize)
	check(cfg.RateLimitRequests > 0, "RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests)
	check(cfg.MaxRequestSize > 0, "MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize)

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"JWTExpire", cfg.JWTExpire},
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
	} {
		check(d.value > 0, "%s must be positive, got: %s", d.name, d.value)
	}

	check(!cfg.KafkaEnabled || cfg.KafkaBookingTopic != "", "KafkaBookingTopic cannot be empty when Kafka is enabled")

	if len(problems) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Configuration validation failed:\n")
	for i, p := range problems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	return errors.New(b.String())
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_expire", cfg.JWTExpire,
		"jwt_issuer", cfg.JWTIssuer,
		"bcrypt_cost", cfg.BcryptCost,
		"event_require_approval", cfg.EventRequireApproval,
		"max_tickets_per_booking", cfg.MaxTicketsPerBooking,
		"default_page_size", cfg.DefaultPageSize,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"idempotency_redis_set", cfg.IdempotencyRedisAddr != "",
		"max_request_size", cfg.MaxRequestSize,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_booking_topic", cfg.KafkaBookingTopic,
	)
}

var (
	mongoSchemeRegex     = regexp.MustCompile(`^mongodb(\+srv)?://.+`)
	mongoCredentialRegex = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

func redactMongoURI(uri string) string {
	return mongoCredentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

// envOr parses key with parse, falling back when it is unset or malformed.
func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := parse(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvStr(key, fallback string) string {
	return envOr(key, fallback, func(v string) (string, error) { return v, nil })
}

func getEnvNum(key string, fallback int) int {
	return envOr(key, fallback, strconv.Atoi)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	return envOr(key, fallback, time.ParseDuration)
}

func getEnvBool(key string, fallback bool) bool {
	return envOr(key, fallback, strconv.ParseBool)
}

func getEnvList(key string, fallback []string) []string {
	return envOr(key, fallback, func(v string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) == 0 {
			return nil, errors.New("empty list")
		}
		return out, nil
	})
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

// NormalizePage clamps a 1-based page number to [1, MaxPage].
func NormalizePage(page int) int {
	return min(max(1, page), MaxPage)
}

// PageOffset is the number of documents to skip for page. The page is
// clamped first so the product cannot overflow.
func PageOffset(page, limit int) int64 {
	return int64(NormalizePage(page)-1) * int64(max(0, limit))
}

// NormalizePaginationLimit clamps limit to (0, MaxPageSize], using
// defaultLimit when the caller did not ask for one.
func NormalizePaginationLimit(limit, defaultLimit int) int {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageSize
	}
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return limit
}
