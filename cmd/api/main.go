package main

import (
	"ticketing/internal/auth"
	bookingshandler "ticketing/internal/bookings/handler"
	"ticketing/internal/bookings/publisher"
	bookingsrepo "ticketing/internal/bookings/repository"
	bookingsservice "ticketing/internal/bookings/service"
	eventshandler "ticketing/internal/events/handler"
	eventsrepo "ticketing/internal/events/repository"
	eventsservice "ticketing/internal/events/service"
	usershandler "ticketing/internal/users/handler"
	usersrepo "ticketing/internal/users/repository"
	usersservice "ticketing/internal/users/service"
	"ticketing/pkg/app"
	"ticketing/pkg/config"
	"ticketing/pkg/contracts"
	mongotx "ticketing/pkg/db/mongo"
	"ticketing/pkg/kafka"
	kafka_config "ticketing/pkg/kafka/config"
	kafkamiddleware "ticketing/pkg/kafka/middleware"
	"ticketing/pkg/metrics"
	"ticketing/pkg/validation"
)

const ServiceName = "ticketing-api"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	metrics.Register()

	cfg.Log.Info("Starting Ticketing API")
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(initHandlers(cfg, serverApp))
	serverApp.Run()
}

func initHandlers(cfg *config.Config, serverApp *app.Application) contracts.Handler {
	validator, err := validation.New()
	if err != nil {
		cfg.Log.Fatal("Failed to build validator", "error", err)
	}

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	txManager := mongotx.NewTransactionManager(cfg.Client.Mongo)

	userRepo := usersrepo.NewMongoUserRepository(cfg, db)
	eventRepo := eventsrepo.NewMongoEventRepository(cfg, db)
	bookingRepo := bookingsrepo.NewMongoBookingRepository(cfg, db)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpire, cfg.JWTIssuer)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	authenticator := auth.NewAuthenticator(tokens, userRepo, cfg.Log)

	bookingPublisher := initPublisher(cfg, serverApp)

	userService := usersservice.NewUserService(userRepo, validator, hasher, tokens, cfg)
	eventService := eventsservice.NewEventService(eventRepo, bookingRepo, userRepo, bookingPublisher, txManager, validator, cfg)
	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		eventRepo,
		txManager,
		bookingPublisher,
		validator,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return contracts.Handlers{
		usershandler.NewUserHandler(userService, authenticator, cfg.DefaultPageSize, cfg.Log),
		eventshandler.NewEventHandler(eventService, authenticator, cfg.DefaultPageSize, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, authenticator, cfg.Log),
	}
}

func initPublisher(cfg *config.Config, serverApp *app.Application) publisher.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events will not be published")
		return publisher.NoopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaBookingTopic, kafkaCfg.DLQTopic(cfg.KafkaBookingTopic), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err, "topic", cfg.KafkaBookingTopic)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafkamiddleware.MetricsProducerMiddleware())
	}
	serverApp.OnShutdown(producer.Close)

	return publisher.NewKafkaPublisher(producer, ServiceName)
}
