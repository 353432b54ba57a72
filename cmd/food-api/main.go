package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/jogardn/food-orders/internal/auth"
	"github.com/jogardn/food-orders/internal/config"
	"github.com/jogardn/food-orders/internal/events"
	"github.com/jogardn/food-orders/internal/health"
	"github.com/jogardn/food-orders/internal/httpx"
	"github.com/jogardn/food-orders/internal/mail"
	"github.com/jogardn/food-orders/internal/ordering"
	"github.com/jogardn/food-orders/internal/orders"
	"github.com/jogardn/food-orders/internal/restaurants"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/jogardn/food-orders/internal/users"
	"github.com/jogardn/food-orders/internal/websocket"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DB, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.CreateTables(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	redisClient, err := auth.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	tokens := auth.NewTokenStore(redisClient, auth.TokenTTLs{
		Access:  cfg.Tokens.AccessTTL,
		Refresh: cfg.Tokens.RefreshTTL,
		Reset:   cfg.Tokens.ResetTTL,
	}, logger)

	mailQueue, err := mail.Dial(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MailQueue, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer mailQueue.Close()

	// Orders are still accepted without Kafka; only delivery estimates lag.
	var publisher orders.EventPublisher
	producer, err := events.NewKafkaProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.WithError(err).Warn("Kafka unavailable, order events disabled")
	} else {
		defer producer.Close()
		publisher = producer
	}

	hub := websocket.NewHub(logger, cfg.HTTP.AllowedOrigins...)
	go hub.Run(ctx)

	composer := ordering.NewComposer(db, ordering.ServiceArea{
		City:          cfg.ServiceArea.City,
		DistrictDigit: cfg.ServiceArea.DistrictDigit,
	}, logger)

	orderHandler := orders.NewHandler(composer, db, publisher, logger)
	orderHandler.SetWebSocketHub(hub)

	userService := users.NewService(db, tokens, mailQueue, cfg.Tokens.PasswordResetURL, logger)

	router := mux.NewRouter()
	router.Use(httpx.LoggingMiddleware(logger))
	router.HandleFunc("/ws", hub.HandleWebSocket).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/health/", health.NewHandler("food-api", map[string]health.Pinger{
		"postgres": db,
		"redis":    tokens,
	}, logger)).Methods(http.MethodGet)

	private := api.NewRoute().Subrouter()
	private.Use(auth.Middleware(tokens, logger))

	restaurants.NewHandler(db, logger).RegisterRoutes(api)
	users.NewHandler(userService, logger).RegisterRoutes(api, private)
	orderHandler.RegisterRoutes(private)

	if err := httpx.Serve(ctx, httpx.NewServer(cfg.HTTP.Port, router), logger); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}
