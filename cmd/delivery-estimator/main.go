package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/jogardn/food-orders/internal/circuitbreaker"
	"github.com/jogardn/food-orders/internal/config"
	"github.com/jogardn/food-orders/internal/delivery"
	"github.com/jogardn/food-orders/internal/events"
	"github.com/jogardn/food-orders/internal/health"
	"github.com/jogardn/food-orders/internal/httpx"
	"github.com/jogardn/food-orders/internal/store"
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

	breakers := circuitbreaker.NewManager(logger)
	breaker := breakers.GetOrCreate("distance-matrix", delivery.BreakerConfig())

	client := delivery.NewMatrixClient(cfg.Matrix.URL, cfg.Matrix.Key, breaker, logger)
	estimator := delivery.NewEstimator(client, db, logger)

	consumer, err := events.NewRetryConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, estimator, events.DefaultRetryPolicy, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Consumer stopped")
			stop()
		}
	}()

	router := mux.NewRouter()
	router.Use(httpx.LoggingMiddleware(logger))
	router.Handle("/health", health.NewHandler("delivery-estimator", map[string]health.Pinger{
		"postgres": db,
	}, logger)).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"consumer":         consumer.Metrics(),
			"circuit_breakers": breakers.Snapshot(),
		})
	}).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breakers/{name}/reset", func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if !breakers.Reset(name) {
			respondWithJSON(w, http.StatusNotFound, map[string]interface{}{
				"success": false,
				"message": "Circuit breaker not found",
			})
			return
		}
		logger.WithField("breaker", name).Info("Circuit breaker reset via API")
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}).Methods(http.MethodPost)

	logger.WithField("topic", events.OrderCreatedTopic).Info("Delivery estimator started")

	if err := httpx.Serve(ctx, httpx.NewServer(cfg.HTTP.EstimatorPort, router), logger); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
