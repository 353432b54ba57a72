package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jogardn/food-orders/internal/config"
	"github.com/jogardn/food-orders/internal/events"
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

	consumer, err := events.NewDLQConsumer(cfg.Kafka.Brokers, cfg.DLQ.GroupID, cfg.DLQ.Replay, cfg.DLQ.MaxReplays, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create DLQ consumer")
	}
	defer consumer.Close()

	logger.WithFields(logrus.Fields{
		"topic":       events.OrderCreatedDLQTopic,
		"replay":      cfg.DLQ.Replay,
		"max_replays": cfg.DLQ.MaxReplays,
	}).Info("DLQ Monitor started")

	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Error("DLQ consumer stopped")
	}

	logger.Info("Shutting down DLQ monitor...")
}
