package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/food-orders/internal/circuitbreaker"
	"github.com/jogardn/food-orders/internal/config"
	"github.com/jogardn/food-orders/internal/mail"
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

	queue, err := mail.Dial(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MailQueue, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer queue.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:        "smtp",
		MaxFailures: 3,
		OpenTimeout: time.Minute,
	}, logger)

	worker := mail.NewWorker(mail.NewSMTPSender(cfg.SMTP), breaker, logger)

	if err := queue.Consume(ctx, "mailer", worker.Handle); err != nil {
		logger.WithError(err).Fatal("Mail consumer stopped")
	}

	logger.Info("Mailer stopped")
}
