package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/config"
	"github.com/synera-br/splennet-backend/internal/notify"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	var logger *zap.Logger
	if appConfig.Release() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer logger.Sync()

	if err := appConfig.ValidateNotifier(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	mailer, err := notify.NewMailer(appConfig.SMTP)
	if err != nil {
		logger.Fatal("Failed to configure SMTP", zap.Error(err))
	}
	queue, err := notify.NewQueue(appConfig.AMQP.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to the message broker", zap.Error(err))
	}
	defer queue.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := notify.Handler(notify.NewMailNotifier(mailer, appConfig.ClientURL, logger), logger)
	logger.Info("Notifier consuming", zap.String("queue", notify.QueueName))
	if err := queue.Consume(ctx, notify.QueueName, handler); err != nil {
		logger.Error("Notifier stopped", zap.Error(err))
		return
	}
	logger.Info("Notifier stopped")
}
