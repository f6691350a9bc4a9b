package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"budgetwise/internal/amqp"
	"budgetwise/internal/cli"
	"budgetwise/internal/notify"
	"budgetwise/internal/services"
	"budgetwise/internal/worker"
)

// alert-worker runs the scheduled side of alerting: the hourly sweep of
// recurring schedules and, when enabled, the default threshold sweep over
// all active budgets. It also drains the chat queue when AMQP is
// configured.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting alert-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != "sqlite" {
		logger.Error("alert-worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	backend := cli.OpenStore(logger, cfg)
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()
	st := backend.Store

	var amqpClient *amqp.Client
	var chatPublisher notify.ChatPublisher
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		chatPublisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var emailSender services.EmailSender
	if cfg.SMTPHost != "" {
		emailSender = notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SenderEmail,
		})
	} else {
		logger.Info("SMTP disabled - no SMTP_HOST provided")
	}

	aggregator := services.NewAggregator(st)
	engine := services.NewAlertEngine(st, aggregator, emailSender, notify.NewChatNotifier(chatPublisher))
	alertWorker := worker.NewAlertWorker(engine, cfg.AlertCronSpec, cfg.DefaultSweep, cfg.ShutdownTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return alertWorker.Run(gctx)
	})

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeChatMessages(gctx, func(msg *amqp.ChatMessage) error {
				return alertWorker.HandleChatMessage(gctx, msg)
			})
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
