package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"budgetwise/internal/accounting"
	"budgetwise/internal/amqp"
	"budgetwise/internal/cli"
	apphttp "budgetwise/internal/http"
	"budgetwise/internal/notify"
	"budgetwise/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backend := cli.OpenStore(logger, cfg)
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()
	st := backend.Store

	// Chat notifications go through AMQP when configured.
	var chatPublisher notify.ChatPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		chatPublisher = amqpClient
		logger.Info("AMQP chat notifications enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
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
		logger.Info("SMTP alert emails enabled", "host", cfg.SMTPHost)
	} else {
		logger.Info("SMTP disabled - no SMTP_HOST provided")
	}

	var gateway services.AccountingGateway = accounting.Disabled{}
	if cfg.AccountingURL != "" {
		gateway = accounting.NewHTTPGateway(cfg.AccountingURL)
		logger.Info("Accounting gateway enabled", "url", cfg.AccountingURL)
	} else {
		logger.Info("Accounting gateway disabled - no ACCOUNTING_URL provided")
	}

	aggregator := services.NewAggregator(st)
	svc := apphttp.Services{
		Expenses:   services.NewExpenseService(st),
		Aggregator: aggregator,
		Alerts:     services.NewAlertEngine(st, aggregator, emailSender, notify.NewChatNotifier(chatPublisher)),
		Importer:   services.NewImporter(st),
		Invoices:   services.NewInvoiceBridge(st, gateway),
		Dashboard:  services.NewProjector(st),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting budgetwise server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	slog.Info("Server stopped gracefully")
}
