// Command finmgr-worker consumes invoice.created messages and appends each
// invoice to the ledger.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finmgr/internal/amqp"
	"finmgr/internal/backend"
	"finmgr/internal/cli"
	"finmgr/internal/log"
	"finmgr/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting finmgr-worker")
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ledgerCfg, err := backend.LedgerFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid ledger configuration", log.FieldError, err)
		os.Exit(1)
	}
	ledger, err := backend.NewFactory(logger).CreateLedger(context.Background(), ledgerCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err, log.FieldBackend, cfg.LedgerBackend)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err)
		}
	})

	if entries, err := ledger.ListEntries(ctx); err != nil {
		logger.Warn("Could not read ledger", log.FieldError, err)
	} else {
		logger.Info("Ledger ready", "entries", len(entries))
	}

	ledgerWorker := worker.NewLedgerWorker(ledger, logger)
	if err := amqpClient.ConsumeInvoiceCreated(ctx, ledgerWorker.HandleInvoiceCreated); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped")
}
