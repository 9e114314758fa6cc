package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finmgr/internal/amqp"
	"finmgr/internal/apiclient"
	"finmgr/internal/backend"
	"finmgr/internal/cache"
	"finmgr/internal/cli"
	"finmgr/internal/core"
	apphttp "finmgr/internal/http"
	"finmgr/internal/log"
	"finmgr/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid session backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize session store", log.FieldError, err, log.FieldBackend, cfg.SessionBackend)
		os.Exit(1)
	}

	budgets := cache.NewLRUCache[[]core.Budget](1000, time.Minute)
	clientNames := cache.NewLRUCache[[]string](1000, 5*time.Minute)
	caches := cache.NewManager(logger)
	caches.Register("budgets", budgets)
	caches.Register("client_names", clientNames)
	if store.Cleaner != nil {
		caches.Register("sessions", store.Cleaner)
	}
	caches.StartCleanup(5 * time.Minute)

	// Without a broker invoices are still created; the ledger just stays empty.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger messages disabled", log.FieldError, err)
		} else {
			publisher = amqpClient
		}
	}

	api, err := apiclient.New(cfg.APIBaseURL, cfg.APITimeout, apiclient.WithLogger(logger))
	if err != nil {
		logger.Error("Invalid API base URL", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		API:            api,
		Sessions:       store.Store,
		Invoices:       services.NewInvoiceService(publisher, clientNames, logger),
		Budgets:        budgets,
		ClientNames:    clientNames,
		CookieSecure:   cfg.SessionCookieSecure,
		SessionTTL:     cfg.SessionTTL,
		LoginRateLimit: cfg.LoginRateLimit,
		Logger:         logger,
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Session store close failed", log.FieldError, err)
		}
	})

	logger.Info("Starting finmgr server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		log.FieldBackend, cfg.SessionBackend,
		"amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
