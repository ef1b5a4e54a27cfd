package main

import (
	"context"
	"fmt"
	"license-market/internal/client"
	"license-market/internal/config"
	"license-market/internal/gateway"
	"license-market/internal/repository"
	"license-market/internal/server"
	"license-market/internal/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(&cfg.Log)

	db := client.InitSqliteClient(cfg.DatabasePath)

	adapter := gateway.NewAdapter(&cfg.Gateway)

	txnRepo := repository.NewTransactionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	planRepo := repository.NewPlanRepository(db)
	toolRepo := repository.NewToolRepository(db)
	accountRepo := repository.NewLicenseAccountRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	renewRepo := repository.NewRenewalLogRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	tokenPool := service.NewTokenPool(accountRepo)
	credIssuer := service.NewCredentialIssuer(accountRepo)
	ledger := service.NewTransactionLedger(db, txnRepo, logger)
	coordinator := service.NewFulfillmentCoordinator(db, orderRepo, toolRepo, accountRepo, tokenPool, credIssuer, logger)
	notifier := service.NewLogNotifier(logger)
	lifecycle := service.NewLifecycleManager(db, accountRepo, planRepo, orderRepo, renewRepo, notifier, logger)
	staging := service.NewStagingService(db, reservationRepo, accountRepo, planRepo, tokenPool, logger)
	subscription := service.NewSellerSubscriptionService(db, subRepo, logger)

	returnURL := cfg.BaseURL + cfg.Gateway.ReturnPath
	checkout := service.NewCheckoutService(
		db, adapter, ledger, coordinator, lifecycle, subscription,
		txnRepo, orderRepo, planRepo, subRepo,
		returnURL, logger,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(checkout, lifecycle, staging)

	logger.WithField("addr", serverAddr).Info("starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Fatal("HTTP server shutdown error")
	}
}

func newLogger(cfg *config.Log) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
