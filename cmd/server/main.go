package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/logger"
	"fintrack/internal/marketdata"
	"fintrack/internal/portfolio"
	"fintrack/internal/service"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine; the config file and real environment cover it.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	client := marketdata.NewClient(&cfg.MarketData, log)
	ratesCache := marketdata.NewCache[portfolio.Rates](
		time.Duration(cfg.MarketData.RatesCacheMinutes)*time.Minute, nil)
	pricesCache := marketdata.NewCache[map[string]float64](
		time.Duration(cfg.MarketData.PriceCacheSeconds)*time.Second, nil)
	rateProvider := marketdata.NewRateProvider(client, ratesCache, log)

	priceSvc := service.NewPriceService(db, client, pricesCache, log)
	txSvc := service.NewTransactionService(db, rateProvider, log)
	depositSvc := service.NewDepositService(db, log)
	portfolioSvc := service.NewPortfolioService(db, priceSvc, rateProvider, log, nil)
	historySvc := service.NewHistoryService(db, client, rateProvider, log,
		time.Duration(cfg.MarketData.BackfillThrottleHours)*time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic spot price refresh, plus one warm-up run at startup.
	scheduler := cron.New()
	refresh := func() {
		if err := priceSvc.RefreshAll(ctx); err != nil {
			log.Warn("Price refresh failed", zap.Error(err))
		}
	}
	if _, err := scheduler.AddFunc(cfg.MarketData.RefreshSchedule, refresh); err != nil {
		log.Fatal("Invalid refresh schedule", zap.Error(err))
	}
	scheduler.Start()
	go refresh()

	handler := NewAPIHandler(txSvc, depositSvc, portfolioSvc, historySvc, log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Routes(),
	}

	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Server listening", zap.Int("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed", zap.Error(err))
	}

	<-scheduler.Stop().Done()
	log.Info("Server has been shut down.")
}
