package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adsreport/internal/delivery"
	"adsreport/internal/infrastructure"
	"adsreport/internal/usecase"
	"adsreport/pkg/config"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting ads reporting service")

	m := metrics.New()

	insights := infrastructure.NewInsightsClient(cfg.Insights, log, m)
	statuses := infrastructure.NewCampaignStatusRepository(cfg.Enrichment, cfg.Insights.AccessToken, log, m)
	creatives := infrastructure.NewCreativeRepository(cfg.Enrichment, cfg.Insights.AccessToken, log, m)
	sink := infrastructure.NewSheetsClient(cfg.Sheets, cfg.Insights.RequestTimeout, log, m)

	reportService := usecase.NewReportService(insights, statuses, creatives, sink, log, m)

	handlers := delivery.NewHTTPHandlers(reportService, log, m)
	router := delivery.NewHTTPRouter(handlers, log, m)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.SetupRoutes(),
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced server shutdown")
	}

	log.Info("Server stopped")
}
