package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docrelay/internal/config"
	handlers "docrelay/internal/http/handler"
	"docrelay/internal/http/middleware"
	"docrelay/internal/notify"
	"docrelay/internal/otel"
	"docrelay/internal/relay"
	"docrelay/internal/sharepoint"
	"docrelay/internal/staging"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracing, err := otel.Init(context.Background(), logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	tokens, err := sharepoint.NewClientCredentials(
		cfg.SharePoint.ClientID,
		cfg.SharePoint.Authority,
		cfg.SharePoint.Scope,
		cfg.SharePoint.CertPath,
		cfg.SharePoint.KeyPath,
	)
	if err != nil {
		logger.Error("failed to load document store credentials", "error", err)
		os.Exit(1)
	}
	store := sharepoint.NewClient(cfg.SharePoint, tokens, logger)

	mailer := notify.NewSMTPMailer(cfg.SMTP)
	notifier := notify.NewEmailNotifier(mailer, cfg.SMTP, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	relayMetrics, err := relay.NewMetrics(reg)
	if err != nil {
		logger.Error("failed to register relay metrics", "error", err)
		os.Exit(1)
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	stager := staging.NewStager(cfg.Staging, logger)
	orchestrator := relay.NewOrchestrator(store, notifier, cfg.SharePoint.TargetFolder, logger, relayMetrics)
	sweeper := relay.NewSweeper(stager.Root(), orchestrator, logger, relayMetrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(logger, notifier),
	})

	// Register global middleware
	app.Use(fiberrecover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, cfg.APIKey, stager, orchestrator, sweeper)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	addr := ":" + cfg.Port
	logger.Info("starting server", "addr", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
