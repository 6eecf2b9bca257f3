package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgemo/market-game/internal/config"
	"github.com/forgemo/market-game/internal/engine"
	"github.com/forgemo/market-game/internal/handler"
	"github.com/forgemo/market-game/internal/ledger"
	"github.com/forgemo/market-game/internal/service"
	"github.com/forgemo/market-game/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ledger and stores.
	l := ledger.New()
	assetStore := store.NewAssetStore()
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()
	webhookStore := store.NewWebhookStore()

	// Engine registry: one matching engine per asset, created lazily.
	registry := engine.NewRegistry(l, orderStore, tradeStore, cfg.CommandFee)

	// Services (webhook first — needed by the expiry manager).
	webhookSvc := service.NewWebhookService(webhookStore, l, cfg.WebhookTimeout)
	portfolioSvc := service.NewPortfolioService(l, assetStore)
	assetSvc := service.NewAssetService(assetStore)

	expiryMgr := engine.NewExpiryManager(cfg.ExpirationInterval, registry, webhookSvc)

	orderSvc := service.NewOrderService(registry, expiryMgr, l, assetStore, orderStore, webhookSvc, cfg.OrderTTL)
	bookSvc := service.NewBookService(registry, assetStore)

	// Router.
	router := handler.NewRouter(portfolioSvc, assetSvc, orderSvc, bookSvc, webhookSvc, logger)

	// Start expiration goroutine with cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	expiryMgr.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop the HTTP server, cancel the expiry
	// goroutine, then drain the per-asset engines.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	registry.StopAll()

	logger.Info("server stopped")
}
