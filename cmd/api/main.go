package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/paysync/internal/api"
	"github.com/punchamoorthee/paysync/internal/apiclient"
	"github.com/punchamoorthee/paysync/internal/cache"
	"github.com/punchamoorthee/paysync/internal/config"
	"github.com/punchamoorthee/paysync/internal/service"
	"github.com/punchamoorthee/paysync/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()
	kv, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		logger.Error("unable to open local store", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	// Initialize Layers
	client := apiclient.New(apiclient.Config{
		BaseURL:       cfg.APIURL,
		Timeout:       cfg.APITimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	},
		apiclient.WithTokenSource(apiclient.StoreTokens{KV: kv, Key: cfg.AccessTokenKey}),
		apiclient.WithLogger(logger.With("component", "apiclient")),
	)
	localCache := cache.New(kv, cache.Options{Logger: logger.With("component", "cache")})
	payments := service.NewPaymentService(client, localCache, service.Config{
		AppURL:        cfg.AppURL,
		SubmitTimeout: cfg.PaymentTimeout,
	}, logger.With("component", "payments"))
	handler := api.NewHandler(payments, kv, logger.With("component", "http"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "upstream", cfg.APIURL, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(srv, logger, cfg.PaymentTimeout)
}

// waitForShutdown blocks until SIGTERM or SIGINT, then lets in-flight
// requests finish within grace.
func waitForShutdown(srv *http.Server, logger *slog.Logger, grace time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped")
}
