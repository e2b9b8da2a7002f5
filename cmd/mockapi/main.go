// Command mockapi serves the booking backend contract from memory for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/config"
	"github.com/and161185/bookly/internal/logging"
	"github.com/and161185/bookly/internal/mockapi"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main reads MOCKAPI_* settings, lets flags override them, and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.LoadMock()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Flags
	addr := flag.String("addr", cfg.Addr, "listen address")
	jwtKey := flag.String("jwt-key", cfg.JWTKey, "HS256 signing key (required)")
	accessTTL := flag.Duration("access-ttl", cfg.AccessTTL, "access token TTL")
	refreshTTL := flag.Duration("refresh-ttl", cfg.RefreshTTL, "refresh token TTL")
	dev := flag.Bool("dev", cfg.LogDev, "human-readable logs")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or MOCKAPI_JWT_KEY)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mockapi.New(mockapi.Config{
		SignKey:    []byte(*jwtKey),
		AccessTTL:  *accessTTL,
		RefreshTTL: *refreshTTL,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.Start(*addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
