package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bankverify/bankverify/internal/audit"
	"github.com/bankverify/bankverify/internal/config"
	"github.com/bankverify/bankverify/internal/infra"
	"github.com/bankverify/bankverify/internal/logging"
	"github.com/bankverify/bankverify/internal/notification"
	"github.com/bankverify/bankverify/internal/verification"
)

const runTimeout = 30 * time.Second

// The worker periodically moves overdue verification requests to expired.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, infra.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	recorder := audit.NewAsyncRecorder(audit.NewPostgresRepository(pool), logger, audit.Options{})
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := recorder.Close(closeCtx); err != nil {
			logger.Warn("flush audit events", "error", err)
		}
	}()

	svc := verification.NewService(
		verification.NewPostgresRepository(pool),
		notification.NewLoggerNotifier(logger),
		recorder,
		logger,
		cfg.BorrowerBaseURL,
	)

	interval := cfg.WorkerInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("expiry worker started", "interval", interval.String())
	for {
		select {
		case <-sigCtx.Done():
			logger.Info("expiry worker stopped")
			return
		case <-ticker.C:
			runCtx, runCancel := context.WithTimeout(sigCtx, runTimeout)
			_, err := svc.ExpireOverdue(runCtx)
			runCancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("expire overdue verifications", "error", err)
			}
		}
	}
}
