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

	"github.com/kirillkom/filing-classifier/internal/bootstrap"
	"github.com/kirillkom/filing-classifier/internal/config"
	"github.com/kirillkom/filing-classifier/internal/observability/logging"
	"github.com/kirillkom/filing-classifier/internal/observability/metrics"
)

const serviceName = "filing-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Observer: workerMetrics.Filing(),
		QueueLag: func(lag time.Duration) {
			workerMetrics.ObserveQueueLag(serviceName, lag)
		},
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeFilingSubmitted(ctx, func(handlerCtx context.Context, filingID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerProcessTimeout)
		defer cancel()

		filingLogger := logging.ForFiling(logger, filingID)
		workerMetrics.StartFiling()
		start := time.Now()
		err := app.ProcessUC.ProcessByID(processCtx, filingID)
		elapsed := time.Since(start)
		workerMetrics.FinishFiling(serviceName, elapsed, err)
		if err != nil {
			filingLogger.Error("worker_filing_failed", "duration_ms", elapsed.Milliseconds(), "error", err)
			return err
		}
		filingLogger.Info("worker_filing_done", "duration_ms", elapsed.Milliseconds())
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
