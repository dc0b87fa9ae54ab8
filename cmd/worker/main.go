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

	"github.com/joho/godotenv"

	"github.com/mmembroidery/tryon-studio/internal/bootstrap"
	"github.com/mmembroidery/tryon-studio/internal/config"
	"github.com/mmembroidery/tryon-studio/internal/core/domain"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/orders"
	"github.com/mmembroidery/tryon-studio/internal/observability/logging"
	"github.com/mmembroidery/tryon-studio/internal/observability/metrics"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := bootstrap.ConnectOrderQueue(cfg, "tryon-worker")
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
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
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	ack := orders.NewAckSubmitter(logger)
	logger.Info("worker_subscribed", "subject", cfg.NATSOrderSubject)
	err = queue.ConsumeCustomOrders(ctx, func(handlerCtx context.Context, order domain.SubmittedOrder) error {
		workerMetrics.StartOrder(order.SubmittedAt)
		start := time.Now()
		err := ack.SubmitCustomOrder(handlerCtx, order)
		workerMetrics.FinishOrder(time.Since(start), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_consume_failed", "error", err)
		os.Exit(1)
	}
}
