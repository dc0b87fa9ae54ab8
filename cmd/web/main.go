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
	"github.com/mmembroidery/tryon-studio/internal/observability/logging"
)

const sessionSweepInterval = time.Minute

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger("web", cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.Sessions.Run(ctx, sessionSweepInterval)

	server := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// A preview request waits for the composer.
		WriteTimeout: cfg.ComposerTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web_listening", "addr", server.Addr, "order_submitter", cfg.OrderSubmitter)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("web_shutdown_failed", "error", err)
	}
}
