package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"weather-tracker/internal/client"
	"weather-tracker/internal/config"
	"weather-tracker/internal/handlers"
	"weather-tracker/internal/logger"
	"weather-tracker/internal/services"
	"weather-tracker/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	shutdownTracer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		zapLog.Fatal("tracer init failed", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			zapLog.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	weatherClient := client.NewWeatherClient(cfg.Weather)
	weatherService := services.NewWeatherService(weatherClient, log)
	router := handlers.NewRouter(handlers.NewHandler(weatherService, log))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		zapLog.Info("weather service listening",
			zap.String("addr", srv.Addr),
			zap.String("upstream", cfg.Weather.BaseURL),
			zap.Bool("tracing", cfg.Tracing.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	exitCode := awaitExit(stop, serveErr, zapLog)

	if err := shutdown(srv, cfg.Server.ShutdownTimeout); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
		exitCode = 1
	}
	zapLog.Info("shutdown complete", zap.Int("exitCode", exitCode))

	if exitCode != 0 {
		// os.Exit skips deferred calls, so flush explicitly.
		if err := shutdownTracer(context.Background()); err != nil {
			zapLog.Warn("tracer shutdown failed", zap.Error(err))
		}
		_ = zapLog.Sync()
		os.Exit(exitCode)
	}
}

// awaitExit blocks until a signal arrives or the server stops on its own, and
// returns the process exit code for that outcome.
func awaitExit(stop <-chan os.Signal, serveErr <-chan error, zapLog *zap.Logger) int {
	select {
	case <-stop:
		zapLog.Info("shutdown signal received")
		return 0
	case err := <-serveErr:
		zapLog.Error("server failed", zap.Error(err))
		return 1
	}
}

func shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
