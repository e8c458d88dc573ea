// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"access-workflow/internal/app"
	"access-workflow/internal/common/camunda"
	"access-workflow/internal/common/config"
	"access-workflow/internal/common/logger"

	car "access-workflow/internal/workers/access/create-access-request"
	rar "access-workflow/internal/workers/access/respond-access-request"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{Level: "info", Format: "console"}).
			Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name + "-workers",
	})

	zapLog.Info("Starting worker manager...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("application startup failed", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		application.Close(closeCtx)
	}()

	// --- Init Zeebe Client ---
	zeebe, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	// --- Register Workers ---
	createHandler, err := car.NewHandler(car.HandlerOptions{
		AppConfig:     cfg,
		Workflow:      application.Workflow,
		Observability: application.Observability,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("create handler init failed", zap.Error(err))
	}

	respondHandler, err := rar.NewHandler(rar.HandlerOptions{
		AppConfig:     cfg,
		Workflow:      application.Workflow,
		Observability: application.Observability,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("respond handler init failed", zap.Error(err))
	}

	var workers []*camunda.CamundaWorker
	if createHandler.IsEnabled() {
		wc := createHandler.GetConfig()
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), createHandler, camunda.WorkerOptions{
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       wc.Timeout,
		}, log))
	}
	if respondHandler.IsEnabled() {
		wc := respondHandler.GetConfig()
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), respondHandler, camunda.WorkerOptions{
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       wc.Timeout,
		}, log))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	checks := application.ReadinessChecks()
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(rctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	http.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.HTTP.Addr(), ReadTimeout: config.GetDuration(cfg.HTTP.ReadTimeout)}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
