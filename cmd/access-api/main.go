// cmd/access-api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"access-workflow/internal/api"
	"access-workflow/internal/app"
	"access-workflow/internal/common/config"
	"access-workflow/internal/common/logger"
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

	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})
	log.Info("Starting access API", map[string]interface{}{"port": cfg.HTTP.Port})

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

	authenticator, err := app.NewAuthenticator(cfg.Auth)
	if err != nil {
		zapLog.Fatal("authenticator init failed", zap.Error(err))
	}

	server := api.NewServer(
		cfg.HTTP,
		application.Workflow,
		application.Inbox,
		authenticator,
		application.ReadinessChecks(),
		log,
	)

	if err := server.Run(ctx); err != nil {
		log.Error("HTTP server stopped with error", map[string]interface{}{"error": err.Error()})
		return
	}
	log.Info("Access API stopped", nil)
}
