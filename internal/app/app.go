// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"access-workflow/internal/common/auth"
	awsclient "access-workflow/internal/common/aws"
	"access-workflow/internal/common/config"
	"access-workflow/internal/common/database"
	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/common/observability"
	"access-workflow/internal/directory"
	"access-workflow/internal/notify"
	"access-workflow/internal/store"
	"access-workflow/internal/workflow"
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// ReadinessCheck reports whether a backing dependency answers.
type ReadinessCheck = func(ctx context.Context) error

// App holds every long-lived component of one process. Both binaries build
// it the same way and expose a different surface on top.
type App struct {
	Config        *config.Config
	Logger        logger.Logger
	Observability *observability.Observability

	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient

	Requests      store.RequestStore
	Notifications store.NotificationStore
	Directory     directory.UserDirectory
	Fanout        *notify.Fanout
	Workflow      *workflow.Workflow
	Inbox         *workflow.Inbox

	closers []func() error
}

// New connects to the configured backends and assembles the workflow.
// Postgres is mandatory; Redis, Elasticsearch and the AWS channels are
// wired only when configured.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	a.Observability = observability.New(cfg.Observability.ServiceName, cfg.Observability.TraceSampleRatio, log)

	if err := a.connect(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Requests = store.NewPostgresRequestStore(a.Postgres.GetDB())
	a.Notifications = store.NewPostgresNotificationStore(a.Postgres.GetDB())
	a.Directory = a.buildDirectory()

	routes, err := a.buildRoutes(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Fanout = notify.NewFanout(a.Notifications, a.Directory, notify.FanoutOptions{
		Routes:        routes,
		Recorder:      a.buildRecorder(),
		Observability: a.Observability,
	}, log)

	a.Workflow = workflow.New(a.Requests, a.Directory, a.Fanout, workflow.Options{
		Observability: a.Observability,
	}, log)
	a.Inbox = workflow.NewInbox(a.Notifications, log)

	log.Info("Application assembled", map[string]interface{}{
		"channels":      len(routes),
		"redis":         a.Redis != nil,
		"elasticsearch": a.Elasticsearch != nil,
	})
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config.Database

	pg, err := database.NewPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	a.Postgres = pg
	a.closers = append(a.closers, pg.Close)

	if err := RetryWithBackoff(ctx, func() error { return pg.Ping(ctx) },
		connectAttempts, connectDelay, a.Logger, "PostgreSQL connection"); err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pg.GetDB(), store.Migrations, store.MigrationsDir, a.Logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if cfg.Redis.Address != "" {
		rc, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = rc
		a.closers = append(a.closers, rc.Close)
	}

	if cfg.Elasticsearch.Enabled() {
		es, err := database.NewElasticsearch(cfg.Elasticsearch)
		if err != nil {
			return err
		}
		a.Elasticsearch = es
	}
	return nil
}

func (a *App) buildDirectory() directory.UserDirectory {
	var dir directory.UserDirectory = directory.NewPostgresDirectory(a.Postgres.GetDB())

	ttl := config.GetDuration(a.Config.Directory.CacheTTL)
	if a.Redis != nil && ttl > 0 {
		dir = directory.NewCachedDirectory(dir, a.Redis.GetClient(), ttl, a.Logger)
	}
	return dir
}

func (a *App) buildRecorder() notify.DeliveryRecorder {
	rec := notify.MultiRecorder{notify.NewLogRecorder(a.Logger)}
	if a.Elasticsearch != nil {
		rec = append(rec, notify.NewElasticsearchRecorder(
			a.Elasticsearch,
			a.Config.Notifications.DeliveryIndex,
			0,
			a.Logger,
		))
	}
	return rec
}

// buildRoutes wires SNS push and SES email when enabled in both the
// notifications and the integrations sections.
func (a *App) buildRoutes(ctx context.Context) ([]notify.Route, error) {
	n := a.Config.Notifications
	aws := a.Config.Integrations.AWS

	wantPush := n.Push.Enabled && aws.SNS.Enabled
	wantEmail := n.Email.Enabled && aws.SES.Enabled
	if !wantPush && !wantEmail {
		a.Logger.Warn("No external notification channels enabled", nil)
		return nil, nil
	}

	awsCfg, err := awsclient.LoadConfig(ctx, aws.Region)
	if err != nil {
		return nil, err
	}

	var routes []notify.Route
	if wantPush {
		routes = append(routes, notify.Route{
			Sender:  notify.NewPushChannelSender(awsclient.NewSNSClient(awsCfg), a.Logger),
			Timeout: config.GetDuration(n.Push.Timeout),
		})
	}
	if wantEmail {
		sender, err := notify.NewEmailChannelSender(awsclient.NewSESClient(awsCfg), notify.EmailConfig{
			FromEmail:        aws.SES.FromEmail,
			ConfigurationSet: aws.SES.ConfigurationSet,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		routes = append(routes, notify.Route{
			Sender:  sender,
			Timeout: config.GetDuration(n.Email.Timeout),
		})
	}
	return routes, nil
}

// NewAuthenticator picks the token verifier named by auth.mode. Only the
// HTTP surface needs one.
func NewAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeJWT, "":
		if cfg.JWT.Secret == "" {
			return nil, fmt.Errorf("auth.jwt.secret is required in jwt mode")
		}
		return auth.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer), nil
	case config.AuthModeKeycloak:
		if cfg.Keycloak.URL == "" || cfg.Keycloak.Realm == "" {
			return nil, fmt.Errorf("auth.keycloak.url and auth.keycloak.realm are required in keycloak mode")
		}
		return auth.NewKeycloakClient(
			cfg.Keycloak.URL,
			cfg.Keycloak.Realm,
			cfg.Keycloak.ClientID,
			cfg.Keycloak.ClientSecret,
			config.GetDuration(cfg.Keycloak.Timeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown auth.mode %q", cfg.Mode)
	}
}

// ReadinessChecks returns one check per connected backend.
func (a *App) ReadinessChecks() map[string]ReadinessCheck {
	checks := map[string]ReadinessCheck{}
	if a.Postgres != nil {
		checks["postgres"] = a.Postgres.Ping
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Ping
	}
	if a.Elasticsearch != nil {
		checks["elasticsearch"] = a.Elasticsearch.Ping
	}
	return checks
}

// Close drains pending channel deliveries, releases connections in reverse
// order and flushes telemetry.
func (a *App) Close(ctx context.Context) {
	if a.Fanout != nil {
		if err := a.Fanout.Close(ctx); err != nil {
			a.Logger.Warn("Pending notification deliveries abandoned", map[string]interface{}{"error": err.Error()})
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
	a.Observability.Shutdown(ctx)
}
