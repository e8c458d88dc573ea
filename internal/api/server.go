// Package api is the REST surface of the access workflow. Every route except
// the health endpoints requires a bearer token; the caller id always comes from it.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"access-workflow/internal/common/auth"
	"access-workflow/internal/common/config"
	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck = func(ctx context.Context) error

type Server struct {
	router   *gin.Engine
	http     *http.Server
	workflow *workflow.Workflow
	inbox    *workflow.Inbox
	checks   map[string]ReadinessCheck
	logger   logger.Logger
	shutdown time.Duration
}

func NewServer(
	cfg config.HTTPConfig,
	wf *workflow.Workflow,
	inbox *workflow.Inbox,
	authenticator auth.Authenticator,
	checks map[string]ReadinessCheck,
	log logger.Logger,
) *Server {
	log = log.WithFields(map[string]interface{}{"component": "http_server"})

	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestLogger(log))

	s := &Server{
		router:   router,
		workflow: wf,
		inbox:    inbox,
		checks:   checks,
		logger:   log,
		shutdown: config.GetDuration(cfg.ShutdownTimeout),
	}
	s.setupRoutes(authenticator)

	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) setupRoutes(authenticator auth.Authenticator) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ready", s.handleReady)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("")
	api.Use(Authenticate(authenticator, s.logger))
	{
		requests := api.Group("/access-requests")
		{
			requests.POST("", s.handleCreateRequest)
			requests.GET("", s.handleListRequests)
			requests.GET("/:id", s.handleGetRequest)
			requests.PUT("/:id", s.handleRespond)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleListNotifications)
			notifications.PUT("/read-all", s.handleMarkAllRead)
			notifications.PUT("/:id/read", s.handleMarkRead)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{"addr": s.http.Addr})
		if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	s.logger.Info("Shutting down HTTP server", nil)
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("Readiness check failed", map[string]interface{}{"failed": failed})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Meta    map[string]interface{} `json:"metadata,omitempty"`
}

func toErrorBody(err error) (int, errorBody) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)
	body := errorBody{Code: string(stdErr.Code), Message: stdErr.Message}
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
		if stdErr.Code == errors.ErrCodeConflict {
			body.Meta = stdErr.Metadata
		}
	}
	return status, body
}

func abortWithError(c *gin.Context, err error) {
	status, body := toErrorBody(err)
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, body := toErrorBody(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{
			"route": c.FullPath(),
			"code":  body.Code,
			"error": err.Error(),
		})
	}
	c.JSON(status, body)
}
