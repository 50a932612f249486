package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
	"github.com/vitals-triage-server/internal/middleware"
	"github.com/vitals-triage-server/internal/service"
	"github.com/vitals-triage-server/internal/stream"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators the HTTP server routes to.
type Dependencies struct {
	Service      *service.AssessmentService
	Hub          *stream.Hub
	Logger       *logrus.Logger
	HealthChecks map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	svc           *service.AssessmentService
	hub           *stream.Hub
	checks        map[string]HealthCheck
	log           *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	if configManager.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.NewRateLimiter(cfg.RateLimit).Middleware())
	}

	server := &Server{
		configManager: configManager,
		svc:           deps.Service,
		hub:           deps.Hub,
		checks:        deps.HealthChecks,
		log:           deps.Logger,
		router:        router,
	}

	server.setupRoutes(cfg.Server.RequestTimeout)

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(requestTimeout time.Duration) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		// The stream is long-lived and stays outside the request timeout.
		v1.GET("/patients/:patientID/stream", s.handleStream)

		timed := v1.Group("", middleware.RequestTimeout(requestTimeout))
		timed.POST("/assess", s.handleAssess)
		timed.GET("/thresholds/default", s.handleDefaultThresholds)

		patients := timed.Group("/patients/:patientID")
		patients.GET("/profile", s.handleGetProfile)
		patients.PUT("/profile", s.handlePutProfile)
		patients.POST("/entries", s.handleCreateEntry)
		patients.GET("/entries", s.handleListEntries)
		patients.GET("/entries/:entryID", s.handleGetEntry)
		patients.DELETE("/entries/:entryID", s.handleDeleteEntry)
	}
}
