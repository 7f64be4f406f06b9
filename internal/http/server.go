// Package http provides the HTTP server, middleware, account and project handlers.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditUseCase "github.com/braidmgr/braidmgr/internal/audit/usecase"
	"github.com/braidmgr/braidmgr/internal/config"
	"github.com/braidmgr/braidmgr/internal/httputil"
	itemUseCase "github.com/braidmgr/braidmgr/internal/item/usecase"
	"github.com/braidmgr/braidmgr/internal/metrics"
	"github.com/braidmgr/braidmgr/internal/orchestrator"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// Server is the public API server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
	pools  metrics.PoolObserver
}

// NewServer creates a Server. db is the central directory database used by the
// readiness check.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine with every route and middleware.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	executor orchestrator.Executor,
	items *itemUseCase.ItemUseCase,
	auditReader auditUseCase.Reader,
	pools metrics.PoolObserver,
	metricsProvider *metrics.Provider,
	auth AuthRoutes,
) {
	gin.SetMode(cfg.GetGinMode())
	s.pools = pools

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := newCORSMiddleware(cfg, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	policy := httputil.ErrorPolicy{}
	if cfg.HideTenantExistence {
		policy.Conceal = []error{tenantDomain.ErrTenantNotFound}
	}
	projects := NewProjectHandler(executor, items, auditReader, policy, s.logger)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	if auth.UseCase != nil && auth.Verifier != nil {
		accounts := NewAuthHandler(auth.UseCase, policy, s.logger)
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", accounts.RegisterHandler)
		authGroup.POST("/login", accounts.LoginHandler)
		authGroup.POST("/refresh", accounts.RefreshHandler)

		session := authGroup.Group("", VerifiedCredentialMiddleware(auth.Verifier, s.logger))
		session.POST("/logout", accounts.LogoutHandler)
		session.GET("/me", accounts.MeHandler)
	}

	project := v1.Group("/projects/:project_id", CredentialMiddleware(s.logger))
	project.GET("/audit-logs", projects.ListAuditLogsHandler)
	project.DELETE("/items/:item_id", projects.DeleteItemHandler)

	s.router = router
}

// GetHandler returns the configured router.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready once the central directory database answers a ping.
// Tenant pool gauges are included for operators; a cold registry is still ready.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	body := gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	}
	if s.pools != nil {
		gauges := s.pools.Gauges()
		body["tenant_pools"] = gin.H{
			"live":      gauges.Live,
			"in_flight": gauges.InFlight,
			"draining":  gauges.Draining,
		}
	}
	c.JSON(http.StatusOK, body)
}
