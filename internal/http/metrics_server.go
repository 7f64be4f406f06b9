package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/braidmgr/braidmgr/internal/http/dto"
	"github.com/braidmgr/braidmgr/internal/metrics"
	"github.com/braidmgr/braidmgr/internal/pool"
)

// PoolStats is the read-only view of the tenant pool registry served to operators.
type PoolStats interface {
	Gauges() metrics.PoolGauges
	Stats() []pool.EntryStats
}

// MetricsServer serves operator endpoints on their own port, away from the
// rate-limited and credential-checked API: Prometheus metrics at /metrics and a
// snapshot of the tenant pool registry at /pools.
type MetricsServer struct {
	server *http.Server
	pools  PoolStats
	now    func() time.Time
	logger *slog.Logger
}

// NewMetricsServer creates a MetricsServer. Either provider or pools may be nil, in
// which case the matching endpoint is not mounted.
func NewMetricsServer(
	host string,
	port int,
	logger *slog.Logger,
	provider *metrics.Provider,
	pools PoolStats,
) *MetricsServer {
	s := &MetricsServer{
		pools:  pools,
		now:    time.Now,
		logger: logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))

	if provider != nil {
		router.GET("/metrics", gin.WrapH(provider.Handler()))
	}
	if pools != nil {
		router.GET("/pools", s.poolsHandler)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// GetHandler returns the operator router.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// poolsHandler lists every live tenant pool with its reference count, age and
// connection usage.
// GET /pools
func (s *MetricsServer) poolsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MapPoolStatsToResponse(s.pools.Gauges(), s.pools.Stats(), s.now()))
}

// Start serves until Shutdown is called.
func (s *MetricsServer) Start(ctx context.Context) error {
	s.logger.Info("starting operator server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start operator server: %w", err)
	}
	return nil
}

// Shutdown stops the operator server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down operator server")
	return s.server.Shutdown(ctx)
}
