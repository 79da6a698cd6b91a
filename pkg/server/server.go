// Package server exposes a loaded model over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zpam/spam-classifier/pkg/config"
	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/server/middleware"
)

// Setup creates and configures the Gin router
func Setup(cfg *config.ServerConfig, handler *Handler, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	if m != nil {
		router.Use(middleware.Metrics(m))
	}

	router.GET("/", handler.Info)
	router.GET("/health", handler.Health)
	if m != nil && cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := router.Group("")
	if cfg.RateLimit > 0 {
		api.Use(middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)))
	}
	api.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	{
		api.POST("/predict", handler.Predict)
		api.POST("/explain", handler.Explain)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not found")
	})

	return router
}

// Server wraps the HTTP server lifecycle
type Server struct {
	cfg     *config.ServerConfig
	httpSrv *http.Server
	logger  *zap.Logger
}

// New creates a server for the given router
func New(cfg *config.ServerConfig, router http.Handler, logger *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		httpSrv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  config.Millis(cfg.ReadTimeoutMs),
			WriteTimeout: config.Millis(cfg.WriteTimeoutMs),
			IdleTimeout:  2 * config.Millis(cfg.ReadTimeoutMs),
		},
		logger: logger,
	}
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("address", listener.Addr().String()))
		errChan <- s.httpSrv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Millis(s.cfg.ShutdownTimeoutMs))
		defer cancel()

		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %v", err)
		}
		return nil

	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %v", err)
		}
		return nil
	}
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", s.httpSrv.Addr, err)
	}
	return s.Serve(ctx, listener)
}
