package milter

import (
	"context"
	"fmt"
	"net"

	"github.com/d--j/go-milter"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/config"
	"github.com/zpam/spam-classifier/pkg/metrics"
)

// Server represents the ZPAM milter server
type Server struct {
	config    *config.MilterConfig
	milterSrv *milter.Server
	logger    *zap.Logger
}

// NewServer creates a new milter server around a loaded model
func NewServer(cfg *config.MilterConfig, model Classifier, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if model == nil {
		return nil, fmt.Errorf("milter requires a loaded model")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var milterOpts []milter.Option

	// Only headers and body are needed to classify
	milterOpts = append(milterOpts, milter.WithProtocol(
		milter.OptNoConnect|milter.OptNoHelo|milter.OptNoRcptTo|milter.OptNoData,
	))

	if cfg.AddSpamHeaders {
		milterOpts = append(milterOpts, milter.WithAction(milter.OptAddHeader))
	}

	if cfg.ReadTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithReadTimeout(config.Millis(cfg.ReadTimeoutMs)))
	}
	if cfg.WriteTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithWriteTimeout(config.Millis(cfg.WriteTimeoutMs)))
	}

	milterOpts = append(milterOpts, milter.WithMilter(func() milter.Milter {
		return NewHandler(cfg, model, m, logger)
	}))

	return &Server{
		config:    cfg,
		milterSrv: milter.NewServer(milterOpts...),
		logger:    logger,
	}, nil
}

// Serve starts the milter server and listens for connections
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting milter", zap.String("network", listener.Addr().Network()), zap.String("address", listener.Addr().String()))
		errChan <- s.milterSrv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			config.Millis(s.config.GracefulShutdownTimeout),
		)
		defer cancel()

		if err := s.milterSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown milter server: %v", err)
		}
		return nil

	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("milter server error: %v", err)
		}
		return nil
	}
}

// Close closes the milter server
func (s *Server) Close() error {
	return s.milterSrv.Close()
}

// Stats returns server statistics
func (s *Server) Stats() ServerStats {
	return ServerStats{
		MilterCount: s.milterSrv.MilterCount(),
	}
}

// ServerStats contains server statistics
type ServerStats struct {
	MilterCount uint64 // Total number of milter instances created
}
