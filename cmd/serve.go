package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/server"
)

var (
	serveHost  string
	servePort  int
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the classification HTTP API",
	Long: `Load the saved artifacts and serve them over HTTP.

Endpoints:
  GET  /          service status
  GET  /health    model and backend health
  GET  /metrics   Prometheus metrics
  POST /predict   {"text": "..."} -> {"status":"success","results":[{"category":..,"confidence":..}]}
  POST /explain   matched terms and class probabilities

Example usage:
  zpam serve
  zpam serve --host 0.0.0.0 --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if serveDebug {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %v", err)
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if !serveDebug {
			gin.SetMode(gin.ReleaseMode)
		}

		loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
		model, store, closer, err := loadModel(loadCtx, cfg)
		cancelLoad()
		if err != nil {
			return err
		}
		defer closer.Close()

		info := model.Info()
		logger.Info("model loaded",
			zap.String("extractor", info.Extractor),
			zap.String("classifier", info.Classifier),
			zap.Int("features", info.Features),
		)

		m := metrics.New("zpam")
		handler := server.NewHandler(model, m, logger)
		if checker, ok := store.(server.HealthChecker); ok {
			handler.AddHealthCheck("redis", checker)
		}

		srv := server.New(&cfg.Server, server.Setup(&cfg.Server, handler, m, logger), logger)

		ctx, stop := signalContext()
		defer stop()

		fmt.Printf("🫏 ZPAM API listening on http://%s\n", cfg.Server.Addr())
		fmt.Printf("🚀 Press Ctrl+C to stop\n\n")
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Bind port")
	serveCmd.Flags().BoolVarP(&serveDebug, "debug", "d", false, "Enable debug logging and gin debug mode")
}
