package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/queue"
)

var (
	workerURL     string
	workerSubject string
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Answer classification requests from NATS",
	Long: `Load the saved artifacts and answer request/reply messages on a NATS subject.

Workers share a queue group, so several can run side by side. Requests and
replies use the same JSON bodies as POST /predict.

Example usage:
  zpam worker
  zpam worker --url nats://nats:4222 --subject mail.classify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("url") {
			cfg.Queue.URL = workerURL
		}
		if cmd.Flags().Changed("subject") {
			cfg.Queue.Subject = workerSubject
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %v", err)
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
		model, _, closer, err := loadModel(loadCtx, cfg)
		cancelLoad()
		if err != nil {
			return err
		}
		defer closer.Close()

		worker := queue.NewWorker(&cfg.Queue, model, metrics.New("zpam"), logger)
		if err := worker.Connect(); err != nil {
			return err
		}
		defer worker.Close()

		ctx, stop := signalContext()
		defer stop()

		fmt.Printf("🫏 ZPAM worker on %s, subject %s\n", cfg.Queue.URL, cfg.Queue.Subject)
		return worker.Run(ctx)
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerURL, "url", "", "NATS server URL")
	workerCmd.Flags().StringVar(&workerSubject, "subject", "", "Subject to answer on")
}

