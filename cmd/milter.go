package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/milter"
)

var (
	milterNetwork string
	milterAddress string
	milterDebug   bool
)

var milterCmd = &cobra.Command{
	Use:   "milter",
	Short: "Start milter server for Postfix/Sendmail integration",
	Long: `Start the ZPAM milter server to classify mail as the MTA receives it.

The milter collects the Subject and body of each message, classifies them and
adds X-ZPAM-NB-Status and X-ZPAM-NB-Confidence headers. With reject_spam set,
spam at or above reject_threshold is refused with a 550.

Example usage:
  zpam milter
  zpam milter --network tcp --address 127.0.0.1:7357
  zpam milter --config /etc/zpam/config.yaml --debug

For Postfix integration, add to main.cf:
  smtpd_milters = inet:127.0.0.1:7357
  non_smtpd_milters = inet:127.0.0.1:7357
  milter_default_action = accept`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("network") {
			cfg.Milter.Network = milterNetwork
		}
		if cmd.Flags().Changed("address") {
			cfg.Milter.Address = milterAddress
		}
		if milterDebug {
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

		loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
		model, _, closer, err := loadModel(loadCtx, cfg)
		cancelLoad()
		if err != nil {
			return err
		}
		defer closer.Close()

		listener, err := net.Listen(cfg.Milter.Network, cfg.Milter.Address)
		if err != nil {
			return fmt.Errorf("failed to create listener: %v", err)
		}
		defer listener.Close()

		server, err := milter.NewServer(&cfg.Milter, model, metrics.New("zpam"), logger)
		if err != nil {
			return fmt.Errorf("failed to create milter server: %v", err)
		}

		ctx, stop := signalContext()
		defer stop()

		fmt.Printf("🫏 ZPAM Milter Server starting on %s://%s\n", cfg.Milter.Network, cfg.Milter.Address)
		if cfg.Milter.RejectSpam {
			fmt.Printf("🎯 Rejecting spam with confidence >= %.2f\n", cfg.Milter.RejectThreshold)
		}
		fmt.Printf("🚀 Press Ctrl+C to stop\n\n")

		if err := server.Serve(ctx, listener); err != nil {
			return err
		}
		logger.Info("milter stopped", zap.Uint64("milters", server.Stats().MilterCount))
		return nil
	},
}

func init() {
	milterCmd.Flags().StringVarP(&milterNetwork, "network", "n", "", "Network type (tcp or unix)")
	milterCmd.Flags().StringVarP(&milterAddress, "address", "a", "", "Bind address (e.g., 127.0.0.1:7357 or /tmp/zpam.sock)")
	milterCmd.Flags().BoolVarP(&milterDebug, "debug", "d", false, "Enable debug logging")
}
