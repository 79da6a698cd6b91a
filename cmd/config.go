package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zpam/spam-classifier/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Generate and manage ZPAM configuration files`,
}

var configGenCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Long:  `Generate a default configuration file with all options`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := "config.yaml"
		if len(args) > 0 {
			configPath = args[0]
		}

		if _, err := os.Stat(configPath); err == nil {
			overwrite, _ := cmd.Flags().GetBool("force")
			if !overwrite {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
			}
		}

		if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}

		fmt.Printf("✅ Configuration file generated: %s\n", configPath)
		fmt.Printf("🚀 Use 'zpam train --config %s --data <corpus.csv>' to train a model\n", configPath)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate a configuration file for syntax and logical errors`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := args[0]

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("❌ Configuration validation failed: %v", err)
		}

		fmt.Printf("✅ Configuration is valid: %s\n", configPath)

		if warnings := validateConfigLogic(cfg); len(warnings) > 0 {
			fmt.Printf("\n⚠️  Warnings:\n")
			for _, warning := range warnings {
				fmt.Printf("  - %s\n", warning)
			}
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Show current configuration",
	Long:  `Display the effective configuration as YAML`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %v", err)
		}
		if path == "" {
			fmt.Printf("# Default configuration\n")
		} else {
			fmt.Printf("# Configuration: %s\n", path)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %v", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

// validateConfigLogic reports settings that are valid but probably unintended
func validateConfigLogic(cfg *config.Config) []string {
	var warnings []string

	if cfg.Training.TestSize == 0 {
		warnings = append(warnings, "training test_size is 0 - no evaluation metrics will be reported")
	}
	if cfg.Training.TestSize > 0.5 {
		warnings = append(warnings, "training test_size holds out more than half of the corpus")
	}
	if cfg.Features.MaxFeatures > 0 && cfg.Features.MaxFeatures < 100 {
		warnings = append(warnings, "features max_features is very small - accuracy will suffer")
	}
	if cfg.Milter.RejectSpam && cfg.Milter.RejectThreshold < 0.8 {
		warnings = append(warnings, "milter rejects spam below 0.8 confidence - expect false rejections")
	}
	if cfg.Milter.RejectSpam && !cfg.Milter.AddSpamHeaders {
		warnings = append(warnings, "milter headers are disabled - accepted mail carries no verdict")
	}
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" {
			warnings = append(warnings, "server allows every CORS origin")
		}
	}
	if cfg.Artifacts.Backend == "redis" && !cfg.Artifacts.Compress {
		warnings = append(warnings, "redis artifacts are stored uncompressed")
	}

	return warnings
}

func init() {
	configGenCmd.Flags().BoolP("force", "f", false, "Overwrite existing config file")

	configCmd.AddCommand(configGenCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
