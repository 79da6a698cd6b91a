package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/artifact"
	"github.com/zpam/spam-classifier/pkg/config"
	"github.com/zpam/spam-classifier/pkg/corpus"
	"github.com/zpam/spam-classifier/pkg/normalize"
	"github.com/zpam/spam-classifier/pkg/pipeline"
)

var (
	trainData        string
	trainFormat      string
	trainSpamDir     string
	trainHamDir      string
	trainTextColumn  string
	trainLabelColumn string
	trainSheet       string
	trainTestSize    float64
	trainSeed        uint64
	trainVerbose     bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the vectorizer and classifier from a labeled corpus",
	Long: `Fit the TF-IDF vectorizer and the multinomial Naive Bayes classifier and
save both artifacts to the configured store.

The corpus is a CSV or XLSX file with a text column and a 0/1 label column
(1 = spam), or a pair of directories with one email per file.

Example usage:
  zpam train --data spam.csv
  zpam train --data spam.xlsx --format xlsx --sheet emails
  zpam train --format maildir --spam-dir corpus/spam --ham-dir corpus/ham`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyTrainFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %v", err)
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		examples, stats, err := readCorpus(&cfg.Training)
		if err != nil {
			return err
		}

		fmt.Printf("🧠 ZPAM Naive Bayes Training\n")
		fmt.Printf("═══════════════════════════════════════\n")
		fmt.Printf("📄 Rows: %d (spam %d, ham %d, skipped %d)\n", stats.Rows, stats.Spam, stats.Ham, stats.Skipped)
		fmt.Printf("🎲 Test size: %.2f, seed %d\n\n", cfg.Training.TestSize, cfg.Training.Seed)

		opts := &pipeline.TrainOptions{
			Features:   &cfg.Features,
			Classifier: &cfg.Classifier,
			TestSize:   cfg.Training.TestSize,
			Seed:       cfg.Training.Seed,
		}
		trained, err := pipeline.Train(examples, normalize.New(), opts)
		if err != nil {
			return fmt.Errorf("training failed: %w", err)
		}

		logger.Info("training finished",
			zap.Int("train_rows", trained.TrainRows),
			zap.Int("test_rows", trained.TestRows),
			zap.Int("vocabulary", trained.Extractor.Dim()),
			zap.Duration("duration", trained.Duration),
		)

		fmt.Printf("📚 Vocabulary: %d terms\n", trained.Extractor.Dim())
		fmt.Printf("🏋️  Trained on %d rows in %v\n\n", trained.TrainRows, trained.Duration.Round(time.Millisecond))

		if trained.Metrics != nil {
			fmt.Printf("📊 Evaluation on %d held-out rows\n", trained.TestRows)
			trained.Metrics.Print(os.Stdout)
			fmt.Println()
		}
		if trainVerbose {
			trained.Classifier.PrintStats(os.Stdout, trained.Extractor.Terms())
			fmt.Println()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, closer, err := openStore(ctx, &cfg.Artifacts)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %v", err)
		}
		defer closer.Close()

		if err := trained.Save(ctx, store, artifact.EncodeOptions{Compress: cfg.Artifacts.Compress}); err != nil {
			return fmt.Errorf("failed to save artifacts: %w", err)
		}

		if fs, ok := store.(*artifact.FileStore); ok {
			fmt.Printf("💾 Vectorizer saved to: %s\n", fs.Path(artifact.RoleExtractor))
			fmt.Printf("💾 Classifier saved to: %s\n", fs.Path(artifact.RoleClassifier))
		} else {
			fmt.Printf("💾 Artifacts saved to Redis under %s\n", cfg.Artifacts.Redis.KeyPrefix)
		}
		return nil
	},
}

func applyTrainFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Training.Format = trainFormat
	} else if trainSpamDir != "" || trainHamDir != "" {
		cfg.Training.Format = "maildir"
	}
	if flags.Changed("text-column") {
		cfg.Training.TextColumn = trainTextColumn
	}
	if flags.Changed("label-column") {
		cfg.Training.LabelColumn = trainLabelColumn
	}
	if flags.Changed("sheet") {
		cfg.Training.Sheet = trainSheet
	}
	if flags.Changed("test-size") {
		cfg.Training.TestSize = trainTestSize
	}
	if flags.Changed("seed") {
		cfg.Training.Seed = trainSeed
	}
}

func readCorpus(cfg *config.TrainingConfig) ([]corpus.Example, *corpus.Stats, error) {
	var (
		examples []corpus.Example
		stats    *corpus.Stats
		err      error
	)
	switch cfg.Format {
	case "maildir":
		if trainSpamDir == "" && trainHamDir == "" {
			return nil, nil, fmt.Errorf("at least one of --spam-dir or --ham-dir must be specified")
		}
		examples, stats, err = corpus.ReadMailDirs(trainSpamDir, trainHamDir)
	case "xlsx":
		if trainData == "" {
			return nil, nil, fmt.Errorf("--data is required")
		}
		examples, stats, err = corpus.ReadXLSX(trainData, cfg.Sheet, cfg.TextColumn, cfg.LabelColumn)
	default:
		if trainData == "" {
			return nil, nil, fmt.Errorf("--data is required")
		}
		examples, stats, err = corpus.ReadCSV(trainData, cfg.TextColumn, cfg.LabelColumn)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read corpus: %v", err)
	}
	return examples, stats, nil
}

func init() {
	trainCmd.Flags().StringVarP(&trainData, "data", "d", "", "CSV or XLSX corpus file")
	trainCmd.Flags().StringVarP(&trainFormat, "format", "f", "", "Corpus format: csv, xlsx or maildir")
	trainCmd.Flags().StringVar(&trainSpamDir, "spam-dir", "", "Directory of spam emails (maildir format)")
	trainCmd.Flags().StringVar(&trainHamDir, "ham-dir", "", "Directory of ham emails (maildir format)")
	trainCmd.Flags().StringVar(&trainTextColumn, "text-column", "", "Column holding the email text")
	trainCmd.Flags().StringVar(&trainLabelColumn, "label-column", "", "Column holding the 0/1 label")
	trainCmd.Flags().StringVar(&trainSheet, "sheet", "", "XLSX sheet name (first sheet when empty)")
	trainCmd.Flags().Float64Var(&trainTestSize, "test-size", 0, "Share of rows held out for evaluation")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", 0, "Random seed for the train/test split")
	trainCmd.Flags().BoolVarP(&trainVerbose, "verbose", "v", false, "Print model statistics and top terms")
}
