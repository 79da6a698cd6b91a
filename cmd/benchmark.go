package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-classifier/pkg/corpus"
	"github.com/zpam/spam-classifier/pkg/email"
	"github.com/zpam/spam-classifier/pkg/pipeline"
	"github.com/zpam/spam-classifier/pkg/profiler"
)

var (
	benchmarkInput      string
	benchmarkRuns       int
	benchmarkConcurrent int
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Measure classification latency on a directory of emails",
	Long: `Parse, normalize and classify every email under a directory and report
per-stage latency percentiles and throughput.

Example usage:
  zpam benchmark --input corpus/ --runs 5 --concurrent 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchmarkInput == "" {
			return fmt.Errorf("input directory is required")
		}
		if benchmarkRuns < 1 || benchmarkConcurrent < 1 {
			return fmt.Errorf("--runs and --concurrent must be >= 1")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		model, _, closer, err := loadModel(ctx, cfg)
		cancel()
		if err != nil {
			return err
		}
		defer closer.Close()

		files, err := findEmailFiles(benchmarkInput)
		if err != nil {
			return fmt.Errorf("failed to find email files: %v", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no email files found in %s", benchmarkInput)
		}

		fmt.Printf("🚀 ZPAM Performance Benchmark\n")
		fmt.Printf("📁 Input directory: %s\n", benchmarkInput)
		fmt.Printf("📧 Email files found: %d\n", len(files))
		fmt.Printf("🔄 Runs: %d, workers: %d\n\n", benchmarkRuns, benchmarkConcurrent)

		prof := profiler.NewProfiler()
		result := runBenchmark(model, files, benchmarkRuns, benchmarkConcurrent, prof)

		prof.PrintReport(os.Stdout)
		fmt.Printf("\n🎯 Classification Results:\n")
		fmt.Printf("  Spam: %d, ham: %d, errors: %d\n", result.Spam, result.Ham, result.Errors)
		fmt.Printf("  Total time: %v\n", result.Elapsed.Round(time.Millisecond))
		if result.Elapsed > 0 {
			fmt.Printf("  Emails per second: %.0f\n", float64(result.Spam+result.Ham+result.Errors)/result.Elapsed.Seconds())
		}
		return nil
	},
}

type benchmarkResult struct {
	Spam    int64
	Ham     int64
	Errors  int64
	Elapsed time.Duration
}

func runBenchmark(model *pipeline.Model, files []string, runs, concurrent int, prof *profiler.Profiler) *benchmarkResult {
	var (
		result    benchmarkResult
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, concurrent)
	)

	start := time.Now()
	for run := 0; run < runs; run++ {
		for _, file := range files {
			wg.Add(1)
			semaphore <- struct{}{}
			go func(path string) {
				defer wg.Done()
				defer func() { <-semaphore }()

				var msg *email.Email
				err := prof.Time("parse", func() (err error) {
					msg, err = email.NewParser().ParseFromFile(path)
					return err
				})
				if err != nil {
					atomic.AddInt64(&result.Errors, 1)
					return
				}
				text := msg.Text()

				_ = prof.Time("normalize", func() error {
					model.Normalizer().Normalize(text)
					return nil
				})

				var res pipeline.Result
				err = prof.Time("classify", func() (err error) {
					res, err = model.Classify(text)
					return err
				})
				switch {
				case err != nil:
					atomic.AddInt64(&result.Errors, 1)
				case res.IsSpam():
					atomic.AddInt64(&result.Spam, 1)
				default:
					atomic.AddInt64(&result.Ham, 1)
				}
			}(file)
		}
	}
	wg.Wait()
	result.Elapsed = time.Since(start)
	return &result
}

func findEmailFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && corpus.IsMailFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func init() {
	benchmarkCmd.Flags().StringVarP(&benchmarkInput, "input", "i", "", "Directory of email files")
	benchmarkCmd.Flags().IntVarP(&benchmarkRuns, "runs", "r", 1, "Number of passes over the files")
	benchmarkCmd.Flags().IntVarP(&benchmarkConcurrent, "concurrent", "n", 4, "Concurrent workers")
}
