package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/zpam/spam-classifier/pkg/email"
	"github.com/zpam/spam-classifier/pkg/pipeline"
	"github.com/zpam/spam-classifier/pkg/queue"
)

var (
	classifyFile    string
	classifyExplain bool
	classifyJSON    bool
	classifyRemote  bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Classify a message as spam or ham",
	Long: `Classify text given as an argument, an email file or standard input.

Example usage:
  zpam classify "Win a free prize now"
  zpam classify --file message.eml --explain
  cat message.txt | zpam classify --json
  zpam classify --remote "Lunch tomorrow?"   # ask a running NATS worker`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		text, err := classifyInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if classifyRemote {
			conn, err := nats.Connect(cfg.Queue.URL, nats.Name("zpam-cli"))
			if err != nil {
				return fmt.Errorf("failed to connect to nats: %v", err)
			}
			defer conn.Close()

			result, err := queue.Classify(ctx, conn, cfg.Queue.Subject, text)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		}

		model, _, closer, err := loadModel(ctx, cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		if classifyExplain {
			exp, err := model.Explain(text)
			if err != nil {
				return err
			}
			return printExplanation(cmd.OutOrStdout(), exp)
		}

		result, err := model.Classify(text)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

func classifyInput(args []string, stdin io.Reader) (string, error) {
	switch {
	case classifyFile != "":
		msg, err := email.NewParser().ParseFromFile(classifyFile)
		if err != nil {
			return "", err
		}
		return msg.Text(), nil
	case len(args) == 1:
		return args[0], nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %v", err)
		}
		return string(data), nil
	}
}

func printResult(w io.Writer, result pipeline.Result) error {
	if classifyJSON {
		return json.NewEncoder(w).Encode(result)
	}
	icon := "✅"
	if result.IsSpam() {
		icon = "🚫"
	}
	fmt.Fprintf(w, "%s %s (confidence %.4f)\n", icon, strings.ToUpper(result.Category), result.Confidence)
	return nil
}

func printExplanation(w io.Writer, exp *pipeline.Explanation) error {
	if classifyJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)
	}
	if err := printResult(w, exp.Result); err != nil {
		return err
	}
	fmt.Fprintf(w, "P(spam) = %.4f, P(ham) = %.4f\n", exp.Spam, exp.Ham)
	fmt.Fprintf(w, "Normalized: %s\n", exp.Normalized)
	if len(exp.Matched) > 0 {
		fmt.Fprintf(w, "\nMatched terms:\n")
		for _, tw := range exp.Matched {
			fmt.Fprintf(w, "  %-20s %.4f\n", tw.Term, tw.Weight)
		}
	}
	if len(exp.Unknown) > 0 {
		fmt.Fprintf(w, "\nOut of vocabulary: %s\n", strings.Join(exp.Unknown, ", "))
	}
	return nil
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyFile, "file", "f", "", "Email file to classify")
	classifyCmd.Flags().BoolVarP(&classifyExplain, "explain", "e", false, "Show matched terms and probabilities")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print JSON output")
	classifyCmd.Flags().BoolVar(&classifyRemote, "remote", false, "Send the text to a NATS worker instead of loading the model")
}
