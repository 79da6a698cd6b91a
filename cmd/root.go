package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "zpam",
	Short: "ZPAM - Naive Bayes email spam classifier",
	Long: `ZPAM classifies email text as spam or ham with a TF-IDF vectorizer and a
multinomial Naive Bayes model.

Train once from a labeled corpus, then serve the saved artifacts over HTTP,
as a Postfix/Sendmail milter or as a NATS worker. Every surface runs the
same text normalization used at training time.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ZPAM - Naive Bayes Spam Classifier")
		fmt.Println("Use 'zpam --help' for usage information")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (defaults are used when empty)")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(milterCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(configCmd)
}
