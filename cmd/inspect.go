package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-classifier/pkg/artifact"
	"github.com/zpam/spam-classifier/pkg/features"
	"github.com/zpam/spam-classifier/pkg/learning"
)

var (
	inspectJSON bool
	inspectTop  int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the stored artifacts and model statistics",
	Long: `Validate the stored vectorizer and classifier the same way serving does
and print their headers, vocabulary and most indicative terms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		model, store, closer, err := loadModel(ctx, cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		headers := make(map[artifact.Role]*artifact.Header, 2)
		for _, role := range []artifact.Role{artifact.RoleExtractor, artifact.RoleClassifier} {
			blob, err := store.Get(ctx, role)
			if err != nil {
				return err
			}
			header, _, err := artifact.ReadHeader(blob)
			if err != nil {
				return err
			}
			headers[role] = header
		}

		tfidf, _ := model.Extractor().(*features.TFIDF)
		nb, _ := model.Classifier().(*learning.MultinomialNB)

		if inspectJSON {
			out := map[string]any{
				"model":   model.Info(),
				"headers": headers,
				"kinds":   artifact.Kinds(),
			}
			if tfidf != nil {
				out["vectorizer"] = tfidf.Info()
			}
			if nb != nil {
				out["classifier"] = nb.GetModelInfo()
				if tfidf != nil {
					out["top_spam_terms"] = nb.TopTerms(tfidf.Terms(), learning.Spam, inspectTop)
					out["top_ham_terms"] = nb.TopTerms(tfidf.Terms(), learning.Ham, inspectTop)
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("📦 ZPAM Artifacts (%s backend)\n", cfg.Artifacts.Backend)
		fmt.Printf("═══════════════════════════════════════\n")
		for _, role := range []artifact.Role{artifact.RoleExtractor, artifact.RoleClassifier} {
			h := headers[role]
			fmt.Printf("%-10s kind=%s caps=%v compression=%s created=%s\n",
				role, h.Kind, h.Capabilities, h.Compression, h.CreatedAt.Format(time.RFC3339))
		}
		fmt.Printf("Loadable kinds: %v\n", artifact.Kinds())
		fmt.Println()

		if tfidf != nil {
			info := tfidf.Info()
			fmt.Printf("📚 Vectorizer\n")
			fmt.Printf("  Vocabulary: %d terms from %d documents\n", info.VocabularySize, info.Documents)
			fmt.Printf("  Normalizer: %s\n", info.Normalizer)
			fmt.Printf("  Min DF: %d, max features: %d, sublinear tf: %v\n\n",
				info.Config.MinDF, info.Config.MaxFeatures, info.Config.SublinearTF)
		}
		if nb != nil && tfidf != nil {
			nb.PrintStats(os.Stdout, tfidf.Terms())
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print JSON output")
	inspectCmd.Flags().IntVarP(&inspectTop, "top", "n", 20, "Number of top terms per class in JSON output")
}
