package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/zpam/spam-classifier/pkg/artifact"
	"github.com/zpam/spam-classifier/pkg/corpus"
	"github.com/zpam/spam-classifier/pkg/features"
	"github.com/zpam/spam-classifier/pkg/learning"
	"github.com/zpam/spam-classifier/pkg/normalize"
)

// TrainOptions configures a training run.
type TrainOptions struct {
	Features   *features.Config
	Classifier *learning.Config
	// Share of rows held out for evaluation; 0 trains on everything.
	TestSize float64
	Seed     uint64
}

// DefaultTrainOptions returns the default training options
func DefaultTrainOptions() *TrainOptions {
	return &TrainOptions{
		Features:   features.DefaultConfig(),
		Classifier: learning.DefaultConfig(),
		TestSize:   0.2,
		Seed:       42,
	}
}

// Trained holds the output of a training run.
type Trained struct {
	Extractor  *features.TFIDF
	Classifier *learning.MultinomialNB
	Normalizer *normalize.Normalizer
	// Nil when nothing was held out.
	Metrics   *learning.Metrics
	TrainRows int
	TestRows  int
	Duration  time.Duration
}

// Train normalizes the corpus, fits the vectorizer on all of it, fits the
// classifier on the training split and evaluates on the held-out split.
func Train(examples []corpus.Example, n *normalize.Normalizer, opts *TrainOptions) (*Trained, error) {
	if opts == nil {
		opts = DefaultTrainOptions()
	}
	if n == nil {
		n = normalize.New()
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("no training examples")
	}

	start := time.Now()

	docs := corpus.Texts(examples)
	for i, text := range docs {
		docs[i] = n.Normalize(text)
	}
	labels := corpus.Labels(examples)

	vec := features.NewTFIDF(opts.Features)
	if err := vec.BindNormalizer(n.Fingerprint()); err != nil {
		return nil, err
	}
	x, err := vec.FitTransform(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to fit vectorizer: %w", err)
	}

	trainIdx, testIdx := corpus.Split(len(examples), opts.TestSize, opts.Seed)

	nb := learning.NewMultinomialNB(opts.Classifier)
	if err := nb.Fit(x.Select(trainIdx), pick(labels, trainIdx)); err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}

	trained := &Trained{
		Extractor:  vec,
		Classifier: nb,
		Normalizer: n,
		TrainRows:  len(trainIdx),
		TestRows:   len(testIdx),
	}

	if len(testIdx) > 0 {
		pred, err := nb.Predict(x.Select(testIdx))
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate: %w", err)
		}
		trained.Metrics, err = learning.Evaluate(pick(labels, testIdx), pred)
		if err != nil {
			return nil, err
		}
	}

	trained.Duration = time.Since(start)
	return trained, nil
}

// Save persists both artifacts.
func (t *Trained) Save(ctx context.Context, store artifact.Store, opts artifact.EncodeOptions) error {
	if err := artifact.Save(ctx, store, artifact.RoleExtractor, t.Extractor, opts); err != nil {
		return err
	}
	return artifact.Save(ctx, store, artifact.RoleClassifier, t.Classifier, opts)
}

// Model returns a serving model over the in-memory artifacts.
func (t *Trained) Model() (*Model, error) {
	return New(t.Normalizer, t.Extractor, t.Classifier)
}

func pick(values []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
