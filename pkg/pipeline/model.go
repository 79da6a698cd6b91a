// Package pipeline ties the normalizer, the vectorizer and the classifier
// together for both training and serving.
//
// A Model is built once at startup and shared by reference; it holds no
// mutable state, so concurrent Classify calls need no locking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zpam/spam-classifier/pkg/artifact"
	"github.com/zpam/spam-classifier/pkg/features"
	"github.com/zpam/spam-classifier/pkg/learning"
	"github.com/zpam/spam-classifier/pkg/normalize"
)

// ErrEmptyText is returned for blank input. It is a client error.
var ErrEmptyText = errors.New("text must not be empty")

// Categories
const (
	CategoryHam  = "ham"
	CategorySpam = "spam"
)

// Result is the outcome of classifying one message. Confidence is the
// probability of the predicted category, so a confident ham is close to 1.
type Result struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// IsSpam reports whether the result is spam.
func (r Result) IsSpam() bool { return r.Category == CategorySpam }

// Model is the immutable serving handle.
type Model struct {
	normalizer *normalize.Normalizer
	extractor  artifact.Extractor
	classifier artifact.Classifier
}

// New assembles a model and checks that the parts fit together.
func New(n *normalize.Normalizer, ext artifact.Extractor, clf artifact.Classifier) (*Model, error) {
	if n == nil || ext == nil || clf == nil {
		return nil, fmt.Errorf("pipeline: normalizer, extractor and classifier are required")
	}

	if f, ok := ext.(interface{ Fitted() bool }); ok && !f.Fitted() {
		return nil, fmt.Errorf("%w: extractor: %w", artifact.ErrArtifactIncompatible, features.ErrNotFitted)
	}
	if f, ok := clf.(interface{ Fitted() bool }); ok && !f.Fitted() {
		return nil, fmt.Errorf("%w: classifier: %w", artifact.ErrArtifactIncompatible, features.ErrNotFitted)
	}
	if fp, ok := ext.(interface{ NormalizerFingerprint() string }); ok {
		if recorded := fp.NormalizerFingerprint(); recorded != "" && recorded != n.Fingerprint() {
			return nil, fmt.Errorf("%w: extractor was fit with normalizer %s, serving with %s",
				artifact.ErrArtifactIncompatible, recorded, n.Fingerprint())
		}
	}
	if nf, ok := clf.(interface{ NumFeatures() int }); ok && nf.NumFeatures() != ext.Dim() {
		return nil, fmt.Errorf("%w: classifier expects %d features, extractor produces %d",
			artifact.ErrArtifactIncompatible, nf.NumFeatures(), ext.Dim())
	}

	return &Model{normalizer: n, extractor: ext, classifier: clf}, nil
}

// Load reads both artifacts from store and builds a model. Any error here is
// meant to stop the process before it serves traffic.
func Load(ctx context.Context, store artifact.Store, n *normalize.Normalizer) (*Model, error) {
	ext, err := artifact.LoadExtractor(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to load extractor: %w", err)
	}
	clf, err := artifact.LoadClassifier(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	return New(n, ext, clf)
}

// Classify runs one message through the pipeline.
func (m *Model) Classify(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}

	x, err := m.extractor.Transform([]string{m.normalizer.Normalize(text)})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: transform: %w", err)
	}
	pred, err := m.classifier.Predict(x)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: predict: %w", err)
	}
	proba, err := m.classifier.PredictProba(x)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: predict_proba: %w", err)
	}

	result := Result{Category: CategoryHam, Confidence: max(proba[0][learning.Ham], proba[0][learning.Spam])}
	if pred[0] == learning.Spam {
		result.Category = CategorySpam
	}
	return result, nil
}

// Vectorize returns the feature row the classifier sees for text.
func (m *Model) Vectorize(text string) (features.Vector, error) {
	x, err := m.extractor.Transform([]string{m.normalizer.Normalize(text)})
	if err != nil {
		return features.Vector{}, err
	}
	return x.Rows[0], nil
}

// Normalizer returns the serving normalizer.
func (m *Model) Normalizer() *normalize.Normalizer { return m.normalizer }

// Extractor returns the loaded extractor.
func (m *Model) Extractor() artifact.Extractor { return m.extractor }

// Classifier returns the loaded classifier.
func (m *Model) Classifier() artifact.Classifier { return m.classifier }

// Info describes a loaded model.
type Info struct {
	Extractor  string `json:"extractor"`
	Classifier string `json:"classifier"`
	Features   int    `json:"features"`
	Normalizer string `json:"normalizer"`
}

// Info returns a summary of the loaded artifacts.
func (m *Model) Info() Info {
	info := Info{Features: m.extractor.Dim(), Normalizer: m.normalizer.Fingerprint()}
	if k, ok := m.extractor.(interface{ Kind() string }); ok {
		info.Extractor = k.Kind()
	}
	if k, ok := m.classifier.(interface{ Kind() string }); ok {
		info.Classifier = k.Kind()
	}
	return info
}
