// Package artifact persists the fitted extractor and classifier as opaque,
// role-tagged blobs and validates them when they are loaded back.
//
// A blob carries no static type guarantee across the train/serve boundary, so
// loading checks the role, the kind and the capability set up front and turns
// a would-be mid-request failure into a startup failure.
package artifact

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"sort"

	"github.com/zpam/spam-classifier/pkg/features"
	"github.com/zpam/spam-classifier/pkg/learning"
)

var (
	// ErrArtifactMissing means no artifact exists at the expected location.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrArtifactIncompatible means the stored object cannot serve its role.
	ErrArtifactIncompatible = errors.New("artifact incompatible")
)

// Role is the part an artifact plays in the pipeline.
type Role string

const (
	RoleExtractor  Role = "extractor"
	RoleClassifier Role = "classifier"
)

// Capabilities an artifact may declare.
const (
	CapTransform    = "transform"
	CapPredict      = "predict"
	CapPredictProba = "predict_proba"
)

// Extractor is the capability set required from a stored feature extractor.
type Extractor interface {
	Transform(docs []string) (*features.Matrix, error)
	Dim() int
}

// Classifier is the capability set required from a stored classifier.
type Classifier interface {
	Predict(x *features.Matrix) ([]int, error)
	PredictProba(x *features.Matrix) ([][2]float64, error)
}

// Artifact is anything that can be stored: it names its kind and round-trips
// through bytes.
type Artifact interface {
	Kind() string
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Store holds raw artifact blobs, one per role.
type Store interface {
	Put(ctx context.Context, role Role, blob []byte) error
	// Get returns ErrArtifactMissing when nothing is stored for role.
	Get(ctx context.Context, role Role) ([]byte, error)
}

// Factory returns an empty artifact ready to be unmarshaled.
type Factory func() Artifact

// registry maps a header kind to its factory. It is never written after init.
var registry = map[string]Factory{
	features.Kind: func() Artifact { return &features.TFIDF{} },
	learning.Kind: func() Artifact { return &learning.MultinomialNB{} },
}

// Kinds returns the loadable kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func lookup(kind string) (Factory, bool) {
	f, ok := registry[kind]
	return f, ok
}

// RequiredCapabilities returns the capability set a role must declare.
func RequiredCapabilities(role Role) []string {
	switch role {
	case RoleExtractor:
		return []string{CapTransform}
	case RoleClassifier:
		return []string{CapPredict, CapPredictProba}
	default:
		return nil
	}
}

// Capabilities lists what a value actually implements.
func Capabilities(v any) []string {
	var caps []string
	if _, ok := v.(Extractor); ok {
		caps = append(caps, CapTransform)
	}
	if _, ok := v.(interface {
		Predict(x *features.Matrix) ([]int, error)
	}); ok {
		caps = append(caps, CapPredict)
	}
	if _, ok := v.(interface {
		PredictProba(x *features.Matrix) ([][2]float64, error)
	}); ok {
		caps = append(caps, CapPredictProba)
	}
	return caps
}

// Save encodes a and stores it under role. It refuses to store an object that
// could not be loaded back for that role.
func Save(ctx context.Context, store Store, role Role, a Artifact, opts EncodeOptions) error {
	blob, err := Encode(role, a, opts)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, role, blob); err != nil {
		return fmt.Errorf("failed to store %s artifact: %w", role, err)
	}
	return nil
}

// LoadExtractor loads and validates the extractor artifact.
func LoadExtractor(ctx context.Context, store Store) (Extractor, error) {
	obj, err := load(ctx, store, RoleExtractor)
	if err != nil {
		return nil, err
	}
	ext, ok := obj.(Extractor)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement the extractor interface", ErrArtifactIncompatible, obj.Kind())
	}
	return ext, nil
}

// LoadClassifier loads and validates the classifier artifact.
func LoadClassifier(ctx context.Context, store Store) (Classifier, error) {
	obj, err := load(ctx, store, RoleClassifier)
	if err != nil {
		return nil, err
	}
	clf, ok := obj.(Classifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement the classifier interface", ErrArtifactIncompatible, obj.Kind())
	}
	return clf, nil
}

func load(ctx context.Context, store Store, role Role) (Artifact, error) {
	blob, err := store.Get(ctx, role)
	if err != nil {
		return nil, err
	}
	return Decode(role, blob)
}
