package learning

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/zpam/spam-classifier/pkg/features"
)

// Kind is the artifact kind under which the classifier is stored.
const Kind = "multinomial_nb"

// Class labels. Column order of PredictProba follows these values.
const (
	Ham  = 0
	Spam = 1
)

var (
	// ErrNotFitted is returned when predicting with an untrained model.
	ErrNotFitted = features.ErrNotFitted
	// ErrDimensionMismatch is returned when a matrix does not match the fitted width.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
)

// Config holds learning configuration
type Config struct {
	// Additive (Laplace/Lidstone) smoothing applied to every term count
	SmoothingFactor float64 `json:"smoothing_factor" yaml:"smoothing_factor"`

	// Learn class priors from the data; uniform priors otherwise
	FitPrior bool `json:"fit_prior" yaml:"fit_prior"`
}

// DefaultConfig returns default learning configuration
func DefaultConfig() *Config {
	return &Config{
		SmoothingFactor: 1.0,
		FitPrior:        true,
	}
}

// MultinomialNB is a two-class multinomial naive Bayes model.
// Once fitted it is never mutated and may be shared between goroutines.
type MultinomialNB struct {
	config *Config

	classCount     [2]float64
	featureCount   [2][]float64
	classLogPrior  [2]float64
	featureLogProb [2][]float64
	nFeatures      int
	fitted         bool

	lastTrained time.Time
}

// NewMultinomialNB creates an untrained model
func NewMultinomialNB(config *Config) *MultinomialNB {
	if config == nil {
		config = DefaultConfig()
	}
	return &MultinomialNB{config: config}
}

// Kind implements the artifact kind tag.
func (nb *MultinomialNB) Kind() string { return Kind }

// Fitted reports whether Fit has completed.
func (nb *MultinomialNB) Fitted() bool { return nb.fitted }

// NumFeatures returns the width of the feature space seen at fit time.
func (nb *MultinomialNB) NumFeatures() int { return nb.nFeatures }

// Fit estimates class priors and per-class term likelihoods.
func (nb *MultinomialNB) Fit(x *features.Matrix, labels []int) error {
	if nb.fitted {
		return fmt.Errorf("multinomial nb: fit: %w", features.ErrAlreadyFitted)
	}
	if x.NumRows() == 0 {
		return fmt.Errorf("multinomial nb: fit: no training rows")
	}
	if len(labels) != x.NumRows() {
		return fmt.Errorf("multinomial nb: fit: %d labels for %d rows", len(labels), x.NumRows())
	}
	if nb.config.SmoothingFactor <= 0 {
		return fmt.Errorf("multinomial nb: fit: smoothing factor must be > 0, got %g", nb.config.SmoothingFactor)
	}

	// counts are built locally so a rejected row leaves the model untouched
	var (
		classCount   [2]float64
		featureCount [2][]float64
	)
	for c := range featureCount {
		featureCount[c] = make([]float64, x.Cols)
	}
	for i, row := range x.Rows {
		label := labels[i]
		if label != Ham && label != Spam {
			return fmt.Errorf("multinomial nb: fit: row %d has label %d, expected 0 or 1", i, label)
		}
		classCount[label]++
		for k, idx := range row.Indices {
			featureCount[label][idx] += row.Values[k]
		}
	}

	nb.nFeatures = x.Cols
	nb.classCount = classCount
	nb.featureCount = featureCount

	total := nb.classCount[Ham] + nb.classCount[Spam]
	alpha := nb.config.SmoothingFactor
	for c := range nb.classLogPrior {
		if nb.config.FitPrior {
			nb.classLogPrior[c] = math.Log(nb.classCount[c] / total)
		} else {
			nb.classLogPrior[c] = math.Log(0.5)
		}

		var sum float64
		for _, v := range nb.featureCount[c] {
			sum += v
		}
		denom := math.Log(sum + alpha*float64(x.Cols))
		nb.featureLogProb[c] = make([]float64, x.Cols)
		for j, v := range nb.featureCount[c] {
			nb.featureLogProb[c][j] = math.Log(v+alpha) - denom
		}
	}

	nb.fitted = true
	nb.lastTrained = time.Now().UTC()
	return nil
}

// PredictProba returns [P(ham), P(spam)] for every row.
func (nb *MultinomialNB) PredictProba(x *features.Matrix) ([][2]float64, error) {
	if err := nb.check(x); err != nil {
		return nil, err
	}

	out := make([][2]float64, x.NumRows())
	for i, row := range x.Rows {
		jll := nb.jointLogLikelihood(row)
		lse := logSumExp(jll[Ham], jll[Spam])
		out[i] = [2]float64{math.Exp(jll[Ham] - lse), math.Exp(jll[Spam] - lse)}
	}
	return out, nil
}

// Predict returns the maximum a posteriori class of every row. It is derived
// from PredictProba so the two can never disagree; equal probabilities
// resolve to Ham.
func (nb *MultinomialNB) Predict(x *features.Matrix) ([]int, error) {
	proba, err := nb.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = ArgMax(p)
	}
	return out, nil
}

// ArgMax picks the class with the larger probability, Ham on a tie.
func ArgMax(p [2]float64) int {
	if p[Spam] > p[Ham] {
		return Spam
	}
	return Ham
}

func (nb *MultinomialNB) check(x *features.Matrix) error {
	if !nb.fitted {
		return fmt.Errorf("multinomial nb: %w", ErrNotFitted)
	}
	if x.Cols != nb.nFeatures {
		return fmt.Errorf("multinomial nb: %w: got %d columns, model has %d", ErrDimensionMismatch, x.Cols, nb.nFeatures)
	}
	return nil
}

func (nb *MultinomialNB) jointLogLikelihood(row features.Vector) [2]float64 {
	jll := nb.classLogPrior
	for k, idx := range row.Indices {
		for c := range jll {
			jll[c] += row.Values[k] * nb.featureLogProb[c][idx]
		}
	}
	return jll
}

func logSumExp(a, b float64) float64 {
	m := math.Max(a, b)
	if math.IsInf(m, -1) {
		return m
	}
	return m + math.Log(math.Exp(a-m)+math.Exp(b-m))
}

// TermStats contains statistics about a vocabulary term
type TermStats struct {
	Term      string  `json:"term"`
	SpamCount float64 `json:"spam_count"`
	HamCount  float64 `json:"ham_count"`
	Score     float64 `json:"score"`
}

// TopTerms returns the terms whose likelihood ratio most favours class.
// terms is the vocabulary in column order.
func (nb *MultinomialNB) TopTerms(terms []string, class int, limit int) []*TermStats {
	if !nb.fitted || len(terms) != nb.nFeatures {
		return nil
	}
	other := 1 - class

	stats := make([]*TermStats, 0, len(terms))
	for j, term := range terms {
		stats = append(stats, &TermStats{
			Term:      term,
			SpamCount: nb.featureCount[Spam][j],
			HamCount:  nb.featureCount[Ham][j],
			Score:     nb.featureLogProb[class][j] - nb.featureLogProb[other][j],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Score != stats[j].Score {
			return stats[i].Score > stats[j].Score
		}
		return stats[i].Term < stats[j].Term
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// ModelInfo contains model information
type ModelInfo struct {
	SpamDocuments int       `json:"spam_documents"`
	HamDocuments  int       `json:"ham_documents"`
	SpamPrior     float64   `json:"spam_prior"`
	HamPrior      float64   `json:"ham_prior"`
	Features      int       `json:"features"`
	LastTrained   time.Time `json:"last_trained"`
	Config        *Config   `json:"config"`
}

// GetModelInfo returns information about the trained model
func (nb *MultinomialNB) GetModelInfo() *ModelInfo {
	return &ModelInfo{
		SpamDocuments: int(nb.classCount[Spam]),
		HamDocuments:  int(nb.classCount[Ham]),
		SpamPrior:     math.Exp(nb.classLogPrior[Spam]),
		HamPrior:      math.Exp(nb.classLogPrior[Ham]),
		Features:      nb.nFeatures,
		LastTrained:   nb.lastTrained,
		Config:        nb.config,
	}
}

// PrintStats prints model statistics
func (nb *MultinomialNB) PrintStats(w io.Writer, terms []string) {
	info := nb.GetModelInfo()

	fmt.Fprintf(w, "🧠 Multinomial Naive Bayes Model\n")
	fmt.Fprintf(w, "════════════════════════════════════════\n")
	fmt.Fprintf(w, "Training Data:\n")
	fmt.Fprintf(w, "  Spam documents: %d\n", info.SpamDocuments)
	fmt.Fprintf(w, "  Ham documents: %d\n", info.HamDocuments)
	fmt.Fprintf(w, "  Spam prior: %.4f\n", info.SpamPrior)
	fmt.Fprintf(w, "  Ham prior: %.4f\n", info.HamPrior)
	fmt.Fprintf(w, "  Features: %d\n", info.Features)

	if !info.LastTrained.IsZero() {
		fmt.Fprintf(w, "  Last trained: %s\n", info.LastTrained.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintf(w, "\nConfiguration:\n")
	fmt.Fprintf(w, "  Smoothing factor: %.2f\n", info.Config.SmoothingFactor)
	fmt.Fprintf(w, "  Fit prior: %v\n", info.Config.FitPrior)

	fmt.Fprintf(w, "\n📈 Top Spam Terms:\n")
	for i, term := range nb.TopTerms(terms, Spam, 10) {
		fmt.Fprintf(w, "  %2d. %-15s (%.3f log-ratio, %.2f/%.2f)\n",
			i+1, term.Term, term.Score, term.SpamCount, term.HamCount)
	}

	fmt.Fprintf(w, "\n📉 Top Ham Terms:\n")
	for i, term := range nb.TopTerms(terms, Ham, 10) {
		fmt.Fprintf(w, "  %2d. %-15s (%.3f log-ratio, %.2f/%.2f)\n",
			i+1, term.Term, term.Score, term.SpamCount, term.HamCount)
	}

	fmt.Fprintf(w, "\n")
}

type nbState struct {
	Config         Config
	ClassCount     [2]float64
	FeatureCount   [2][]float64
	ClassLogPrior  [2]float64
	FeatureLogProb [2][]float64
	NFeatures      int
	LastTrained    time.Time
}

// MarshalBinary encodes the trained state.
func (nb *MultinomialNB) MarshalBinary() ([]byte, error) {
	if !nb.fitted {
		return nil, fmt.Errorf("multinomial nb: marshal: %w", ErrNotFitted)
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(nbState{
		Config:         *nb.config,
		ClassCount:     nb.classCount,
		FeatureCount:   nb.featureCount,
		ClassLogPrior:  nb.classLogPrior,
		FeatureLogProb: nb.featureLogProb,
		NFeatures:      nb.nFeatures,
		LastTrained:    nb.lastTrained,
	})
	if err != nil {
		return nil, fmt.Errorf("multinomial nb: failed to encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a state produced by MarshalBinary.
func (nb *MultinomialNB) UnmarshalBinary(data []byte) error {
	var state nbState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("multinomial nb: failed to decode: %w", err)
	}
	if state.NFeatures <= 0 {
		return fmt.Errorf("multinomial nb: corrupt state: %d features", state.NFeatures)
	}
	for c := range state.FeatureLogProb {
		if len(state.FeatureLogProb[c]) != state.NFeatures {
			return fmt.Errorf("multinomial nb: corrupt state: class %d has %d weights, expected %d",
				c, len(state.FeatureLogProb[c]), state.NFeatures)
		}
		if len(state.FeatureCount[c]) != state.NFeatures {
			return fmt.Errorf("multinomial nb: corrupt state: class %d has %d counts, expected %d",
				c, len(state.FeatureCount[c]), state.NFeatures)
		}
	}

	cfg := state.Config
	nb.config = &cfg
	nb.classCount = state.ClassCount
	nb.featureCount = state.FeatureCount
	nb.classLogPrior = state.ClassLogPrior
	nb.featureLogProb = state.FeatureLogProb
	nb.nFeatures = state.NFeatures
	nb.lastTrained = state.LastTrained
	nb.fitted = true
	return nil
}
