// Package features implements the TF-IDF term weighting shared by the
// training and serving halves of the classifier.
package features

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind is the artifact kind under which the vectorizer is stored.
const Kind = "tfidf"

var (
	// ErrNotFitted is returned when a transform is requested before fit.
	ErrNotFitted = errors.New("not fitted")
	// ErrAlreadyFitted is returned when fitting an already fitted vectorizer.
	ErrAlreadyFitted = errors.New("already fitted")
	// ErrEmptyVocabulary is returned when no term survives fitting.
	ErrEmptyVocabulary = errors.New("empty vocabulary")
)

// Config holds vectorizer parameters. They are frozen into the artifact at fit
// time and reused verbatim by every later transform.
type Config struct {
	MinTokenLength int  `json:"min_token_length" yaml:"min_token_length"`
	MinDF          int  `json:"min_df" yaml:"min_df"`
	MaxFeatures    int  `json:"max_features" yaml:"max_features"` // 0 = unlimited
	SublinearTF    bool `json:"sublinear_tf" yaml:"sublinear_tf"`
}

// DefaultConfig returns the default vectorizer configuration
func DefaultConfig() *Config {
	return &Config{
		MinTokenLength: 2,
		MinDF:          1,
		MaxFeatures:    0,
		SublinearTF:    false,
	}
}

// TFIDF maps normalized documents onto a fixed vocabulary.
// After a successful fit it is read-only and safe for concurrent Transform calls.
type TFIDF struct {
	config *Config

	vocabulary map[string]int
	terms      []string
	idf        []float64
	fitted     bool

	normalizer string
	docCount   int
	fittedAt   time.Time
}

// NewTFIDF creates an unfitted vectorizer
func NewTFIDF(config *Config) *TFIDF {
	if config == nil {
		config = DefaultConfig()
	}
	return &TFIDF{config: config}
}

// Kind implements the artifact kind tag.
func (v *TFIDF) Kind() string { return Kind }

// BindNormalizer records the fingerprint of the normalizer that produced the
// training documents. It must be called before fit.
func (v *TFIDF) BindNormalizer(fingerprint string) error {
	if v.fitted {
		return fmt.Errorf("tfidf: bind normalizer: %w", ErrAlreadyFitted)
	}
	v.normalizer = fingerprint
	return nil
}

// NormalizerFingerprint returns the fingerprint recorded at fit time.
func (v *TFIDF) NormalizerFingerprint() string { return v.normalizer }

// Fitted reports whether the vocabulary has been learned.
func (v *TFIDF) Fitted() bool { return v.fitted }

// Dim returns the vocabulary size, which is the column count of every row.
func (v *TFIDF) Dim() int { return len(v.terms) }

// Terms returns the vocabulary in column order.
func (v *TFIDF) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Index returns the column of term, if it is in the vocabulary.
func (v *TFIDF) Index(term string) (int, bool) {
	idx, ok := v.vocabulary[term]
	return idx, ok
}

// IDF returns the fitted inverse document frequency of a column.
func (v *TFIDF) IDF(col int) float64 { return v.idf[col] }

// FitTransform learns the vocabulary and IDF weights from corpus and returns
// the weighted matrix for the same documents.
func (v *TFIDF) FitTransform(corpus []string) (*Matrix, error) {
	if v.fitted {
		return nil, fmt.Errorf("tfidf: fit: %w", ErrAlreadyFitted)
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("tfidf: fit: %w: empty corpus", ErrEmptyVocabulary)
	}

	counts := make([]map[string]int, len(corpus))
	df := make(map[string]int)
	totals := make(map[string]int)
	for i, doc := range corpus {
		counts[i] = v.countTerms(doc)
		for term, c := range counts[i] {
			df[term]++
			totals[term] += c
		}
	}

	minDF := v.config.MinDF
	if minDF < 1 {
		minDF = 1
	}
	kept := make([]string, 0, len(df))
	for term, n := range df {
		if n >= minDF {
			kept = append(kept, term)
		}
	}

	if v.config.MaxFeatures > 0 && len(kept) > v.config.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if totals[kept[i]] != totals[kept[j]] {
				return totals[kept[i]] > totals[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.config.MaxFeatures]
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("tfidf: fit: %w", ErrEmptyVocabulary)
	}

	sort.Strings(kept)
	n := float64(len(corpus))
	v.vocabulary = make(map[string]int, len(kept))
	v.terms = kept
	v.idf = make([]float64, len(kept))
	for i, term := range kept {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	v.docCount = len(corpus)
	v.fittedAt = time.Now().UTC()
	v.fitted = true

	m := &Matrix{Cols: len(kept), Rows: make([]Vector, len(corpus))}
	for i := range counts {
		m.Rows[i] = v.weigh(counts[i])
	}
	return m, nil
}

// Transform maps documents onto the fitted vocabulary. Unknown terms are
// ignored; a document with no known term becomes an all-zero row.
func (v *TFIDF) Transform(docs []string) (*Matrix, error) {
	if !v.fitted {
		return nil, fmt.Errorf("tfidf: transform: %w", ErrNotFitted)
	}

	m := &Matrix{Cols: len(v.terms), Rows: make([]Vector, len(docs))}
	for i, doc := range docs {
		m.Rows[i] = v.weigh(v.countTerms(doc))
	}
	return m, nil
}

func (v *TFIDF) countTerms(doc string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range strings.Fields(doc) {
		if utf8.RuneCountInString(tok) < v.config.MinTokenLength {
			continue
		}
		counts[tok]++
	}
	return counts
}

func (v *TFIDF) weigh(counts map[string]int) Vector {
	row := Vector{}
	for term, c := range counts {
		idx, ok := v.vocabulary[term]
		if !ok {
			continue
		}
		tf := float64(c)
		if v.config.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		row.Indices = append(row.Indices, idx)
		row.Values = append(row.Values, tf*v.idf[idx])
	}

	sort.Sort(byIndex(row))

	if norm := row.Norm(); norm > 0 {
		for k := range row.Values {
			row.Values[k] /= norm
		}
	}
	return row
}

type byIndex Vector

func (b byIndex) Len() int           { return len(b.Indices) }
func (b byIndex) Less(i, j int) bool { return b.Indices[i] < b.Indices[j] }
func (b byIndex) Swap(i, j int) {
	b.Indices[i], b.Indices[j] = b.Indices[j], b.Indices[i]
	b.Values[i], b.Values[j] = b.Values[j], b.Values[i]
}

// Info summarises a fitted vectorizer.
type Info struct {
	VocabularySize int       `json:"vocabulary_size"`
	Documents      int       `json:"documents"`
	Normalizer     string    `json:"normalizer"`
	FittedAt       time.Time `json:"fitted_at"`
	Config         *Config   `json:"config"`
}

// Info returns information about the fitted vectorizer.
func (v *TFIDF) Info() *Info {
	return &Info{
		VocabularySize: len(v.terms),
		Documents:      v.docCount,
		Normalizer:     v.normalizer,
		FittedAt:       v.fittedAt,
		Config:         v.config,
	}
}

type tfidfState struct {
	Config     Config
	Terms      []string
	IDF        []float64
	Normalizer string
	DocCount   int
	FittedAt   time.Time
}

// MarshalBinary encodes the fitted state.
func (v *TFIDF) MarshalBinary() ([]byte, error) {
	if !v.fitted {
		return nil, fmt.Errorf("tfidf: marshal: %w", ErrNotFitted)
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(tfidfState{
		Config:     *v.config,
		Terms:      v.terms,
		IDF:        v.idf,
		Normalizer: v.normalizer,
		DocCount:   v.docCount,
		FittedAt:   v.fittedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("tfidf: failed to encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a fitted state produced by MarshalBinary.
func (v *TFIDF) UnmarshalBinary(data []byte) error {
	var state tfidfState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("tfidf: failed to decode: %w", err)
	}
	if len(state.Terms) == 0 || len(state.Terms) != len(state.IDF) {
		return fmt.Errorf("tfidf: corrupt state: %d terms, %d idf weights", len(state.Terms), len(state.IDF))
	}

	cfg := state.Config
	v.config = &cfg
	v.terms = state.Terms
	v.idf = state.IDF
	v.vocabulary = make(map[string]int, len(state.Terms))
	for i, term := range state.Terms {
		v.vocabulary[term] = i
	}
	v.normalizer = state.Normalizer
	v.docCount = state.DocCount
	v.fittedAt = state.FittedAt
	v.fitted = true
	return nil
}
