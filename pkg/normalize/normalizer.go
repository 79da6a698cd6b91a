// Package normalize turns raw message text into the canonical token stream
// that both training and serving feed to the feature extractor.
//
// The step order is part of the model contract: a vectorizer fitted on text
// normalized one way silently degrades when fed text normalized another way.
// Fingerprint captures everything that affects the output so a mismatch can be
// detected when artifacts are loaded.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Punctuation is the fixed ASCII punctuation set removed in step 2.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// pipelineVersion changes whenever the step order or any step changes.
const pipelineVersion = "v1"

// stemmerName identifies the stemming algorithm inside the fingerprint.
const stemmerName = "snowball-english"

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	stopwords   map[string]struct{}
	fingerprint string
}

// New returns a normalizer using the default English stopword list.
func New() *Normalizer {
	return NewWithStopwords(englishStopwords)
}

// NewWithStopwords returns a normalizer that drops the given words.
func NewWithStopwords(words []string) *Normalizer {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return &Normalizer{
		stopwords:   set,
		fingerprint: fingerprint(set),
	}
}

// Normalize runs all steps and joins the surviving stems with single spaces.
// A message whose tokens are all filtered out yields "".
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens runs steps 1-6 and returns the stemmed tokens in source order.
func (n *Normalizer) Tokens(text string) []string {
	// cases.Caser is stateful, so one per call
	lowered := cases.Lower(language.Und).String(text)
	stripped := stripPunctuation(lowered)

	fields := strings.Fields(stripped)
	tokens := make([]string, 0, len(fields))
	for _, word := range fields {
		if isNumeric(word) {
			continue
		}
		if _, stop := n.stopwords[word]; stop {
			continue
		}
		tokens = append(tokens, english.Stem(word, true))
	}
	return tokens
}

// Fingerprint identifies the exact normalization behaviour.
func (n *Normalizer) Fingerprint() string {
	return n.fingerprint
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && strings.ContainsRune(Punctuation, r) {
			return -1
		}
		return r
	}, s)
}

func isNumeric(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func fingerprint(set map[string]struct{}) string {
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)

	h := xxhash.New()
	_, _ = h.WriteString(pipelineVersion + "|" + stemmerName + "|" + Punctuation + "|")
	_, _ = h.WriteString(strings.Join(words, "\n"))
	return fmt.Sprintf("%s-%016x", pipelineVersion, h.Sum64())
}
