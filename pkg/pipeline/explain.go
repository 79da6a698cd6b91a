package pipeline

import (
	"sort"
)

// TermWeight is one active feature of a message.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Explanation shows how a message was seen by the model.
type Explanation struct {
	Normalized string       `json:"normalized"`
	Matched    []TermWeight `json:"matched"`
	Unknown    []string     `json:"unknown"`
	Spam       float64      `json:"spam_probability"`
	Ham        float64      `json:"ham_probability"`
	Result     Result       `json:"result"`
}

// Explain classifies text and reports which vocabulary terms it matched,
// heaviest first. Terms are only named when the extractor exposes its
// vocabulary.
func (m *Model) Explain(text string) (*Explanation, error) {
	result, err := m.Classify(text)
	if err != nil {
		return nil, err
	}

	normalized := m.normalizer.Normalize(text)
	x, err := m.extractor.Transform([]string{normalized})
	if err != nil {
		return nil, err
	}
	proba, err := m.classifier.PredictProba(x)
	if err != nil {
		return nil, err
	}

	exp := &Explanation{
		Normalized: normalized,
		Ham:        proba[0][0],
		Spam:       proba[0][1],
		Result:     result,
	}

	vocab, _ := m.extractor.(interface {
		Terms() []string
		Index(term string) (int, bool)
	})

	var terms []string
	if vocab != nil {
		terms = vocab.Terms()
	}

	row := x.Rows[0]
	for k, idx := range row.Indices {
		tw := TermWeight{Weight: row.Values[k]}
		if terms != nil {
			tw.Term = terms[idx]
		}
		exp.Matched = append(exp.Matched, tw)
	}
	sort.SliceStable(exp.Matched, func(i, j int) bool {
		return exp.Matched[i].Weight > exp.Matched[j].Weight
	})

	if vocab != nil {
		seen := make(map[string]bool)
		for _, tok := range m.normalizer.Tokens(text) {
			if _, ok := vocab.Index(tok); !ok && !seen[tok] {
				seen[tok] = true
				exp.Unknown = append(exp.Unknown, tok)
			}
		}
	}
	return exp, nil
}
