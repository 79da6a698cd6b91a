package learning

import (
	"fmt"
	"io"
)

// Metrics summarises predictions against held-out labels, with Spam as the
// positive class.
type Metrics struct {
	Samples        int     `json:"samples"`
	TruePositives  int     `json:"true_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

// Evaluate compares predicted labels against the truth.
func Evaluate(truth, predicted []int) (*Metrics, error) {
	if len(truth) != len(predicted) {
		return nil, fmt.Errorf("evaluate: %d labels for %d predictions", len(truth), len(predicted))
	}

	m := &Metrics{Samples: len(truth)}
	for i := range truth {
		switch {
		case truth[i] == Spam && predicted[i] == Spam:
			m.TruePositives++
		case truth[i] == Ham && predicted[i] == Ham:
			m.TrueNegatives++
		case truth[i] == Ham && predicted[i] == Spam:
			m.FalsePositives++
		default:
			m.FalseNegatives++
		}
	}

	if m.Samples > 0 {
		m.Accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(m.Samples)
	}
	if tp := m.TruePositives; tp > 0 {
		m.Precision = float64(tp) / float64(tp+m.FalsePositives)
		m.Recall = float64(tp) / float64(tp+m.FalseNegatives)
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

// Print writes the metrics in the CLI report format.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintf(w, "📊 Evaluation on %d held-out messages\n", m.Samples)
	fmt.Fprintf(w, "  Accuracy:  %.2f%%\n", m.Accuracy*100)
	fmt.Fprintf(w, "  Precision: %.4f\n", m.Precision)
	fmt.Fprintf(w, "  Recall:    %.4f\n", m.Recall)
	fmt.Fprintf(w, "  F1:        %.4f\n", m.F1)
	fmt.Fprintf(w, "  Confusion: TP=%d TN=%d FP=%d FN=%d\n",
		m.TruePositives, m.TrueNegatives, m.FalsePositives, m.FalseNegatives)
}
