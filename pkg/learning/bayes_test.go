package learning

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/zpam/spam-classifier/pkg/features"
)

func trainTestModel(t *testing.T) (*features.TFIDF, *MultinomialNB) {
	t.Helper()

	docs := []string{
		"win free money prize",
		"free offer claim prize now",
		"claim free money",
		"meet tomorrow project",
		"project deadlin meet report",
	}
	labels := []int{Spam, Spam, Spam, Ham, Ham}

	vec := features.NewTFIDF(nil)
	x, err := vec.FitTransform(docs)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	nb := NewMultinomialNB(nil)
	if err := nb.Fit(x, labels); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return vec, nb
}

func TestPredictSpamAndHam(t *testing.T) {
	vec, nb := trainTestModel(t)

	x, err := vec.Transform([]string{"free money prize", "project meet tomorrow"})
	if err != nil {
		t.Fatal(err)
	}
	pred, err := nb.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred[0] != Spam {
		t.Errorf("expected spam for spammy row, got %d", pred[0])
	}
	if pred[1] != Ham {
		t.Errorf("expected ham for hammy row, got %d", pred[1])
	}
}

func TestPredictProbaSumsToOne(t *testing.T) {
	vec, nb := trainTestModel(t)

	docs := []string{"", "free", "meet", "free meet", "unknown term", "win win win win win"}
	x, err := vec.Transform(docs)
	if err != nil {
		t.Fatal(err)
	}
	proba, err := nb.PredictProba(x)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	for i, p := range proba {
		if math.Abs(p[Ham]+p[Spam]-1) > 1e-6 {
			t.Errorf("row %d (%q): probabilities %v do not sum to 1", i, docs[i], p)
		}
		if p[Ham] < 0 || p[Spam] < 0 {
			t.Errorf("row %d: negative probability %v", i, p)
		}
	}
}

func TestPredictMatchesProba(t *testing.T) {
	vec, nb := trainTestModel(t)

	docs := []string{"", "free", "meet", "free meet", "claim report", "project prize"}
	x, err := vec.Transform(docs)
	if err != nil {
		t.Fatal(err)
	}
	proba, _ := nb.PredictProba(x)
	pred, _ := nb.Predict(x)

	for i := range docs {
		want := Ham
		if proba[i][Spam] > proba[i][Ham] {
			want = Spam
		}
		if pred[i] != want {
			t.Errorf("row %d (%q): Predict=%d but proba=%v", i, docs[i], pred[i], proba[i])
		}
	}
}

func TestEmptyRowUsesPriors(t *testing.T) {
	vec, nb := trainTestModel(t)

	x, err := vec.Transform([]string{""})
	if err != nil {
		t.Fatal(err)
	}
	proba, err := nb.PredictProba(x)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(proba[0][Spam]-0.6) > 1e-9 || math.Abs(proba[0][Ham]-0.4) > 1e-9 {
		t.Errorf("expected prior-only probabilities [0.4 0.6], got %v", proba[0])
	}
}

func TestTieBreaksToHam(t *testing.T) {
	if got := ArgMax([2]float64{0.5, 0.5}); got != Ham {
		t.Errorf("ArgMax tie = %d, expected Ham", got)
	}

	// balanced classes and an empty row give exactly equal posteriors
	vec := features.NewTFIDF(nil)
	x, err := vec.FitTransform([]string{"free money", "meet project"})
	if err != nil {
		t.Fatal(err)
	}
	nb := NewMultinomialNB(nil)
	if err := nb.Fit(x, []int{Spam, Ham}); err != nil {
		t.Fatal(err)
	}
	empty, _ := vec.Transform([]string{""})
	pred, err := nb.Predict(empty)
	if err != nil {
		t.Fatal(err)
	}
	if pred[0] != Ham {
		t.Errorf("expected tie to resolve to Ham, got %d", pred[0])
	}
}

func TestUniformPrior(t *testing.T) {
	vec := features.NewTFIDF(nil)
	x, err := vec.FitTransform([]string{"aa", "aa", "aa", "bb"})
	if err != nil {
		t.Fatal(err)
	}
	nb := NewMultinomialNB(&Config{SmoothingFactor: 1, FitPrior: false})
	if err := nb.Fit(x, []int{Spam, Spam, Spam, Ham}); err != nil {
		t.Fatal(err)
	}
	info := nb.GetModelInfo()
	if math.Abs(info.SpamPrior-0.5) > 1e-12 || math.Abs(info.HamPrior-0.5) > 1e-12 {
		t.Errorf("expected uniform priors, got spam=%f ham=%f", info.SpamPrior, info.HamPrior)
	}
}

func TestSingleClassTraining(t *testing.T) {
	vec := features.NewTFIDF(nil)
	x, err := vec.FitTransform([]string{"free money", "claim prize"})
	if err != nil {
		t.Fatal(err)
	}
	nb := NewMultinomialNB(nil)
	if err := nb.Fit(x, []int{Spam, Spam}); err != nil {
		t.Fatal(err)
	}
	row, _ := vec.Transform([]string{"free"})
	proba, err := nb.PredictProba(row)
	if err != nil {
		t.Fatal(err)
	}
	if proba[0][Spam] != 1 || proba[0][Ham] != 0 {
		t.Errorf("expected certain spam with a spam-only corpus, got %v", proba[0])
	}
}

func TestFitValidation(t *testing.T) {
	vec := features.NewTFIDF(nil)
	x, err := vec.FitTransform([]string{"free money", "meet project"})
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name   string
		config *Config
		x      *features.Matrix
		labels []int
	}{
		{"label count mismatch", nil, x, []int{Spam}},
		{"bad label", nil, x, []int{Spam, 2}},
		{"no rows", nil, &features.Matrix{Cols: 2}, nil},
		{"zero smoothing", &Config{SmoothingFactor: 0, FitPrior: true}, x, []int{Spam, Ham}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := NewMultinomialNB(tc.config).Fit(tc.x, tc.labels); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRefitAfterRejectedLabels(t *testing.T) {
	vec := features.NewTFIDF(nil)
	x, err := vec.FitTransform([]string{"free money", "claim prize", "meet project"})
	if err != nil {
		t.Fatal(err)
	}

	nb := NewMultinomialNB(nil)
	if err := nb.Fit(x, []int{Spam, Spam, 7}); err == nil {
		t.Fatal("expected an error for label 7")
	}
	if err := nb.Fit(x.Select([]int{0, 2}), []int{Spam, Ham}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	info := nb.GetModelInfo()
	if info.SpamDocuments != 1 || info.HamDocuments != 1 {
		t.Errorf("expected 1 spam and 1 ham document, got %d and %d", info.SpamDocuments, info.HamDocuments)
	}
	if math.Abs(info.SpamPrior-0.5) > 1e-9 {
		t.Errorf("expected spam prior 0.5, got %f", info.SpamPrior)
	}
}

func TestPredictErrors(t *testing.T) {
	nb := NewMultinomialNB(nil)
	if _, err := nb.Predict(&features.Matrix{Cols: 3}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}

	_, trained := trainTestModel(t)
	if _, err := trained.PredictProba(&features.Matrix{Cols: 1, Rows: []features.Vector{{}}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	vec, nb := trainTestModel(t)

	data, err := nb.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	restored := &MultinomialNB{}
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}

	x, _ := vec.Transform([]string{"free money", "meet", "", "prize report"})
	want, _ := nb.PredictProba(x)
	got, err := restored.PredictProba(x)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("row %d: %v != %v after round trip", i, got[i], want[i])
		}
	}
}

func TestUnmarshalRejectsCorruptState(t *testing.T) {
	testCases := []struct {
		name  string
		state nbState
	}{
		{"missing feature counts", nbState{
			Config:         *DefaultConfig(),
			NFeatures:      2,
			FeatureLogProb: [2][]float64{{0, 0}, {0, 0}},
		}},
		{"short feature counts", nbState{
			Config:         *DefaultConfig(),
			NFeatures:      2,
			FeatureCount:   [2][]float64{{1, 1}, {1}},
			FeatureLogProb: [2][]float64{{0, 0}, {0, 0}},
		}},
		{"no features", nbState{Config: *DefaultConfig()}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(tc.state); err != nil {
				t.Fatal(err)
			}
			nb := &MultinomialNB{}
			if err := nb.UnmarshalBinary(buf.Bytes()); err == nil {
				t.Fatal("expected an error")
			}
			if terms := nb.TopTerms([]string{"a", "b"}, Spam, 1); terms != nil {
				t.Errorf("rejected state should leave the model unfitted, got %v", terms)
			}
		})
	}
}

func TestTopTermsAndStats(t *testing.T) {
	vec, nb := trainTestModel(t)

	spam := nb.TopTerms(vec.Terms(), Spam, 3)
	if len(spam) != 3 {
		t.Fatalf("expected 3 spam terms, got %d", len(spam))
	}
	for _, term := range spam {
		if term.Score <= 0 {
			t.Errorf("spam term %q has non-positive score %f", term.Term, term.Score)
		}
	}

	ham := nb.TopTerms(vec.Terms(), Ham, 0)
	if len(ham) != vec.Dim() {
		t.Errorf("limit 0 should return every term, got %d", len(ham))
	}
	if ham[0].Term != "deadlin" && ham[0].Term != "meet" && ham[0].Term != "project" && ham[0].Term != "report" && ham[0].Term != "tomorrow" {
		t.Errorf("unexpected top ham term %q", ham[0].Term)
	}

	var buf bytes.Buffer
	nb.PrintStats(&buf, vec.Terms())
	out := buf.String()
	if !strings.Contains(out, "Spam documents: 3") || !strings.Contains(out, "Ham documents: 2") {
		t.Errorf("unexpected stats output:\n%s", out)
	}
}

func TestEvaluate(t *testing.T) {
	m, err := Evaluate([]int{1, 1, 0, 0, 1}, []int{1, 0, 0, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if m.TruePositives != 2 || m.TrueNegatives != 1 || m.FalsePositives != 1 || m.FalseNegatives != 1 {
		t.Errorf("unexpected confusion matrix %+v", m)
	}
	if math.Abs(m.Accuracy-0.6) > 1e-12 {
		t.Errorf("accuracy = %f, expected 0.6", m.Accuracy)
	}
	if math.Abs(m.Precision-2.0/3.0) > 1e-12 || math.Abs(m.Recall-2.0/3.0) > 1e-12 {
		t.Errorf("precision/recall = %f/%f", m.Precision, m.Recall)
	}

	if _, err := Evaluate([]int{1}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
}
