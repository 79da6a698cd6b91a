package profiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGetStats(t *testing.T) {
	p := NewProfiler()
	for i := 1; i <= 100; i++ {
		p.Record("predict", time.Duration(i)*time.Millisecond)
	}

	s := p.GetStats("predict")
	if s.Count != 100 {
		t.Fatalf("expected 100 samples, got %d", s.Count)
	}
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", s.Min, s.Max)
	}
	if s.Average != 50500*time.Microsecond {
		t.Errorf("average = %v", s.Average)
	}
	if s.P95 != 95*time.Millisecond || s.P99 != 99*time.Millisecond {
		t.Errorf("p95/p99 = %v/%v", s.P95, s.P99)
	}

	if empty := p.GetStats("missing"); empty.Count != 0 {
		t.Errorf("expected no samples for unknown stage, got %d", empty.Count)
	}
}

func TestSingleSample(t *testing.T) {
	p := NewProfiler()
	p.Record("x", time.Second)
	s := p.GetStats("x")
	if s.P95 != time.Second || s.P99 != time.Second || s.Median != time.Second {
		t.Errorf("single sample percentiles wrong: %+v", s)
	}
}

func TestTimeAndReport(t *testing.T) {
	p := NewProfiler()
	boom := errors.New("boom")
	if err := p.Time("vectorize", func() error { return boom }); err != boom {
		t.Errorf("Time should return fn error, got %v", err)
	}
	_ = p.Time("normalize", func() error { return nil })

	var buf bytes.Buffer
	p.PrintReport(&buf)
	out := buf.String()
	if !strings.Contains(out, "normalize") || !strings.Contains(out, "vectorize") {
		t.Errorf("report missing stages:\n%s", out)
	}
	if strings.Index(out, "normalize") > strings.Index(out, "vectorize") {
		t.Error("stages should be sorted by name")
	}

	p.Reset()
	buf.Reset()
	p.PrintReport(&buf)
	if !strings.Contains(buf.String(), "No timing data") {
		t.Errorf("expected empty report, got %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := map[time.Duration]string{
		500 * time.Nanosecond:  "500ns",
		1500 * time.Nanosecond: "1.5μs",
		2 * time.Millisecond:   "2.00ms",
		1500 * time.Millisecond: "1.500s",
	}
	for d, want := range testCases {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %q, expected %q", d, got, want)
		}
	}
}
