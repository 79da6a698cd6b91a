// Package corpus loads labeled training messages from CSV, XLSX or mail
// directories.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zpam/spam-classifier/pkg/email"
)

// Labels
const (
	Ham  = 0
	Spam = 1
)

// Example is one labeled training message.
type Example struct {
	Text  string
	Label int
}

// Stats counts what a reader kept and skipped.
type Stats struct {
	Rows    int
	Spam    int
	Ham     int
	Skipped int
}

func (s *Stats) add(label int) {
	s.Rows++
	if label == Spam {
		s.Spam++
	} else {
		s.Ham++
	}
}

// ReadCSV reads a CSV file with a header row. Rows with blank text are
// skipped and counted.
func ReadCSV(path, textColumn, labelColumn string) ([]Example, *Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open corpus: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %v", err)
	}
	textIdx, labelIdx, err := columns(header, textColumn, labelColumn)
	if err != nil {
		return nil, nil, err
	}

	var examples []Example
	stats := &Stats{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV line %d: %v", line, err)
		}
		ex, ok, err := toExample(record, textIdx, labelIdx)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %v", line, err)
		}
		if !ok {
			stats.Skipped++
			continue
		}
		examples = append(examples, ex)
		stats.add(ex.Label)
	}
	return examples, stats, nil
}

// ReadXLSX reads a worksheet whose first row is the header. An empty sheet
// name selects the first sheet.
func ReadXLSX(path, sheet, textColumn, labelColumn string) ([]Example, *Stats, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %v", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %v", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	textIdx, labelIdx, err := columns(rows[0], textColumn, labelColumn)
	if err != nil {
		return nil, nil, err
	}

	var examples []Example
	stats := &Stats{}
	for i, row := range rows[1:] {
		ex, ok, err := toExample(row, textIdx, labelIdx)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %v", i+2, err)
		}
		if !ok {
			stats.Skipped++
			continue
		}
		examples = append(examples, ex)
		stats.add(ex.Label)
	}
	return examples, stats, nil
}

// ReadMailDirs parses every message file under spamDir and hamDir. Either
// directory may be empty. Unparseable or blank messages are skipped.
func ReadMailDirs(spamDir, hamDir string) ([]Example, *Stats, error) {
	parser := email.NewParser()
	stats := &Stats{}
	var examples []Example

	for _, dir := range []struct {
		path  string
		label int
	}{{spamDir, Spam}, {hamDir, Ham}} {
		if dir.path == "" {
			continue
		}
		err := filepath.WalkDir(dir.path, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !IsMailFile(path) {
				return nil
			}
			msg, err := parser.ParseFromFile(path)
			if err != nil {
				stats.Skipped++
				return nil
			}
			text := msg.Text()
			if strings.TrimSpace(text) == "" {
				stats.Skipped++
				return nil
			}
			examples = append(examples, Example{Text: text, Label: dir.label})
			stats.add(dir.label)
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to walk %s: %v", dir.path, err)
		}
	}
	return examples, stats, nil
}

// IsMailFile reports whether path looks like a stored message.
func IsMailFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml", ".msg", ".email", ".txt", "":
		return true
	}
	return false
}

// Split shuffles n row indices with a fixed seed and returns the train and
// test partitions. The test share is rounded up; at least one row always
// stays in train.
func Split(n int, testSize float64, seed uint64) (train, test []int) {
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	if testSize <= 0 || n < 2 {
		return perm, nil
	}
	if testSize > 1 {
		testSize = 1
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

func columns(header []string, textColumn, labelColumn string) (int, int, error) {
	textIdx, labelIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case strings.EqualFold(name, textColumn):
			textIdx = i
		case strings.EqualFold(name, labelColumn):
			labelIdx = i
		}
	}
	if textIdx < 0 {
		return 0, 0, fmt.Errorf("text column %q not found in header %v", textColumn, header)
	}
	if labelIdx < 0 {
		return 0, 0, fmt.Errorf("label column %q not found in header %v", labelColumn, header)
	}
	return textIdx, labelIdx, nil
}

func toExample(record []string, textIdx, labelIdx int) (Example, bool, error) {
	var text, rawLabel string
	if textIdx < len(record) {
		text = record[textIdx]
	}
	if labelIdx < len(record) {
		rawLabel = strings.TrimSpace(record[labelIdx])
	}
	if strings.TrimSpace(text) == "" {
		return Example{}, false, nil
	}

	label, err := ParseLabel(rawLabel)
	if err != nil {
		return Example{}, false, err
	}
	return Example{Text: text, Label: label}, true, nil
}

// ParseLabel accepts 0/1 as well as ham/spam.
func ParseLabel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spam":
		return Spam, nil
	case "ham":
		return Ham, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || (v != Ham && v != Spam) {
		return 0, fmt.Errorf("invalid label %q: expected 0 or 1", s)
	}
	return v, nil
}

// Texts returns the message texts.
func Texts(examples []Example) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Text
	}
	return out
}

// Labels returns the labels.
func Labels(examples []Example) []int {
	out := make([]int, len(examples))
	for i, ex := range examples {
		out[i] = ex.Label
	}
	return out
}
