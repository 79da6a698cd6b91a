package corpus

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.csv")
	writeFile(t, path, "text,spam\n"+
		"\"WIN FREE MONEY, NOW\",1\n"+
		"Meeting tomorrow,0\n"+
		"   ,1\n"+
		"Claim your prize,spam\n")

	examples, stats, err := ReadCSV(path, "text", "spam")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(examples) != 3 {
		t.Fatalf("expected 3 examples, got %d", len(examples))
	}
	if examples[0].Text != "WIN FREE MONEY, NOW" || examples[0].Label != Spam {
		t.Errorf("unexpected first example %+v", examples[0])
	}
	if stats.Spam != 2 || stats.Ham != 1 || stats.Skipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestReadCSVErrors(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name    string
		content string
	}{
		{"missing text column", "body,spam\nhello,0\n"},
		{"missing label column", "text,label\nhello,0\n"},
		{"bad label", "text,spam\nhello,2\n"},
		{"empty file", ""},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".csv")
			writeFile(t, path, tc.content)
			if _, _, err := ReadCSV(path, "text", "spam"); err == nil {
				t.Errorf("case %d: expected an error", i)
			}
		})
	}

	if _, _, err := ReadCSV(filepath.Join(dir, "nope.csv"), "text", "spam"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"text", "spam"},
		{"Free offer inside", 1},
		{"Project report attached", 0},
		{"", 0},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	examples, stats, err := ReadXLSX(path, "", "text", "spam")
	if err != nil {
		t.Fatalf("ReadXLSX failed: %v", err)
	}
	if len(examples) != 2 || examples[0].Label != Spam || examples[1].Label != Ham {
		t.Errorf("unexpected examples %+v", examples)
	}
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skipped row, got %d", stats.Skipped)
	}

	if _, _, err := ReadXLSX(path, "Missing", "text", "spam"); err == nil {
		t.Error("expected an error for an unknown sheet")
	}
}

func TestReadMailDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "spam", "1.eml"), "Subject: Free money\r\n\r\nClaim now\r\n")
	writeFile(t, filepath.Join(dir, "spam", "nested", "2.msg"), "Subject: Prize\r\n\r\nYou won\r\n")
	writeFile(t, filepath.Join(dir, "spam", "notes.pdf"), "ignored")
	writeFile(t, filepath.Join(dir, "ham", "1.eml"), "Subject: Standup\r\n\r\nAt ten\r\n")
	writeFile(t, filepath.Join(dir, "ham", "blank.eml"), "Subject: \r\n\r\n\r\n")

	examples, stats, err := ReadMailDirs(filepath.Join(dir, "spam"), filepath.Join(dir, "ham"))
	if err != nil {
		t.Fatalf("ReadMailDirs failed: %v", err)
	}
	if stats.Spam != 2 || stats.Ham != 1 || stats.Skipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	texts := Texts(examples)
	sort.Strings(texts)
	if texts[0] != "Free money\nClaim now" {
		t.Errorf("unexpected texts %q", texts)
	}
}

func TestSplit(t *testing.T) {
	train, test := Split(10, 0.2, 42)
	if len(train) != 8 || len(test) != 2 {
		t.Fatalf("expected 8/2 split, got %d/%d", len(train), len(test))
	}

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		if seen[i] {
			t.Errorf("index %d appears twice", i)
		}
		seen[i] = true
	}
	if len(seen) != 10 {
		t.Errorf("expected every index once, got %d", len(seen))
	}

	_, test2 := Split(10, 0.2, 42)
	for i := range test {
		if test[i] != test2[i] {
			t.Fatal("split is not deterministic for a fixed seed")
		}
	}

	testCases := []struct {
		n        int
		testSize float64
		train    int
		test     int
	}{
		{5, 0, 5, 0},
		{5, 0.1, 4, 1},
		{3, 0.9, 1, 2},
		{1, 0.5, 1, 0},
		{4, 1.5, 1, 3},
	}
	for _, tc := range testCases {
		train, test := Split(tc.n, tc.testSize, 7)
		if len(train) != tc.train || len(test) != tc.test {
			t.Errorf("Split(%d, %.1f) = %d/%d, expected %d/%d", tc.n, tc.testSize, len(train), len(test), tc.train, tc.test)
		}
	}
}

func TestParseLabel(t *testing.T) {
	testCases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", Spam, false},
		{" 0 ", Ham, false},
		{"SPAM", Spam, false},
		{"ham", Ham, false},
		{"2", 0, true},
		{"", 0, true},
		{"maybe", 0, true},
	}
	for _, tc := range testCases {
		got, err := ParseLabel(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseLabel(%q) = %d, %v", tc.in, got, err)
		}
	}
}
