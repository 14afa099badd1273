package pipeline

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/sitclass/internal/model"
)

func sampleResults() []model.Result {
	return []model.Result{
		{Description: "Almendras", Category: model.Category{Code: "057.72", Label: "Almonds"}},
		{Description: "???", Category: model.Unclassified()},
	}
}

func TestWriteCSV_KeepsInputColumns(t *testing.T) {
	src := &Source{
		Header: []string{"ID", "Description"},
		Rows:   [][]string{{"1", "Almendras"}, {"2"}},
		Column: 1,
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, src, sampleResults()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "ID,Description,SITC_Code,SITC_Description\n" +
		"1,Almendras,057.72,Almonds\n" +
		"2,,IDK,Unable to classify\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV_KeepsRowsWithoutDescription(t *testing.T) {
	src, err := ParseCSV(strings.NewReader("ID,Description\n1,Almendras\n2,\n3\n4,???\n"))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, src, sampleResults()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "ID,Description,SITC_Code,SITC_Description\n" +
		"1,Almendras,057.72,Almonds\n" +
		"2,,,\n" +
		"3,,,\n" +
		"4,???,IDK,Unable to classify\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV_LineInput(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, &Source{Column: -1}, sampleResults()[:1]); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "Description,SITC_Code,SITC_Description\nAlmendras,057.72,Almonds\n"
	if buf.String() != want {
		t.Errorf("unexpected csv:\n%s", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResults()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var records []Record
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 2 || records[0].Code != "057.72" || records[1].Code != "IDK" {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, sampleResults()); err != nil {
		t.Fatalf("WriteJSONL failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"sitc_code":"057.72"`) {
		t.Errorf("unexpected first line %s", lines[0])
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in, dir, format, want string
	}{
		{"data/imports.csv", "", "csv", filepath.Join("data", "imports_classified.csv")},
		{"data/imports.csv", "out", "json", filepath.Join("out", "imports_classified.json")},
		{"items.txt", "", "jsonl", "items_classified.jsonl"},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.in, tt.dir, tt.format); got != tt.want {
			t.Errorf("OutputPath(%q, %q, %q) = %q, want %q", tt.in, tt.dir, tt.format, got, tt.want)
		}
	}
}

func TestNewRenderer(t *testing.T) {
	if _, err := NewRenderer("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	r, err := NewRenderer(model.FormatJSONL)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	if r.Format() != "jsonl" {
		t.Errorf("expected jsonl, got %s", r.Format())
	}
}
