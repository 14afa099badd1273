package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/sitclass/internal/model"
)

// Output column names appended to the input columns
const (
	ColumnCode  = "SITC_Code"
	ColumnLabel = "SITC_Description"
)

// Record is one classified description as written to JSON outputs
type Record struct {
	Description string `json:"description"`
	Code        string `json:"sitc_code"`
	Label       string `json:"sitc_description"`
	Arbitrated  bool   `json:"arbitrated,omitempty"`
}

// NewRecord flattens a result for output
func NewRecord(r model.Result) Record {
	return Record{
		Description: r.Description,
		Code:        r.Code(),
		Label:       r.Label(),
		Arbitrated:  r.Arbitrated,
	}
}

// OutputPath returns where results for input are written: the input stem
// with a _classified suffix, inside outDir
func OutputPath(input, outDir, format string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	return filepath.Join(outDir, stem+"_classified."+format)
}

// Renderer writes classification results in one output format
type Renderer struct {
	format string
}

// NewRenderer creates a renderer for csv, json or jsonl
func NewRenderer(format string) (*Renderer, error) {
	switch format {
	case model.FormatCSV, model.FormatJSON, model.FormatJSONL:
		return &Renderer{format: format}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (supported: csv, json, jsonl)", format)
	}
}

// Format returns the output format
func (r *Renderer) Format() string {
	return r.format
}

// RenderFile writes results for src to path, creating parent directories
func (r *Renderer) RenderFile(path string, src *Source, results []model.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := r.Render(f, src, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Render writes results for src to w
func (r *Renderer) Render(w io.Writer, src *Source, results []model.Result) error {
	switch r.format {
	case model.FormatJSON:
		return WriteJSON(w, results)
	case model.FormatJSONL:
		return WriteJSONL(w, results)
	default:
		return WriteCSV(w, src, results)
	}
}

// WriteCSV writes the input rows with the code and label columns appended.
// Line input gets a single Description column.
func WriteCSV(w io.Writer, src *Source, results []model.Result) error {
	cw := csv.NewWriter(w)

	header := []string{"Description"}
	if src != nil && src.Header != nil {
		header = append([]string(nil), src.Header...)
	}
	if err := cw.Write(append(header, ColumnCode, ColumnLabel)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	if src == nil || src.Header == nil {
		for _, res := range results {
			if err := cw.Write([]string{res.Description, res.Code(), res.Label()}); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	} else {
		byRow := rowResults(src, results)
		for i, in := range src.Rows {
			row := padRow(in, len(src.Header))
			code, label := "", ""
			if res, ok := byRow[i]; ok {
				code, label = res.Code(), res.Label()
			}
			if err := cw.Write(append(row, code, label)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// rowResults maps source row indexes to results. Without a RowIndex the
// rows are taken to line up with the results.
func rowResults(src *Source, results []model.Result) map[int]model.Result {
	byRow := make(map[int]model.Result, len(results))
	for i, res := range results {
		row := i
		if src.RowIndex != nil {
			if i >= len(src.RowIndex) {
				break
			}
			row = src.RowIndex[i]
		}
		byRow[row] = res
	}
	return byRow
}

// padRow copies row, truncated or padded to n fields
func padRow(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

// WriteJSON writes results as an indented JSON array
func WriteJSON(w io.Writer, results []model.Result) error {
	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = NewRecord(r)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteJSONL writes one JSON record per line
func WriteJSONL(w io.Writer, results []model.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(NewRecord(r)); err != nil {
			return fmt.Errorf("encode json line: %w", err)
		}
	}
	return nil
}
