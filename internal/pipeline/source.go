package pipeline

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoDescriptionColumn is returned for CSV input without a description column
var ErrNoDescriptionColumn = errors.New("no Description or Descriptions column")

// descriptionColumns are the accepted header names, in preference order
var descriptionColumns = []string{"Description", "Descriptions"}

// Source is the parsed content of one input file
type Source struct {
	Path         string
	Header       []string   // CSV header, nil for line input
	Rows         [][]string // Every CSV data row, including rows with no description
	Column       int        // Index of the description column, -1 for line input
	Descriptions []string
	RowIndex     []int // Rows index each description was read from
}

// ReadSource loads descriptions from path. CSV files are read via their
// description column; anything else is one description per line.
func ReadSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		src, err := ParseCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		src.Path = path
		return src, nil
	}

	src, err := ParseLines(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.Path = path
	return src, nil
}

// ParseCSV reads a CSV whose header names a description column. Every row
// is kept in Rows; only rows with a non-empty description are classified.
func ParseCSV(r io.Reader) (*Source, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoDescriptionColumn
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col := findColumn(header)
	if col < 0 {
		return nil, ErrNoDescriptionColumn
	}

	src := &Source{Header: header, Column: col}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		src.Rows = append(src.Rows, row)
		if col >= len(row) {
			continue
		}
		desc := strings.TrimSpace(row[col])
		if desc == "" {
			continue
		}
		src.Descriptions = append(src.Descriptions, desc)
		src.RowIndex = append(src.RowIndex, len(src.Rows)-1)
	}
	return src, nil
}

func findColumn(header []string) int {
	for _, name := range descriptionColumns {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
	}
	return -1
}

// ParseLines reads one description per line, skipping blank lines.
// Order and duplicates are preserved.
func ParseLines(r io.Reader) (*Source, error) {
	src := &Source{Column: -1}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		src.Descriptions = append(src.Descriptions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return src, nil
}
