package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/sitclass/internal/model"
)

// FileProcessor classifies every description in one input file
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (model.FileSummary, error)
}

// FileJob represents one input file to classify
type FileJob struct {
	Path      string
	Processor FileProcessor
}

// Execute executes the file job
func (j *FileJob) Execute(ctx context.Context) Result {
	summary, err := j.Processor.ProcessFile(ctx, j.Path)
	return &FileResult{
		Path:    j.Path,
		Summary: summary,
		Error:   err,
	}
}

// FileResult represents the result of a file job
type FileResult struct {
	Path    string
	Summary model.FileSummary
	Error   error
}

// GetError returns the error from the file result
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor classifies multiple input files concurrently. Descriptions
// within a file stay sequential; only whole files run in parallel.
type BatchProcessor struct {
	processor   FileProcessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor FileProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessFiles processes files concurrently and returns one result per path
// in input order
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*FileResult {
	if len(paths) == 0 {
		return []*FileResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&FileJob{
			Path:      path,
			Processor: b.processor,
		})
	}

	results := pool.Wait()

	fileResults := make([]*FileResult, len(results))
	for i, result := range results {
		if result == nil {
			// Skipped after cancellation
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			fileResults[i] = &FileResult{Path: paths[i], Error: err}
			continue
		}
		fileResults[i] = result.(*FileResult)
	}

	return fileResults
}

// SupportedExtensions are the input file types the batch command picks up
var SupportedExtensions = []string{".csv", ".txt"}

// ExpandInputs resolves each argument to input files. Directories expand to
// the supported files they directly contain, sorted by name; files pass
// through unchanged. Duplicates are dropped.
func ExpandInputs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat input: %w", err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		var files []string
		for _, e := range entries {
			if e.IsDir() || !isSupported(e.Name()) || isOutput(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(arg, e.Name()))
		}
		sort.Strings(files)
		for _, f := range files {
			add(f)
		}
	}
	return out, nil
}

func isSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// isOutput skips files written by a previous run
func isOutput(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(stem, "_classified")
}

// ReadInputsFromFile reads input paths from a list file (one per line).
// Blank lines and # comments are skipped.
func ReadInputsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
