package model

import "time"

// Sentinel values returned when no attempt produced a classification
const (
	UnclassifiedCode  = "IDK"
	UnclassifiedLabel = "Unable to classify"
)

// Unclassified returns the sentinel result
func Unclassified() Category {
	return Category{Code: UnclassifiedCode, Label: UnclassifiedLabel}
}

// IsUnclassified reports whether c is the sentinel result
func (c Category) IsUnclassified() bool {
	return c.Code == UnclassifiedCode
}

// StopReason explains why a traversal attempt stopped descending
type StopReason string

const (
	StopMaxDepth       StopReason = "max_depth"       // Reached the configured depth limit
	StopNoOptions      StopReason = "no_options"      // The current node has no children
	StopUnparsable     StopReason = "unparsable"      // The reply contained no letter
	StopInvalidChoice  StopReason = "invalid_choice"  // The letter was not among the options
	StopIterationLimit StopReason = "iteration_limit" // Hard ceiling on prompt iterations
	StopError          StopReason = "error"           // Lookup or transport failure
)

// Attempt is one top-down traversal of the taxonomy
type Attempt struct {
	Number int        `json:"number"`          // 0-based attempt index
	Path   []Category `json:"path"`            // One entry per level descended
	Stop   StopReason `json:"stop"`            // Why the traversal ended
	Err    error      `json:"-"`               // Set when Stop is StopError
	Error  string     `json:"error,omitempty"` // Err rendered for reports
}

// Succeeded reports whether the attempt selected at least one code
func (a Attempt) Succeeded() bool {
	return len(a.Path) > 0
}

// Deepest returns the entry with the longest code string. Ties go to the
// entry reached first.
func (a Attempt) Deepest() (Category, bool) {
	if len(a.Path) == 0 {
		return Category{}, false
	}
	best := a.Path[0]
	for _, c := range a.Path[1:] {
		if len(c.Code) > len(best.Code) {
			best = c
		}
	}
	return best, true
}

// Result is the final classification of one description
type Result struct {
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Arbitrated  bool      `json:"arbitrated"`         // Whether an arbitration call decided it
	Attempts    []Attempt `json:"attempts,omitempty"` // Diagnostic trace
}

// Code returns the classified code
func (r Result) Code() string {
	return r.Category.Code
}

// Label returns the classified label
func (r Result) Label() string {
	return r.Category.Label
}

// FileSummary reports the outcome of classifying one input file
type FileSummary struct {
	Input        string        `json:"input"`
	Output       string        `json:"output"`
	Total        int           `json:"total"`
	Unclassified int           `json:"unclassified"`
	Arbitrated   int           `json:"arbitrated"`
	Duration     time.Duration `json:"duration"`
}

// Classified returns how many descriptions received a real code
func (s FileSummary) Classified() int {
	return s.Total - s.Unclassified
}
