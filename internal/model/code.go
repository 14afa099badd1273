package model

import "strings"

// MaxLevel is the deepest level of the SITC hierarchy (e.g. "242.11")
const MaxLevel = 5

// Category is a single taxonomy entry as presented to the model
type Category struct {
	Code  string `json:"code" yaml:"code"`   // Dot-structured SITC code (e.g. "242.1")
	Label string `json:"label" yaml:"label"` // Human-readable description
}

// Node is a stored taxonomy entry with its position in the tree
type Node struct {
	Category
	Level      int    `json:"level"`                 // 1-5, derived from the code structure
	ParentCode string `json:"parent_code,omitempty"` // Empty at level 1
}

// Example is a labelled training description used as a few-shot hint
type Example struct {
	Text     string   `json:"text"`     // The example trade description
	Category Category `json:"category"` // The code it was classified as
}

// NewNode builds a Node from a code and label, deriving level and parent
func NewNode(code, label string) Node {
	code = NormalizeCode(code)
	return Node{
		Category:   Category{Code: code, Label: strings.TrimSpace(label)},
		Level:      LevelOf(code),
		ParentCode: ParentOf(code),
	}
}

// NormalizeCode trims surrounding whitespace from a code
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// LevelOf derives the hierarchy level from the code structure:
// no dot means one level per digit, one digit after the dot is level 4,
// two digits after the dot is level 5. Any other decimal part is invalid
// and reports 0.
func LevelOf(code string) int {
	base, decimal, found := strings.Cut(code, ".")
	if !found {
		return len(base)
	}
	switch len(decimal) {
	case 1:
		return 4
	case 2:
		return 5
	default:
		return 0
	}
}

// ParentOf returns the code of the immediate ancestor, or "" at level 1
// and for codes with no valid level
func ParentOf(code string) string {
	base, decimal, found := strings.Cut(code, ".")
	switch level := LevelOf(code); {
	case level == 2:
		return code[:1]
	case level == 3:
		return code[:2]
	case !found:
		return ""
	case level == 4:
		return base
	case level == 5:
		return base + "." + decimal[:1]
	default:
		return ""
	}
}

// CleanCode removes the dots from a code
func CleanCode(code string) string {
	return strings.ReplaceAll(code, ".", "")
}

// Depth is the number of digits in a code, which is what max-depth limits compare against
func Depth(code string) int {
	return len(CleanCode(code))
}
