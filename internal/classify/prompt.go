package classify

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ppiankov/sitclass/internal/model"
)

// MaxChoices is the number of letters available to label options. Options
// past the 26th are not offered to the model.
const MaxChoices = 26

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// PromptInput is everything one traversal step shows the model
type PromptInput struct {
	Description string
	Language    string           // Optional source language, e.g. "Spanish"
	Options     []model.Category // Children of the current node, ascending by code
	Examples    []model.Example  // Few-shot hints scoped to the current node
	Path        []model.Category // Levels already chosen in this attempt
	Excluded    []string         // Code prefixes to hide from later attempts
	Recent      []model.Result   // Recent results from the same list
}

// Prompt is a rendered multiple-choice question
type Prompt struct {
	Text      string
	Options   []model.Category // The options presented, in letter order
	Choices   map[string]int   // Letter to index into Options
	Truncated int              // Options dropped by the letter cap
	Filtered  bool             // Whether exclusions removed any option
}

// Resolve maps a parsed letter back to the option it labelled
func (p Prompt) Resolve(letter string) (model.Category, bool) {
	i, ok := p.Choices[letter]
	if !ok {
		return model.Category{}, false
	}
	return p.Options[i], true
}

// LastLetter returns the letter of the last presented option
func (p Prompt) LastLetter() string {
	if len(p.Options) == 0 {
		return "A"
	}
	return letters[len(p.Options)-1 : len(p.Options)]
}

// FilterExcluded drops options whose code starts with any excluded prefix.
// If that would drop every option the unfiltered list is returned, so an
// over-eager exclusion set cannot stall a traversal.
func FilterExcluded(options []model.Category, excluded []string) (kept []model.Category, filtered bool) {
	if len(excluded) == 0 {
		return options, false
	}

	for _, opt := range options {
		if hasExcludedPrefix(opt.Code, excluded) {
			continue
		}
		kept = append(kept, opt)
	}

	if len(kept) == 0 {
		return options, false
	}
	return kept, len(kept) != len(options)
}

func hasExcludedPrefix(code string, excluded []string) bool {
	for _, prefix := range excluded {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// BuildPrompt renders the lettered question for one traversal step
func BuildPrompt(in PromptInput) Prompt {
	available, filtered := FilterExcluded(in.Options, in.Excluded)

	p := Prompt{Filtered: filtered, Choices: make(map[string]int)}
	if len(available) > MaxChoices {
		p.Truncated = len(available) - MaxChoices
		available = available[:MaxChoices]
	}
	p.Options = available

	var options strings.Builder
	for i, opt := range available {
		letter := letters[i : i+1]
		fmt.Fprintf(&options, "%s. %s: %s\n", letter, opt.Code, opt.Label)
		p.Choices[letter] = i
	}

	subject := "description"
	if in.Language != "" {
		subject = in.Language + " description"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a trade classification expert. Your task is to classify the following %s into the most appropriate SITC category at the current level:\n\n", subject)
	fmt.Fprintf(&b, "Description to classify: %s\n\n", in.Description)

	if section := recentSection(in.Recent); section != "" {
		b.WriteString(section)
		b.WriteString("\n")
	}

	b.WriteString("Available options:\n")
	b.WriteString(options.String())
	b.WriteString("\n")

	if len(in.Examples) > 0 {
		b.WriteString("Here are some examples of previous classifications:\n")
		for _, ex := range in.Examples {
			fmt.Fprintf(&b, "- '%s' was classified as %s: %s\n", ex.Text, ex.Category.Code, ex.Category.Label)
		}
		b.WriteString("\n")
	}

	if len(in.Path) > 0 {
		b.WriteString("Your classification path so far:\n")
		for i, step := range in.Path {
			fmt.Fprintf(&b, "Level %d: %s: %s\n", i+1, step.Code, step.Label)
		}
		b.WriteString("\n")
	}

	if len(in.Excluded) > 0 {
		b.WriteString("Since some options were previously selected, please choose your next best classification from the remaining options.\n\n")
	}

	b.WriteString("IMPORTANT:\n")
	b.WriteString("1. Items that appear close to each other in the list often have similar classifications, especially in their first two digits.\n")
	fmt.Fprintf(&b, "2. Respond with ONLY a single letter from A-%s.\n", p.LastLetter())
	b.WriteString("Do not include any explanations, colons, periods, or the category description.")

	p.Text = b.String()
	return p
}

func recentSection(recent []model.Result) string {
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent classifications from the same list:\n")
	for _, r := range recent {
		fmt.Fprintf(&b, "- '%s' was classified as %s: %s\n", r.Description, r.Code(), r.Label())
	}
	b.WriteString("\nNote: Items in the same list often have similar classifications, especially in their first two digits.\n")
	return b.String()
}

// BuildArbitrationPrompt asks the model to pick the best of several attempt results
func BuildArbitrationPrompt(description string, candidates []model.Category) Prompt {
	if len(candidates) > MaxChoices {
		candidates = candidates[:MaxChoices]
	}
	p := Prompt{Options: candidates, Choices: make(map[string]int)}

	var b strings.Builder
	b.WriteString("You are a trade classification expert. Given multiple classification attempts for the same description, choose the most appropriate one:\n\n")
	fmt.Fprintf(&b, "Description to classify: %s\n\n", description)
	b.WriteString("Available classifications:\n")
	for i, c := range candidates {
		letter := letters[i : i+1]
		fmt.Fprintf(&b, "%s. %s: %s\n", letter, c.Code, c.Label)
		p.Choices[letter] = i
	}
	fmt.Fprintf(&b, "\nChoose the most appropriate classification. IMPORTANT: Respond with ONLY a single letter from A-%s.\n", p.LastLetter())
	b.WriteString("Do not include any explanations, colons, periods, or the category description.")

	p.Text = b.String()
	return p
}

// ParseResponse reduces a reply to its first letter, upper-cased. Anything
// that is not an ASCII letter is ignored; "" means the reply had none.
func ParseResponse(raw string) string {
	for _, r := range raw {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		return string(unicode.ToUpper(r))
	}
	return ""
}
