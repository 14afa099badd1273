// Package classify walks the SITC tree with an LLM choosing one child per
// level, repeats the walk to explore alternative branches, and arbitrates
// between the attempts.
package classify

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/sitclass/internal/llm"
	"github.com/ppiankov/sitclass/internal/model"
)

// Taxonomy is the read-only code tree the classifier descends
type Taxonomy interface {
	Children(ctx context.Context, level int, parent string) ([]model.Category, error)
	Examples(ctx context.Context, level int, parent string, limit int) ([]model.Example, error)
	IsTerminal(ctx context.Context, code string) (bool, error)
}

// Completer is the single-turn model call the classifier needs
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Options tunes a Classifier. Zero fields take the defaults.
type Options struct {
	Attempts      int
	MaxDepth      int
	MaxIterations int
	MaxExamples   int
	Temperature   float64
	Model         string // Overrides the provider's configured model
	Language      string // Source language named in prompts
}

// DefaultOptions returns three attempts to depth four
func DefaultOptions() Options {
	return Options{
		Attempts:      3,
		MaxDepth:      4,
		MaxIterations: 10,
		MaxExamples:   5,
	}
}

// OptionsFromConfig converts the classifier section of the run configuration
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Attempts:      cfg.Classifier.Attempts,
		MaxDepth:      cfg.Classifier.MaxDepth,
		MaxIterations: cfg.Classifier.MaxIterations,
		MaxExamples:   cfg.Classifier.MaxExamples,
		Temperature:   cfg.LLM.Temperature,
		Model:         cfg.LLM.Model,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Attempts <= 0 {
		o.Attempts = d.Attempts
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxDepth > model.MaxLevel {
		o.MaxDepth = model.MaxLevel
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.MaxExamples <= 0 {
		o.MaxExamples = d.MaxExamples
	}
	return o
}

// Classifier assigns SITC codes to free-text descriptions
type Classifier struct {
	taxonomy Taxonomy
	model    Completer
	opts     Options
	logger   *zap.Logger
}

// New creates a Classifier. A nil logger discards diagnostics.
func New(taxonomy Taxonomy, completer Completer, opts Options, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		taxonomy: taxonomy,
		model:    completer,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Options returns the effective options
func (c *Classifier) Options() Options {
	return c.opts
}

// exclusions tracks what later attempts must steer away from
type exclusions struct {
	firstPath map[string]struct{} // Every code attempt 0 selected
	terminals map[string]struct{} // Leaves reached above max depth by any attempt
}

func newExclusions() *exclusions {
	return &exclusions{
		firstPath: make(map[string]struct{}),
		terminals: make(map[string]struct{}),
	}
}

// prefixes returns the union of both sets in a stable order
func (e *exclusions) prefixes() []string {
	out := make([]string, 0, len(e.firstPath)+len(e.terminals))
	for code := range e.firstPath {
		out = append(out, code)
	}
	for code := range e.terminals {
		if _, dup := e.firstPath[code]; !dup {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// Classify runs the configured number of attempts for one description and
// returns a single result. It never fails: when no attempt selects anything
// the result carries the unclassifiable sentinel.
func (c *Classifier) Classify(ctx context.Context, description string, recent []model.Result) model.Result {
	log := c.logger.With(zap.String("description", description))
	log.Debug("Classifying", zap.Int("recent", len(recent)))

	excl := newExclusions()
	result := model.Result{Description: description}

	var candidates []model.Category
	for n := 0; n < c.opts.Attempts; n++ {
		attempt := c.traverse(ctx, log, description, n, excl, recent)
		result.Attempts = append(result.Attempts, attempt)

		if attempt.Err != nil {
			log.Warn("Attempt aborted", zap.Int("attempt", n+1), zap.Error(attempt.Err))
			continue
		}
		deepest, ok := attempt.Deepest()
		if !ok {
			log.Debug("Attempt failed", zap.Int("attempt", n+1), zap.String("stop", string(attempt.Stop)))
			continue
		}
		log.Debug("Attempt finished",
			zap.Int("attempt", n+1),
			zap.String("code", deepest.Code),
			zap.String("label", deepest.Label),
			zap.String("stop", string(attempt.Stop)))
		candidates = append(candidates, deepest)
	}

	switch distinct := distinctByCode(candidates); {
	case len(distinct) == 0:
		result.Category = model.Unclassified()
	case len(distinct) == 1:
		result.Category = distinct[0]
	default:
		result.Category = c.arbitrate(ctx, log, description, distinct)
		result.Arbitrated = true
	}

	log.Info("Classified",
		zap.String("code", result.Code()),
		zap.String("label", result.Label()),
		zap.Bool("arbitrated", result.Arbitrated))
	return result
}

// traverse performs one top-down walk. Attempt 0 records its path for
// exclusion; every attempt records shallow leaves it lands on.
func (c *Classifier) traverse(ctx context.Context, log *zap.Logger, description string, n int, excl *exclusions, recent []model.Result) model.Attempt {
	attempt := model.Attempt{Number: n}
	level := 1

	for iteration := 0; ; iteration++ {
		if iteration >= c.opts.MaxIterations {
			attempt.Stop = model.StopIterationLimit
			return attempt
		}

		var excluded []string
		if n > 0 {
			excluded = excl.prefixes()
		}

		out := c.step(ctx, log, stepInput{
			description: description,
			level:       level,
			path:        attempt.Path,
			excluded:    excluded,
			recent:      recent,
		})
		if !out.advanced {
			attempt.Stop = out.stop
			if out.err != nil {
				attempt.Err = out.err
				attempt.Error = out.err.Error()
			}
			return attempt
		}

		selected := out.choice
		if n == 0 {
			excl.firstPath[selected.Code] = struct{}{}
		}
		attempt.Path = append(attempt.Path, selected)

		terminal, err := c.taxonomy.IsTerminal(ctx, selected.Code)
		if err != nil {
			attempt.Stop = model.StopError
			attempt.Err = err
			attempt.Error = err.Error()
			return attempt
		}
		if terminal && model.Depth(selected.Code) < c.opts.MaxDepth {
			excl.terminals[selected.Code] = struct{}{}
			log.Debug("Found terminal code below max depth", zap.String("code", selected.Code))
		}

		if level >= c.opts.MaxDepth {
			attempt.Stop = model.StopMaxDepth
			return attempt
		}
		level++
	}
}

type stepInput struct {
	description string
	level       int
	path        []model.Category
	excluded    []string
	recent      []model.Result
}

// stepOutcome is either an advance to choice or a stop with a reason
type stepOutcome struct {
	advanced bool
	choice   model.Category
	stop     model.StopReason
	err      error
}

func stopped(reason model.StopReason) stepOutcome {
	return stepOutcome{stop: reason}
}

func failed(err error) stepOutcome {
	return stepOutcome{stop: model.StopError, err: err}
}

// step asks the model to choose one child of the current node
func (c *Classifier) step(ctx context.Context, log *zap.Logger, in stepInput) stepOutcome {
	var parent string
	if len(in.path) > 0 {
		parent = in.path[len(in.path)-1].Code
	}

	options, err := c.taxonomy.Children(ctx, in.level, parent)
	if err != nil {
		return failed(err)
	}
	if len(options) == 0 {
		return stopped(model.StopNoOptions)
	}

	examples, err := c.taxonomy.Examples(ctx, in.level, parent, c.opts.MaxExamples)
	if err != nil {
		return failed(err)
	}

	prompt := BuildPrompt(PromptInput{
		Description: in.description,
		Language:    c.opts.Language,
		Options:     options,
		Examples:    examples,
		Path:        in.path,
		Excluded:    in.excluded,
		Recent:      in.recent,
	})
	if prompt.Truncated > 0 {
		log.Warn("Option list truncated to letter range",
			zap.String("parent", parent),
			zap.Int("level", in.level),
			zap.Int("dropped", prompt.Truncated))
	}

	resp, err := c.model.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt.Text,
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return failed(err)
	}

	letter := ParseResponse(resp.Text)
	if letter == "" {
		return stopped(model.StopUnparsable)
	}
	choice, ok := prompt.Resolve(letter)
	if !ok {
		log.Debug("Choice outside option range", zap.String("letter", letter), zap.Int("options", len(prompt.Options)))
		return stopped(model.StopInvalidChoice)
	}

	log.Debug("Selected",
		zap.Int("level", in.level),
		zap.String("letter", letter),
		zap.String("code", choice.Code))
	return stepOutcome{advanced: true, choice: choice}
}

// arbitrate asks the model to choose among differing attempt results,
// falling back to the first one when the reply is unusable
func (c *Classifier) arbitrate(ctx context.Context, log *zap.Logger, description string, candidates []model.Category) model.Category {
	prompt := BuildArbitrationPrompt(description, candidates)

	resp, err := c.model.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt.Text,
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		log.Warn("Arbitration call failed, using first attempt", zap.Error(err))
		return candidates[0]
	}

	choice, ok := prompt.Resolve(ParseResponse(resp.Text))
	if !ok {
		log.Debug("Arbitration reply unusable, using first attempt", zap.String("reply", resp.Text))
		return candidates[0]
	}
	return choice
}

// distinctByCode keeps the first occurrence of each code
func distinctByCode(in []model.Category) []model.Category {
	seen := make(map[string]struct{}, len(in))
	var out []model.Category
	for _, c := range in {
		if _, ok := seen[c.Code]; ok {
			continue
		}
		seen[c.Code] = struct{}{}
		out = append(out, c)
	}
	return out
}
