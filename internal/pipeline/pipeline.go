// Package pipeline wires the taxonomy store, the model provider and the
// classifier together and moves descriptions from input files to outputs.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/sitclass/internal/cache"
	"github.com/ppiankov/sitclass/internal/classify"
	"github.com/ppiankov/sitclass/internal/llm"
	"github.com/ppiankov/sitclass/internal/model"
	"github.com/ppiankov/sitclass/internal/taxonomy"
	"github.com/ppiankov/sitclass/internal/worker"
)

// Pipeline orchestrates classification of single descriptions and files
type Pipeline struct {
	classifier *classify.Classifier
	renderer   *Renderer
	config     *model.Config
	logger     *zap.Logger
	closers    []io.Closer

	// Progress, when set, receives one line per classified description
	Progress io.Writer
}

// New opens the taxonomy store and builds the provider stack described by cfg
func New(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := taxonomy.Open(cfg.Taxonomy.DBPath)
	if err != nil {
		return nil, err
	}

	provider, err := NewProvider(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	p, err := Assemble(cfg, store, provider, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	p.closers = append(p.closers, store)
	return p, nil
}

// NewProvider builds the configured provider wrapped in rate limiting and,
// when enabled, reply caching. Cache hits skip the limiter.
func NewProvider(cfg *model.Config, logger *zap.Logger) (llm.Provider, error) {
	llmConfig := llm.ConfigFromModel(cfg.LLM)
	base, err := llm.NewProvider(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	var provider llm.Provider = llm.NewRateLimitedProvider(base, limiter)

	if cfg.Cache.Enabled {
		c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		provider = llm.NewCachedProvider(provider, c, cfg.Cache.DiskTTL)
		logger.Debug("Reply cache enabled", zap.String("dir", cfg.Cache.Dir))
	}

	logger.Debug("Provider ready",
		zap.String("provider", base.Name()),
		zap.String("model", cfg.LLM.Model),
		zap.Float64("rps", cfg.RateLimiting.RequestsPerSecond))
	return provider, nil
}

// Assemble builds a Pipeline over an existing taxonomy and model
func Assemble(cfg *model.Config, tax classify.Taxonomy, completer classify.Completer, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer, err := NewRenderer(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		classifier: classify.New(tax, completer, classify.OptionsFromConfig(cfg), logger),
		renderer:   renderer,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Close releases the taxonomy store
func (p *Pipeline) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ClassifyOne classifies a single description with no surrounding context
func (p *Pipeline) ClassifyOne(ctx context.Context, description string) model.Result {
	return p.classifier.Classify(ctx, description, nil)
}

// ClassifyAll classifies descriptions in order, sharing recent context
func (p *Pipeline) ClassifyAll(ctx context.Context, descriptions []string) ([]model.Result, error) {
	coord := classify.NewCoordinator(p.classifier, p.config.Classifier.ContextWindow, p.config.Classifier.BatchSize, p.logger)
	total := len(descriptions)
	coord.OnResult = func(i int, r model.Result) {
		if p.Progress != nil {
			_, _ = fmt.Fprintf(p.Progress, "  [%d/%d] %s → %s %s\n", i+1, total, r.Description, r.Code(), r.Label())
		}
	}
	return coord.ProcessBatch(ctx, descriptions)
}

// ProcessFile classifies every description in the input file and writes the
// results next to it, or into outDir when given
func (p *Pipeline) ProcessFile(ctx context.Context, in, outDir string) (model.FileSummary, error) {
	start := time.Now()
	log := p.logger.With(zap.String("input", in))

	src, err := ReadSource(in)
	if err != nil {
		return model.FileSummary{Input: in}, err
	}
	log.Info("Processing file", zap.Int("descriptions", len(src.Descriptions)))

	results, err := p.ClassifyAll(ctx, src.Descriptions)
	if err != nil {
		return model.FileSummary{Input: in, Total: len(results)}, fmt.Errorf("classify %s: %w", in, err)
	}

	out := OutputPath(in, outDir, p.renderer.Format())
	if err := p.renderer.RenderFile(out, src, results); err != nil {
		return model.FileSummary{Input: in, Total: len(results)}, fmt.Errorf("render %s: %w", out, err)
	}

	summary := model.FileSummary{
		Input:    in,
		Output:   out,
		Total:    len(results),
		Duration: time.Since(start),
	}
	for _, r := range results {
		if r.Category.IsUnclassified() {
			summary.Unclassified++
		}
		if r.Arbitrated {
			summary.Arbitrated++
		}
	}

	log.Info("File complete",
		zap.String("output", out),
		zap.Int("total", summary.Total),
		zap.Int("unclassified", summary.Unclassified),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// ForDir adapts the pipeline to the worker's file processor, writing into outDir
func (p *Pipeline) ForDir(outDir string) worker.FileProcessor {
	return dirProcessor{pipeline: p, outDir: outDir}
}

type dirProcessor struct {
	pipeline *Pipeline
	outDir   string
}

func (d dirProcessor) ProcessFile(ctx context.Context, path string) (model.FileSummary, error) {
	return d.pipeline.ProcessFile(ctx, path, d.outDir)
}
