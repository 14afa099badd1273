package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/sitclass/internal/model"
)

// DefaultContextWindow is how many recent results each prompt carries
const DefaultContextWindow = 3

// DefaultBatchSize is how many descriptions share one recent-context window
const DefaultBatchSize = 10

// RecentContext is a bounded FIFO of the latest results in a list
type RecentContext struct {
	size    int
	entries []model.Result
}

// NewRecentContext creates a window of at most size entries
func NewRecentContext(size int) *RecentContext {
	if size <= 0 {
		size = DefaultContextWindow
	}
	return &RecentContext{size: size}
}

// Push appends r, evicting the oldest entry when full
func (c *RecentContext) Push(r model.Result) {
	// Attempt traces are not needed for prompting
	r.Attempts = nil
	c.entries = append(c.entries, r)
	if len(c.entries) > c.size {
		c.entries = append([]model.Result(nil), c.entries[len(c.entries)-c.size:]...)
	}
}

// Entries returns a copy of the window, oldest first
func (c *RecentContext) Entries() []model.Result {
	out := make([]model.Result, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries held
func (c *RecentContext) Len() int {
	return len(c.entries)
}

// Reset empties the window
func (c *RecentContext) Reset() {
	c.entries = nil
}

// Coordinator classifies an ordered list of descriptions, feeding each
// result into the context of the ones that follow
type Coordinator struct {
	classifier *Classifier
	window     int
	batchSize  int
	logger     *zap.Logger

	// OnResult, when set, is called after each description is classified
	OnResult func(index int, r model.Result)
}

// NewCoordinator creates a Coordinator. The recent-context window resets
// every batchSize descriptions.
func NewCoordinator(c *Classifier, window, batchSize int, logger *zap.Logger) *Coordinator {
	if window <= 0 {
		window = DefaultContextWindow
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		classifier: c,
		window:     window,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// ProcessBatch classifies descriptions strictly in order. On cancellation it
// returns the results completed so far together with the context error.
func (b *Coordinator) ProcessBatch(ctx context.Context, descriptions []string) ([]model.Result, error) {
	results := make([]model.Result, 0, len(descriptions))
	recent := NewRecentContext(b.window)

	for i, desc := range descriptions {
		if i > 0 && i%b.batchSize == 0 {
			b.logger.Debug("Resetting recent context", zap.Int("index", i))
			recent.Reset()
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		r := b.classifier.Classify(ctx, desc, recent.Entries())
		if err := ctx.Err(); err != nil {
			// The in-flight result may be built from aborted calls
			return results, err
		}

		results = append(results, r)
		recent.Push(r)
		if b.OnResult != nil {
			b.OnResult(i, r)
		}
	}
	return results, nil
}
