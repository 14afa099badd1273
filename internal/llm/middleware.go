package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/sitclass/internal/cache"
)

// CachedProvider serves repeated prompts from a cache. Classification calls
// run at temperature 0, so a stored reply stands in for a fresh one.
// Concurrent misses for the same prompt share a single provider call.
type CachedProvider struct {
	Provider
	cache    cache.Cache
	ttl      time.Duration
	inflight singleflight.Group
}

// NewCachedProvider wraps p with c; a zero ttl uses the cache default
func NewCachedProvider(p Provider, c cache.Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{Provider: p, cache: c, ttl: ttl}
}

// Complete returns a cached reply when one exists, otherwise calls through
// and stores the result. Failed calls are never cached.
func (p *CachedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	key := cache.CompletionKey(p.Name(), req.Model, req.Temperature, req.System, req.Prompt)
	if data, ok := p.cache.Get(key); ok {
		return &CompletionResponse{Text: string(data), Model: req.Model, Cached: true}, nil
	}

	v, err, _ := p.inflight.Do(key, func() (any, error) {
		resp, err := p.Provider.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		// A cache write failure only costs a future call
		_ = p.cache.Set(key, []byte(resp.Text), p.ttl)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := *v.(*CompletionResponse)
	return &resp, nil
}

// Waiter blocks until a call scoped to key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// RateLimitedProvider waits on a limiter before every call
type RateLimitedProvider struct {
	Provider
	limiter Waiter
}

// NewRateLimitedProvider wraps p so every Complete waits on limiter first
func NewRateLimitedProvider(p Provider, limiter Waiter) *RateLimitedProvider {
	return &RateLimitedProvider{Provider: p, limiter: limiter}
}

// Complete waits for rate limit clearance, then calls through
func (p *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := p.limiter.Wait(ctx, p.Name()); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return p.Provider.Complete(ctx, req)
}
