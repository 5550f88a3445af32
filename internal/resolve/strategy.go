// Package resolve turns relation identifiers into objects. The resolution
// step delegates to a process-wide strategy slot: the direct strategy always
// issues a single-row fetch, while the cache-aware strategy consults the
// nearest-ancestor preload cache first and falls back to a direct fetch on a
// miss, recording the result for the rest of the pass.
//
// The slot is process-wide mutable state with an explicit lifecycle: enable
// at process or test setup, disable at teardown. Enable and disable are
// idempotent. The slot is not thread-isolated; it changes behavior for every
// relation field in the process.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"relation-preload/internal/observability"
	"relation-preload/internal/preload"
	"relation-preload/internal/schema"
	"relation-preload/internal/source"
)

// ErrRelatedNotFound is the field-level failure for an identifier that does
// not resolve to a row. It surfaces as a validation error, not a process
// error.
var ErrRelatedNotFound = errors.New("related object does not exist")

// Strategy resolves one relation field's identifier to an object.
type Strategy interface {
	Resolve(ctx context.Context, f *schema.Field, id any) (source.Object, error)
}

// directStrategy performs the standard single-row fetch.
type directStrategy struct{}

func (directStrategy) Resolve(ctx context.Context, f *schema.Field, id any) (source.Object, error) {
	src := f.Source()
	if src == nil {
		return nil, fmt.Errorf("field %q has no relation target", f.Name())
	}
	prepared, err := src.PrepareIdentifier(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelatedNotFound, err)
	}
	obj, err := src.Get(ctx, prepared)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %v", ErrRelatedNotFound, src.Name(), prepared)
		}
		return nil, err
	}
	return obj, nil
}

// cacheStrategy consults the nearest-ancestor lookup cache before falling
// back to the direct strategy.
type cacheStrategy struct {
	direct  directStrategy
	metrics *observability.PreloadMetrics
}

func (s *cacheStrategy) Resolve(ctx context.Context, f *schema.Field, id any) (source.Object, error) {
	src := f.Source()
	if src == nil || f.Owner() == nil {
		return s.direct.Resolve(ctx, f, id)
	}
	cache := f.Owner().NearestCache()
	if cache == nil {
		// No cache anywhere in the chain: standard resolution, no caching.
		return s.direct.Resolve(ctx, f, id)
	}

	prepared, err := src.PrepareIdentifier(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelatedNotFound, err)
	}
	fp := preload.Fingerprint(src)
	if obj, ok := cache.Find(fp, prepared); ok {
		s.metrics.RecordCacheHit(ctx, src.Name())
		return obj, nil
	}

	s.metrics.RecordCacheMiss(ctx, src.Name())
	obj, err := s.direct.Resolve(ctx, f, prepared)
	if err != nil {
		return nil, err
	}
	cache.Append(fp, obj)
	return obj, nil
}

var (
	slotMu  sync.Mutex
	current Strategy = directStrategy{}
)

// Option configures the cache-aware strategy at enable time.
type Option func(*cacheStrategy)

// WithMetrics attaches metric instruments to cache hits and misses.
func WithMetrics(m *observability.PreloadMetrics) Option {
	return func(s *cacheStrategy) { s.metrics = m }
}

// EnablePreloadLookup installs the cache-aware strategy in the process-wide
// slot. A second enable is a no-op.
func EnablePreloadLookup(opts ...Option) {
	slotMu.Lock()
	defer slotMu.Unlock()
	if _, ok := current.(*cacheStrategy); ok {
		return
	}
	s := &cacheStrategy{}
	for _, opt := range opts {
		opt(s)
	}
	current = s
}

// DisablePreloadLookup restores the direct strategy. Disabling when never
// enabled is a no-op.
func DisablePreloadLookup() {
	slotMu.Lock()
	defer slotMu.Unlock()
	current = directStrategy{}
}

// Resolve delegates to the currently installed strategy.
func Resolve(ctx context.Context, f *schema.Field, id any) (source.Object, error) {
	return currentStrategy().Resolve(ctx, f, id)
}

func currentStrategy() Strategy {
	slotMu.Lock()
	defer slotMu.Unlock()
	return current
}
