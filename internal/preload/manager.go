// Package preload walks a serializer's field tree against an incoming
// payload, aggregates the referenced identifiers per relation fingerprint,
// executes one batch fetch per fingerprint, and serves individual relation
// resolutions from the resulting cache.
package preload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"relation-preload/internal/observability"
	"relation-preload/internal/schema"
	"relation-preload/internal/source"
)

// DefaultMaxDepth bounds tree recursion over caller-controlled nesting.
const DefaultMaxDepth = 16

// ErrMaxDepthExceeded reports payload nesting beyond the configured bound.
// The pass fails closed: no cache is built and every relation resolves
// individually.
var ErrMaxDepthExceeded = errors.New("payload nesting exceeds preload depth limit")

// Config controls one preload pass.
type Config struct {
	// Enabled gates the whole pass; when false Run returns no manager.
	Enabled bool
	// MaxDepth bounds recursion; zero means DefaultMaxDepth.
	MaxDepth int
	// Logger receives pass diagnostics; nil disables them.
	Logger *slog.Logger
	// Metrics receives batch fetch counts; nil disables them.
	Metrics *observability.PreloadMetrics
}

// pendingFetch accumulates the deduplicated identifier set for one
// fingerprint until the batch fetcher consumes it exactly once.
type pendingFetch struct {
	src  source.Source
	ids  []any
	seen mapset.Set[any]
}

// Manager owns the pending-fetch map and the lookup cache for one
// serializer-tree evaluation. It is bound to the root serializer for the
// duration of the pass and must not be shared across requests.
type Manager struct {
	pending map[string]*pendingFetch
	order   []string
	cache   map[string][]source.Object

	maxDepth int
	logger   *slog.Logger
	metrics  *observability.PreloadMetrics
}

// NewManager creates an empty manager configured by cfg.
func NewManager(cfg Config) *Manager {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Manager{
		pending:  make(map[string]*pendingFetch),
		cache:    make(map[string][]source.Object),
		maxDepth: maxDepth,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Run executes a full preload pass for payload against s and binds the
// resulting cache to s. It returns nil without error when preloading is
// disabled or when collection fails closed on the depth guard; it returns an
// error only when a batch fetch fails, which aborts the request.
func Run(ctx context.Context, cfg Config, s *schema.Serializer, payload any) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	m := NewManager(cfg)
	if err := m.Collect(s, payload, 0); err != nil {
		if errors.Is(err, ErrMaxDepthExceeded) {
			if m.logger != nil {
				m.logger.Warn("preload aborted, falling back to individual fetches",
					slog.String("serializer", s.Name()),
					slog.Int("max_depth", m.maxDepth),
				)
			}
			return nil, nil
		}
		return nil, err
	}
	if err := m.ResolveAll(ctx); err != nil {
		return nil, err
	}
	s.BindCache(m)
	return m, nil
}

// Collect recursively descends the serializer tree and the matching payload
// subtree, registering identifiers per relation fingerprint. data may be a
// single mapping or a sequence of them.
func (m *Manager) Collect(s *schema.Serializer, data any, depth int) error {
	if data == nil {
		return nil
	}
	if depth > m.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrMaxDepthExceeded, depth)
	}

	items, ok := data.([]any)
	if !ok {
		items = []any{data}
	}
	for _, item := range items {
		if err := m.collectItem(s, item, depth); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) collectItem(s *schema.Serializer, item any, depth int) error {
	for _, f := range s.WritableFields() {
		switch f.Classify() {
		case schema.KindSingleRelation, schema.KindManyRelation:
			ids, present := schema.ExtractIdentifiers(f, item)
			if present {
				m.register(f.Source(), ids)
			}
		case schema.KindNestedSingle, schema.KindNestedList:
			sub, ok := f.ValueIn(item)
			if !ok || sub == nil {
				continue
			}
			if err := m.Collect(f.Child(), sub, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// register appends ids to the pending entry for src's fingerprint, creating
// the entry lazily and deduplicating while preserving first-seen order.
func (m *Manager) register(src source.Source, ids []any) {
	fp := Fingerprint(src)
	entry, ok := m.pending[fp]
	if !ok {
		entry = &pendingFetch{src: src, seen: mapset.NewThreadUnsafeSet[any]()}
		m.pending[fp] = entry
		m.order = append(m.order, fp)
	}
	for _, id := range ids {
		if entry.seen.Add(id) {
			entry.ids = append(entry.ids, id)
		}
	}
}

// ResolveAll issues one batch fetch per pending fingerprint with a non-empty
// identifier set and stores the rows as that fingerprint's cache entry.
// Entries with an empty set resolve to an empty list without any fetch. A
// fetch failure aborts the pass with no partial recovery.
func (m *Manager) ResolveAll(ctx context.Context) error {
	for _, fp := range m.order {
		entry := m.pending[fp]
		if len(entry.ids) == 0 {
			m.cache[fp] = []source.Object{}
			continue
		}
		objects, err := entry.src.SelectIn(ctx, entry.ids)
		if err != nil {
			return fmt.Errorf("preload batch fetch failed: %w", err)
		}
		m.cache[fp] = objects
		m.metrics.RecordBatchQuery(ctx, entry.src.Name(), len(entry.ids))
		if m.logger != nil {
			m.logger.Debug("preload batch fetched",
				slog.String("collection", entry.src.Name()),
				slog.Int("identifiers", len(entry.ids)),
				slog.Int("rows", len(objects)),
			)
		}
	}
	// Consumed exactly once; the same fingerprints now live in the cache.
	m.pending = make(map[string]*pendingFetch)
	m.order = nil
	return nil
}

// Find scans the cache entry for fp for an object with the given identifier.
func (m *Manager) Find(fp string, id any) (source.Object, bool) {
	for _, obj := range m.cache[fp] {
		if obj.PrimaryKey() == id {
			return obj, true
		}
	}
	return nil, false
}

// Append records an individually fetched object under fp so later references
// to the same identifier within the pass hit the cache. Appends deduplicate
// by identifier.
func (m *Manager) Append(fp string, obj source.Object) {
	if _, ok := m.Find(fp, obj.PrimaryKey()); ok {
		return
	}
	m.cache[fp] = append(m.cache[fp], obj)
}

// PendingIdentifiers returns the currently aggregated identifier set for
// src's fingerprint, in first-seen order.
func (m *Manager) PendingIdentifiers(src source.Source) []any {
	entry, ok := m.pending[Fingerprint(src)]
	if !ok {
		return nil
	}
	return append([]any(nil), entry.ids...)
}

// PendingCount returns the number of pending fetch entries.
func (m *Manager) PendingCount() int { return len(m.pending) }

// Cached returns the cache entry for fp.
func (m *Manager) Cached(fp string) []source.Object { return m.cache[fp] }
