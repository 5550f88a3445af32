// Package observability exposes the metric instruments emitted by the
// preload subsystem.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PreloadMetrics holds the instruments for one preload pass pipeline.
type PreloadMetrics struct {
	batchQueries metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	queriesSaved metric.Int64Counter
}

// InitPreloadMetrics initializes the preload metric instruments.
func InitPreloadMetrics() (*PreloadMetrics, error) {
	meter := otel.Meter("relation-preload")

	batchQueries, err := meter.Int64Counter(
		"preload.batch.queries",
		metric.WithDescription("Total number of batch fetches issued by preload passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch query counter: %w", err)
	}

	cacheHits, err := meter.Int64Counter(
		"preload.cache.hits",
		metric.WithDescription("Relation resolutions served from the preload cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hit counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"preload.cache.misses",
		metric.WithDescription("Relation resolutions that fell back to an individual fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache miss counter: %w", err)
	}

	queriesSaved, err := meter.Int64Counter(
		"preload.queries.saved",
		metric.WithDescription("Individual fetches avoided by batching distinct identifiers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queries saved counter: %w", err)
	}

	return &PreloadMetrics{
		batchQueries: batchQueries,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		queriesSaved: queriesSaved,
	}, nil
}

// RecordBatchQuery records one batch fetch requesting identifierCount keys
// from collection.
func (m *PreloadMetrics) RecordBatchQuery(ctx context.Context, collection string, identifierCount int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("collection", collection))
	m.batchQueries.Add(ctx, 1, attrs)
	if identifierCount > 1 {
		m.queriesSaved.Add(ctx, int64(identifierCount-1), attrs)
	}
}

// RecordCacheHit records a resolution served without a query.
func (m *PreloadMetrics) RecordCacheHit(ctx context.Context, collection string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordCacheMiss records a resolution that fell back to a single-row fetch.
func (m *PreloadMetrics) RecordCacheMiss(ctx context.Context, collection string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
}
