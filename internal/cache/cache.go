// Package cache memoizes enumeration results for the process lifetime.
package cache

import (
	"context"
	"sync"

	"github.com/smartcrawler/crawlplan/internal/metrics"
	"github.com/smartcrawler/crawlplan/internal/planner"
)

// RangeCache memoizes crawl range results keyed by the exact six range
// parameters. A hit returns the stored result pointer without recomputing,
// accepting staleness for the process lifetime. Entries never expire or
// evict. Failed computations are not stored. Concurrent callers of the same
// key share a single computation.
type RangeCache struct {
	mu      sync.Mutex
	entries map[planner.BucketRange]*entry
}

type entry struct {
	done   chan struct{}
	result *planner.CrawlRangeResult
	err    error
}

// New builds an empty RangeCache.
func New() *RangeCache {
	return &RangeCache{entries: make(map[planner.BucketRange]*entry)}
}

// GetOrCompute returns the memoized result for key, computing and storing it
// on first use. Callers that arrive while a computation for the same key is
// in flight wait for it and share its outcome.
func (c *RangeCache) GetOrCompute(
	ctx context.Context,
	key planner.BucketRange,
	compute func(context.Context) (*planner.CrawlRangeResult, error),
) (*planner.CrawlRangeResult, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		metrics.ObserveCacheLookup("hit")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.done:
		}
		if e.err != nil {
			return nil, e.err
		}
		return e.result, nil
	}

	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()
	metrics.ObserveCacheLookup("miss")

	e.result, e.err = compute(ctx)
	if e.err != nil {
		// A failed computation must not poison the key; the next caller
		// recomputes.
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}
	close(e.done)

	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

// Len reports the number of stored results.
func (c *RangeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
