// Package sitemap enumerates dated sitemap shards and collects crawlable URLs.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/metrics"
	"github.com/smartcrawler/crawlplan/internal/planner"
)

// Namespace is the schema URI sitemap <loc> elements must belong to.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Config controls shard enumeration.
type Config struct {
	// BaseURL is the site root the shard query URLs are built from.
	BaseURL string
	// Agent is the robots token used when filtering discovered URLs.
	Agent string
	// Concurrency bounds the number of shards fetched at once.
	Concurrency int
}

// Enumerator resolves every (year, month, week) shard in a range into the
// URLs it lists, filtered through robots policy.
type Enumerator struct {
	cfg     Config
	fetcher planner.Fetcher
	policy  planner.RobotsPolicy
	logger  *zap.Logger
}

// New builds an Enumerator.
func New(cfg Config, fetcher planner.Fetcher, policy planner.RobotsPolicy, logger *zap.Logger) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Agent == "" {
		cfg.Agent = "*"
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Enumerator{cfg: cfg, fetcher: fetcher, policy: policy, logger: logger}
}

// Enumerate fetches every shard in the range and accumulates per-shard
// entries and running totals. A shard that fails to fetch or parse degrades
// to an empty entry carrying the failure reason; it never aborts the rest of
// the window. An empty range returns an empty result without fetching.
func (e *Enumerator) Enumerate(ctx context.Context, r planner.BucketRange) (*planner.CrawlRangeResult, error) {
	buckets := r.Buckets()
	result := &planner.CrawlRangeResult{
		Range:   r,
		Entries: make([]planner.SitemapEntry, len(buckets)),
	}
	if len(buckets) == 0 {
		return result, nil
	}

	workers := e.cfg.Concurrency
	if workers > len(buckets) {
		workers = len(buckets)
	}

	// Workers write disjoint indexes, so entries keep chronological order
	// without a lock.
	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				result.Entries[i] = e.resolveBucket(ctx, buckets[i])
			}
		}()
	}

feed:
	for i := range buckets {
		select {
		case <-ctx.Done():
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range result.Entries {
		result.TotalDiscovered += len(result.Entries[i].Discovered)
		result.TotalAllowed += len(result.Entries[i].Allowed)
	}
	metrics.AddDiscovered(result.TotalDiscovered)
	metrics.AddAllowed(result.TotalAllowed)

	e.logger.Info("range enumerated",
		zap.Int("buckets", len(buckets)),
		zap.Int("discovered", result.TotalDiscovered),
		zap.Int("allowed", result.TotalAllowed),
	)
	return result, nil
}

func (e *Enumerator) resolveBucket(ctx context.Context, bucket planner.DateBucket) planner.SitemapEntry {
	entry := planner.SitemapEntry{
		Bucket:    bucket,
		BucketURL: bucket.QueryURL(e.cfg.BaseURL),
	}

	response, err := e.fetcher.Fetch(ctx, planner.FetchRequest{URL: entry.BucketURL})
	if err != nil {
		entry.FailureReason = err.Error()
		metrics.ObserveBucket("degraded")
		e.logger.Warn("sitemap shard degraded to empty",
			zap.String("bucket_url", entry.BucketURL),
			zap.Error(err),
		)
		return entry
	}

	locs, err := ExtractLocs(response.Body)
	if err != nil {
		parseErr := &planner.ParseError{URL: entry.BucketURL, Err: err}
		entry.FailureReason = parseErr.Error()
		metrics.ObserveBucket("degraded")
		e.logger.Warn("sitemap shard unparseable",
			zap.String("bucket_url", entry.BucketURL),
			zap.Error(parseErr),
		)
		return entry
	}

	entry.Discovered = locs
	for _, u := range locs {
		if e.policy.CanFetch(e.cfg.Agent, u) {
			entry.Allowed = append(entry.Allowed, u)
		}
	}
	metrics.ObserveBucket("ok")
	return entry
}

// ExtractLocs returns the text of every <loc> element in the sitemap
// namespace, in document order and at any nesting depth. A document with
// elements but no matching <loc> yields no URLs and no error; malformed XML
// or a body with no XML element at all is an error.
func ExtractLocs(body []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	var (
		locs       []string
		inLoc      bool
		sawElement bool
		text       strings.Builder
	)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode sitemap xml: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			sawElement = true
			if t.Name.Local == "loc" && t.Name.Space == Namespace {
				inLoc = true
				text.Reset()
			}
		case xml.CharData:
			if inLoc {
				text.Write(t)
			}
		case xml.EndElement:
			if inLoc && t.Name.Local == "loc" && t.Name.Space == Namespace {
				locs = append(locs, strings.TrimSpace(text.String()))
				inLoc = false
			}
		}
	}
	if !sawElement {
		return nil, errors.New("no xml element in body")
	}
	return locs, nil
}
