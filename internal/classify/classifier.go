// Package classify partitions crawlable URLs by render mode and extracts
// detail-page fields.
//
// The render-mode decision is operational, not forensic: a URL whose content
// cannot be retrieved and parsed through the static path is treated as
// js-required. No script execution is ever attempted.
package classify

import (
	"bytes"
	"context"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/metrics"
	"github.com/smartcrawler/crawlplan/internal/planner"
)

// Config controls classification.
type Config struct {
	// Concurrency bounds the number of pages fetched at once.
	Concurrency int
}

// Classifier fetches candidate pages and records either a static extraction
// or a js-required verdict per URL.
type Classifier struct {
	cfg       Config
	fetcher   planner.Fetcher
	extractor planner.FieldExtractor
	logger    *zap.Logger
}

// New builds a Classifier around the given field extractor.
func New(cfg Config, fetcher planner.Fetcher, extractor planner.FieldExtractor, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Classifier{cfg: cfg, fetcher: fetcher, extractor: extractor, logger: logger}
}

type outcome struct {
	extraction *planner.PageExtraction
	failure    *planner.URLFailure
}

// Classify fetches every URL and partitions the set. Detail pages that fetch
// and parse statically produce a PageExtraction, with sentinel values filled
// in for missing fields. Any fetch or parse failure classifies the URL as
// js-required and records the failure. Pages that are not detail pages
// produce nothing. Both output sequences preserve input order.
func (c *Classifier) Classify(ctx context.Context, urls []string) (*planner.ClassificationResult, error) {
	result := &planner.ClassificationResult{}
	if len(urls) == 0 {
		return result, nil
	}

	workers := c.cfg.Concurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	outcomes := make([]outcome, len(urls))
	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				outcomes[i] = c.classifyURL(ctx, urls[i])
			}
		}()
	}

feed:
	for i := range urls {
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

	for i := range outcomes {
		if outcomes[i].failure != nil {
			result.JSHeavy = append(result.JSHeavy, urls[i])
			result.Failures = append(result.Failures, *outcomes[i].failure)
			continue
		}
		if outcomes[i].extraction != nil {
			result.Extractions = append(result.Extractions, *outcomes[i].extraction)
		}
	}

	c.logger.Info("classification finished",
		zap.Int("urls", len(urls)),
		zap.Int("extractions", len(result.Extractions)),
		zap.Int("js_heavy", len(result.JSHeavy)),
	)
	return result, nil
}

func (c *Classifier) classifyURL(ctx context.Context, url string) outcome {
	response, err := c.fetcher.Fetch(ctx, planner.FetchRequest{URL: url})
	if err != nil {
		metrics.ObserveClassification(string(planner.RenderModeJS))
		c.logger.Debug("page classified js-required",
			zap.String("url", url),
			zap.Error(err),
		)
		return outcome{failure: &planner.URLFailure{URL: url, Reason: err.Error()}}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(response.Body))
	if err != nil {
		parseErr := &planner.ParseError{URL: url, Err: err}
		metrics.ObserveClassification(string(planner.RenderModeJS))
		c.logger.Debug("page classified js-required",
			zap.String("url", url),
			zap.Error(parseErr),
		)
		return outcome{failure: &planner.URLFailure{URL: url, Reason: parseErr.Error()}}
	}

	metrics.ObserveClassification(string(planner.RenderModeStatic))
	if !c.extractor.IsDetailPage(url) {
		return outcome{}
	}

	title, description := c.extractor.Fields(doc)
	if title == "" {
		title = planner.NoTitle
	}
	if description == "" {
		description = planner.NoDescription
	}
	return outcome{extraction: &planner.PageExtraction{
		SourceURL:   url,
		Mode:        planner.RenderModeStatic,
		Title:       title,
		Description: description,
	}}
}
