// Package feedprobe checks which well-known feed endpoints a site exposes.
package feedprobe

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/planner"
)

// Probe tests candidate feed paths under a site for reachability. A
// candidate counts as open when a fetch of it succeeds; nothing about the
// response body is inspected.
type Probe struct {
	fetcher planner.Fetcher
	logger  *zap.Logger
}

// New builds a Probe.
func New(fetcher planner.Fetcher, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{fetcher: fetcher, logger: logger}
}

// Open returns the candidate feed URLs that fetched successfully, in
// candidate order. Unreachable candidates are skipped, not errors.
func (p *Probe) Open(ctx context.Context, baseURL string, candidates []string) ([]string, error) {
	base := strings.TrimSuffix(baseURL, "/")
	open := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(candidate, "/") {
			candidate = "/" + candidate
		}
		feedURL := base + candidate
		if _, err := p.fetcher.Fetch(ctx, planner.FetchRequest{URL: feedURL}); err != nil {
			p.logger.Debug("feed candidate unreachable",
				zap.String("url", feedURL),
				zap.Error(err),
			)
			continue
		}
		open = append(open, feedURL)
	}
	return open, nil
}
