// Package robots provides read-once robots.txt policy evaluation.
//
// The policy fetches {baseURL}/robots.txt exactly once at construction and
// answers every later query from memory. A failed fetch is fatal to the
// caller; crawl planning never proceeds without robots rules.
package robots

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/planner"
)

// Policy answers robots-exclusion queries from a single robots.txt fetch.
// The rule set is immutable after construction and safe for concurrent
// readers.
type Policy struct {
	ruleSet planner.RobotsRuleSet
	data    *robotstxt.RobotsData
}

// NewPolicy fetches {baseURL}/robots.txt once and builds the policy.
func NewPolicy(ctx context.Context, fetcher planner.Fetcher, baseURL string, logger *zap.Logger) (*Policy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	robotsURL := strings.TrimSuffix(baseURL, "/") + "/robots.txt"
	response, err := fetcher.Fetch(ctx, planner.FetchRequest{URL: robotsURL})
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}

	data, err := robotstxt.FromBytes(response.Body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	ruleSet := ParseRuleSet(string(response.Body))
	logger.Info("robots policy initialized",
		zap.String("url", robotsURL),
		zap.Int("allowed_rules", len(ruleSet.Allowed)),
		zap.Int("disallowed_rules", len(ruleSet.Disallowed)),
		zap.Int("sitemap_links", len(ruleSet.SitemapLinks)),
	)

	return &Policy{ruleSet: ruleSet, data: data}, nil
}

// ParseRuleSet extracts the reportable directives from robots.txt text.
// Directive prefixes match case-insensitively after trimming the line; the
// value is everything after the first colon, trimmed. Unknown lines are
// ignored. Repeated crawl-delay directives overwrite earlier ones; the list
// directives accumulate in encounter order with duplicates preserved.
func ParseRuleSet(text string) planner.RobotsRuleSet {
	var ruleSet planner.RobotsRuleSet
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "allow:"):
			ruleSet.Allowed = append(ruleSet.Allowed, directiveValue(line))
		case strings.HasPrefix(lower, "disallow:"):
			ruleSet.Disallowed = append(ruleSet.Disallowed, directiveValue(line))
		case strings.HasPrefix(lower, "crawl-delay:"):
			value := directiveValue(line)
			ruleSet.CrawlDelay = &value
		case strings.HasPrefix(lower, "sitemap:"):
			ruleSet.SitemapLinks = append(ruleSet.SitemapLinks, directiveValue(line))
		}
	}
	return ruleSet
}

func directiveValue(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}

// CanFetch reports whether the agent may fetch rawURL under the parsed
// rules. Unparseable URLs are denied.
func (p *Policy) CanFetch(agent, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.data.FindGroup(agent).Test(path)
}

// SummaryText renders the rule set as the plain-text report artifact.
func (p *Policy) SummaryText() string {
	return p.ruleSet.Summary()
}

// RuleSet returns a copy of the parsed directives.
func (p *Policy) RuleSet() planner.RobotsRuleSet {
	ruleSet := p.ruleSet
	ruleSet.Allowed = append([]string(nil), p.ruleSet.Allowed...)
	ruleSet.Disallowed = append([]string(nil), p.ruleSet.Disallowed...)
	ruleSet.SitemapLinks = append([]string(nil), p.ruleSet.SitemapLinks...)
	if p.ruleSet.CrawlDelay != nil {
		delay := *p.ruleSet.CrawlDelay
		ruleSet.CrawlDelay = &delay
	}
	return ruleSet
}
