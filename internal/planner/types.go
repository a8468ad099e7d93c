package planner

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RenderMode labels how a page's content can be extracted.
type RenderMode string

// Render modes recorded in classification results.
const (
	RenderModeStatic RenderMode = "static"
	RenderModeJS     RenderMode = "js-required"
)

// Sentinel field values recorded when a detail page lacks the expected markup.
const (
	NoTitle       = "No title"
	NoDescription = "No description"
)

// RobotsRuleSet is the structured summary of a site's robots.txt directives.
// Allowed, Disallowed, and SitemapLinks accumulate in encounter order,
// duplicates included. CrawlDelay holds the raw value of the last crawl-delay
// directive seen, or nil when the file never declares one.
type RobotsRuleSet struct {
	Allowed      []string `json:"allowed"`
	Disallowed   []string `json:"disallowed"`
	CrawlDelay   *string  `json:"crawl_delay,omitempty"`
	SitemapLinks []string `json:"sitemap_links"`
}

// Summary renders the rule set as the plain-text robots report: four labeled
// lines in stable order. An absent crawl-delay renders as "None".
func (r RobotsRuleSet) Summary() string {
	crawlDelay := "None"
	if r.CrawlDelay != nil {
		crawlDelay = *r.CrawlDelay
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Allowed paths: %v\n", r.Allowed)
	fmt.Fprintf(&b, "Disallowed paths: %v\n", r.Disallowed)
	fmt.Fprintf(&b, "Crawl-delay: %s\n", crawlDelay)
	fmt.Fprintf(&b, "Sitemap links: %v\n", r.SitemapLinks)
	return b.String()
}

// DateBucket identifies one dated sitemap shard by (year, month, week).
type DateBucket struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Week  int `json:"week"`
}

// QueryURL returns the shard URL for the bucket under the site base URL.
func (b DateBucket) QueryURL(base string) string {
	return fmt.Sprintf("%s/sitemap.xml?year=%d&month=%d&week=%d",
		strings.TrimSuffix(base, "/"), b.Year, b.Month, b.Week)
}

// BucketRange bounds an enumeration window. The struct is comparable and
// doubles as the cache key for memoized results: two ranges are the same key
// exactly when all six fields match.
type BucketRange struct {
	StartYear  int `json:"start_year"`
	StartMonth int `json:"start_month"`
	StartWeek  int `json:"start_week"`
	EndYear    int `json:"end_year"`
	EndMonth   int `json:"end_month"`
	EndWeek    int `json:"end_week"`
}

// Validate checks the field bounds. An end before the start is not an error;
// such a range simply expands to no buckets.
func (r BucketRange) Validate() error {
	if r.StartYear < 1 || r.EndYear < 1 {
		return fmt.Errorf("years must be positive, got start=%d end=%d", r.StartYear, r.EndYear)
	}
	if r.StartMonth < 1 || r.StartMonth > 12 {
		return fmt.Errorf("start month must be in 1..12, got %d", r.StartMonth)
	}
	if r.EndMonth < 1 || r.EndMonth > 12 {
		return fmt.Errorf("end month must be in 1..12, got %d", r.EndMonth)
	}
	if r.StartWeek < 1 || r.StartWeek > 4 {
		return fmt.Errorf("start week must be in 1..4, got %d", r.StartWeek)
	}
	if r.EndWeek < 1 || r.EndWeek > 4 {
		return fmt.Errorf("end week must be in 1..4, got %d", r.EndWeek)
	}
	return nil
}

// Buckets expands the range into shard coordinates in chronological order.
// Months are clipped to the range bounds only on the boundary years. Weeks
// always run 1 through 4; the end week applies only inside the final month of
// the final year. The start week never narrows the expansion, it only
// participates in range identity.
func (r BucketRange) Buckets() []DateBucket {
	var buckets []DateBucket
	for year := r.StartYear; year <= r.EndYear; year++ {
		startMonth := 1
		if year == r.StartYear {
			startMonth = r.StartMonth
		}
		endMonth := 12
		if year == r.EndYear {
			endMonth = r.EndMonth
		}
		for month := startMonth; month <= endMonth; month++ {
			for week := 1; week <= 4; week++ {
				if year == r.EndYear && month == r.EndMonth && week > r.EndWeek {
					break
				}
				buckets = append(buckets, DateBucket{Year: year, Month: month, Week: week})
			}
		}
	}
	return buckets
}

// SitemapEntry records the outcome for one sitemap shard. Allowed is the
// subset of Discovered that robots policy permits, order preserved. A shard
// whose fetch or parse failed carries zero URLs and a FailureReason.
type SitemapEntry struct {
	Bucket        DateBucket `json:"bucket"`
	BucketURL     string     `json:"bucket_url"`
	Discovered    []string   `json:"discovered"`
	Allowed       []string   `json:"allowed"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

// CrawlRangeResult aggregates shard outcomes for one enumeration window.
// Entries are in chronological bucket order.
type CrawlRangeResult struct {
	Range           BucketRange    `json:"range"`
	Entries         []SitemapEntry `json:"entries"`
	TotalDiscovered int            `json:"total_discovered"`
	TotalAllowed    int            `json:"total_allowed"`
}

// Entry returns the entry whose shard URL matches bucketURL.
func (r *CrawlRangeResult) Entry(bucketURL string) (SitemapEntry, bool) {
	for i := range r.Entries {
		if r.Entries[i].BucketURL == bucketURL {
			return r.Entries[i], true
		}
	}
	return SitemapEntry{}, false
}

// AllowedURLs flattens the allowed URLs across entries, preserving shard
// order and per-shard order.
func (r *CrawlRangeResult) AllowedURLs() []string {
	urls := make([]string, 0, r.TotalAllowed)
	for i := range r.Entries {
		urls = append(urls, r.Entries[i].Allowed...)
	}
	return urls
}

// CrawlabilityScore is the percentage of discovered URLs that robots policy
// allows. A window that discovered nothing scores zero.
func (r *CrawlRangeResult) CrawlabilityScore() float64 {
	if r == nil || r.TotalDiscovered == 0 {
		return 0
	}
	return float64(r.TotalAllowed) / float64(r.TotalDiscovered) * 100
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// PageExtraction holds the fields pulled from a statically renderable detail
// page. Title and Description fall back to the NoTitle and NoDescription
// sentinels when the page lacks the expected markup.
type PageExtraction struct {
	SourceURL   string     `json:"source_url"`
	Mode        RenderMode `json:"mode"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

// URLFailure attributes a classification failure to the URL that caused it.
type URLFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// ClassificationResult partitions candidate URLs by render mode. JSHeavy
// preserves input order; every JSHeavy URL has a matching Failures entry
// naming the cause.
type ClassificationResult struct {
	Extractions []PageExtraction `json:"extractions"`
	JSHeavy     []string         `json:"js_heavy"`
	Failures    []URLFailure     `json:"failures"`
}

// PlanReport is the full artifact produced by one planning run.
type PlanReport struct {
	RunID          string                `json:"run_id"`
	Site           string                `json:"site"`
	Range          BucketRange           `json:"range"`
	Result         *CrawlRangeResult     `json:"result"`
	Crawlability   float64               `json:"crawlability_score"`
	Classification *ClassificationResult `json:"classification"`
	OpenFeeds      []string              `json:"open_feeds"`
	GeneratedAt    time.Time             `json:"generated_at"`
}
