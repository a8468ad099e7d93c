package planner

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher retrieves a URL, retrying transient failures, and returns the
// final response. Exhausted retries surface as a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RobotsPolicy answers whether an agent may fetch a URL under the loaded
// robots.txt rules.
type RobotsPolicy interface {
	CanFetch(agent, rawURL string) bool
}

// FieldExtractor supplies site-specific extraction rules to the classifier.
// Fields returns empty strings for fields the document does not carry; the
// classifier substitutes the sentinel values.
type FieldExtractor interface {
	IsDetailPage(rawURL string) bool
	Fields(doc *goquery.Document) (title, description string)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
