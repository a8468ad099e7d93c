// Package collyfetcher implements the planner Fetcher contract using gocolly.
package collyfetcher

import (
	"context"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/smartcrawler/crawlplan/internal/metrics"
	"github.com/smartcrawler/crawlplan/internal/planner"
)

// Config controls collector and retry behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	MaxBodyBytes int
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "SmartCrawler/1.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 2 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 5 << 20
	}
	return c
}

// Fetcher implements planner.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector

	// sleep is replaced in tests to observe backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg.withDefaults(),
		baseCollector: c,
		sleep:         sleepWithContext,
	}
}

// Fetch executes an HTTP GET with bounded retries. Transport failures and
// non-2xx statuses are retried up to MaxAttempts total attempts; the wait
// before attempt k doubles from BackoffBase and is clamped to
// [BackoffMin, BackoffMax]. Exhaustion surfaces a planner.FetchError
// wrapping the last cause.
func (f *Fetcher) Fetch(ctx context.Context, request planner.FetchRequest) (planner.FetchResponse, error) {
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := f.backoffFor(attempt)
			metrics.ObserveRetryWait(wait)
			if err := f.sleep(ctx, wait); err != nil {
				return planner.FetchResponse{}, err
			}
		}

		attempts++
		response, err := f.fetchOnce(ctx, request)
		if err == nil {
			metrics.ObserveFetchAttempt("success", response.Duration)
			return response, nil
		}
		metrics.ObserveFetchAttempt("failure", 0)

		lastErr = err
		// Per-attempt timeouts also surface context.DeadlineExceeded, so a
		// dead parent context is detected directly rather than through the
		// attempt error.
		if ctx.Err() != nil {
			break
		}
		if !planner.Retriable(err) {
			break
		}
	}

	return planner.FetchResponse{}, &planner.FetchError{
		URL:      request.URL,
		Attempts: attempts,
		LastErr:  lastErr,
	}
}

// backoffFor returns the wait preceding attempt k, for k >= 2.
func (f *Fetcher) backoffFor(attempt int) time.Duration {
	wait := time.Duration(float64(f.cfg.BackoffBase) * math.Pow(2, float64(attempt-2)))
	if wait < f.cfg.BackoffMin {
		wait = f.cfg.BackoffMin
	}
	if wait > f.cfg.BackoffMax {
		wait = f.cfg.BackoffMax
	}
	return wait
}

func (f *Fetcher) fetchOnce(ctx context.Context, request planner.FetchRequest) (planner.FetchResponse, error) {
	var (
		result   planner.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return planner.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request planner.FetchRequest,
	start time.Time,
	result *planner.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	// Callbacks capture per-attempt state, so every attempt gets its own
	// clone. The HTTP backend is shared across clones.
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	// Retries and overlapping plan runs refetch the same URL; the shared
	// visited-URL store must not reject those as revisits.
	collector.AllowURLRevisit = true
	// Robots compliance lives in the policy layer, and robots.txt itself
	// must be fetchable.
	collector.IgnoreRobotsTxt = true
	// Route non-2xx responses through OnResponse so the status code is
	// preserved instead of Colly's synthesized status-text error.
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	collector.SetRequestTimeout(f.cfg.Timeout)

	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request planner.FetchRequest,
	start time.Time,
	result *planner.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		url := r.Request.URL.String()
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			*fetchErr = &planner.StatusError{URL: url, StatusCode: r.StatusCode}
			return
		}
		*result = planner.FetchResponse{
			URL:        url,
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		url := request.URL
		if r != nil && r.Request != nil {
			url = r.Request.URL.String()
		}
		*fetchErr = &planner.TransportError{URL: url, Err: err}
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &planner.TransportError{URL: url, Err: ctx.Err()}
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return &planner.TransportError{URL: url, Err: err}
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(request planner.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
