package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/smartcrawler/crawlplan/internal/metrics"
	"github.com/smartcrawler/crawlplan/internal/planner"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	if f.cfg.UserAgent != "SmartCrawler/1.0" {
		t.Fatalf("expected default user agent, got %q", f.cfg.UserAgent)
	}
	if f.cfg.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", f.cfg.Timeout)
	}
	if f.cfg.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.cfg.MaxAttempts)
	}
	if f.cfg.BackoffBase != time.Second || f.cfg.BackoffMin != 2*time.Second || f.cfg.BackoffMax != 10*time.Second {
		t.Fatalf("unexpected backoff bounds: %v/%v/%v", f.cfg.BackoffBase, f.cfg.BackoffMin, f.cfg.BackoffMax)
	}
}

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second, MaxBodyBytes: 1024})
	req := planner.FetchRequest{URL: "https://example.com"}

	collector := f.buildCollector(req, time.Unix(0, 0), &planner.FetchResponse{}, new(error))
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.IgnoreRobotsTxt {
		t.Fatal("expected robots txt handling to be left to the policy layer")
	}
	if !collector.AllowURLRevisit {
		t.Fatal("expected revisits to be allowed for retries")
	}
	if !collector.ParseHTTPErrorResponse {
		t.Fatal("expected non-2xx responses to be parsed")
	}
	if collector.MaxBodySize != 1024 {
		t.Fatalf("expected body cap 1024, got %d", collector.MaxBodySize)
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := planner.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	start := time.Unix(0, 0)
	var result planner.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("X-Trace") != "yes" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	if fetchErr != nil {
		t.Fatalf("unexpected fetch error: %v", fetchErr)
	}
	if result.StatusCode != http.StatusOK || string(result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("X-Resp") != "ok" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}
}

func TestConfigureCollectorHooksStatusError(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var result planner.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, planner.FetchRequest{URL: "https://example.com"}, time.Unix(0, 0), &result, &fetchErr)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusNotFound,
		Body:       []byte("not here"),
		Headers:    &http.Header{},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/missing"),
		},
	})

	var statusErr *planner.StatusError
	if !errors.As(fetchErr, &statusErr) {
		t.Fatalf("expected StatusError, got %v", fetchErr)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", statusErr.StatusCode)
	}
	if statusErr.URL != "https://example.com/missing" {
		t.Fatalf("unexpected URL attribution: %q", statusErr.URL)
	}
	if result.StatusCode != 0 {
		t.Fatalf("expected result to stay empty on status error, got %+v", result)
	}
}

func TestConfigureCollectorHooksTransportError(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var result planner.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, planner.FetchRequest{URL: "https://example.com"}, time.Unix(0, 0), &result, &fetchErr)

	cause := errors.New("connection reset")
	hooks.onError(nil, cause)

	var transportErr *planner.TransportError
	if !errors.As(fetchErr, &transportErr) {
		t.Fatalf("expected TransportError, got %v", fetchErr)
	}
	if transportErr.URL != "https://example.com" {
		t.Fatalf("expected request URL attribution, got %q", transportErr.URL)
	}
	if !errors.Is(fetchErr, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", fetchErr)
	}
}

func TestBackoffSchedule(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	want := map[int]time.Duration{
		2: 2 * time.Second,
		3: 2 * time.Second,
		4: 4 * time.Second,
		5: 8 * time.Second,
		6: 10 * time.Second,
		7: 10 * time.Second,
	}
	for attempt, expected := range want {
		if got := f.backoffFor(attempt); got != expected {
			t.Fatalf("backoffFor(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestFetchRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	metrics.Init()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	rec := &sleepRecorder{}
	f.sleep = rec.sleep

	resp, err := f.Fetch(context.Background(), planner.FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "payload" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if resp.Duration <= 0 {
		t.Fatalf("expected positive duration, got %v", resp.Duration)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}

	expected := []time.Duration{2 * time.Second, 2 * time.Second}
	if len(rec.waits) != len(expected) {
		t.Fatalf("expected %d waits, got %v", len(expected), rec.waits)
	}
	for i, wait := range rec.waits {
		if wait != expected[i] {
			t.Fatalf("wait %d = %v, want %v", i, wait, expected[i])
		}
	}
}

func TestFetchExhaustsAttemptsOnStatusError(t *testing.T) {
	t.Parallel()
	metrics.Init()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	rec := &sleepRecorder{}
	f.sleep = rec.sleep

	_, err := f.Fetch(context.Background(), planner.FetchRequest{URL: srv.URL})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}

	var fetchErr *planner.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", fetchErr.Attempts)
	}
	if fetchErr.URL != srv.URL {
		t.Fatalf("expected URL attribution %q, got %q", srv.URL, fetchErr.URL)
	}

	var statusErr *planner.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError cause, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 cause, got %d", statusErr.StatusCode)
	}

	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
	if len(rec.waits) != 2 {
		t.Fatalf("expected 2 waits, got %v", rec.waits)
	}
}

func TestFetchExhaustsAttemptsOnTransportError(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	target := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second})
	rec := &sleepRecorder{}
	f.sleep = rec.sleep

	_, err := f.Fetch(context.Background(), planner.FetchRequest{URL: target})
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}

	var fetchErr *planner.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", fetchErr.Attempts)
	}

	var transportErr *planner.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError cause, got %v", err)
	}
}

func TestFetchSendsUserAgentAndHeaders(t *testing.T) {
	t.Parallel()
	metrics.Init()

	var mu sync.Mutex
	var agent, probe string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agent = r.Header.Get("User-Agent")
		probe = r.Header.Get("X-Probe")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "planner-test-agent", Timeout: 2 * time.Second})
	f.sleep = (&sleepRecorder{}).sleep

	_, err := f.Fetch(context.Background(), planner.FetchRequest{
		URL:     srv.URL,
		Headers: http.Header{"X-Probe": {"1"}},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if agent != "planner-test-agent" {
		t.Fatalf("expected custom user agent, got %q", agent)
	}
	if probe != "1" {
		t.Fatalf("expected probe header, got %q", probe)
	}
}

func TestFetchContextCanceled(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second})
	rec := &sleepRecorder{}
	f.sleep = rec.sleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, planner.FetchRequest{URL: srv.URL})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}

	var fetchErr *planner.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.Attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", fetchErr.Attempts)
	}
	if len(rec.waits) != 0 {
		t.Fatalf("expected no backoff waits, got %v", rec.waits)
	}
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(planner.FetchRequest{}, collyReq)
	if len(*collyReq.Headers) != 0 {
		t.Fatalf("expected no headers to be copied, got %+v", *collyReq.Headers)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
