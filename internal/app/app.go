// Package app initializes and holds the long-lived planner services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/cache"
	"github.com/smartcrawler/crawlplan/internal/classify"
	"github.com/smartcrawler/crawlplan/internal/clock/system"
	"github.com/smartcrawler/crawlplan/internal/config"
	"github.com/smartcrawler/crawlplan/internal/feedprobe"
	collyfetcher "github.com/smartcrawler/crawlplan/internal/fetcher/colly"
	"github.com/smartcrawler/crawlplan/internal/id/uuid"
	"github.com/smartcrawler/crawlplan/internal/metrics"
	"github.com/smartcrawler/crawlplan/internal/planner"
	"github.com/smartcrawler/crawlplan/internal/report"
	"github.com/smartcrawler/crawlplan/internal/robots"
	"github.com/smartcrawler/crawlplan/internal/sitemap"
)

// App holds the shared, long-lived services for the crawl planner. It is
// built once at startup; the robots policy inside it is the process's single
// robots.txt fetch, and the range cache lives exactly as long as the App.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	fetcher    planner.Fetcher
	policy     *robots.Policy
	enumerator *sitemap.Enumerator
	rangeCache *cache.RangeCache
	classifier *classify.Classifier
	probe      *feedprobe.Probe
	sink       *report.FileSystemSink
	clock      planner.Clock
	ids        planner.IDGenerator
}

// New wires every service from configuration. It fails fast when the robots
// policy cannot initialize; planning never runs without robots rules.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Site.UserAgent,
		Timeout:      cfg.HTTP.Timeout(),
		MaxAttempts:  cfg.HTTP.MaxAttempts,
		BackoffBase:  cfg.HTTP.BackoffBase(),
		BackoffMin:   cfg.HTTP.BackoffMin(),
		BackoffMax:   cfg.HTTP.BackoffMax(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})

	policy, err := robots.NewPolicy(ctx, fetcher, cfg.Site.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize robots policy: %w", err)
	}

	extractor, err := newExtractor(cfg.Planner.SiteTemplate)
	if err != nil {
		return nil, err
	}

	enumerator := sitemap.New(sitemap.Config{
		BaseURL:     cfg.Site.BaseURL,
		Agent:       cfg.Planner.Agent,
		Concurrency: cfg.Planner.BucketConcurrency,
	}, fetcher, policy, logger)

	classifier := classify.New(classify.Config{
		Concurrency: cfg.Planner.ClassifyConcurrency,
	}, fetcher, extractor, logger)

	sink, err := report.NewFileSystemSink(cfg.Output.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize report sink: %w", err)
	}

	logger.Info("planner services initialized",
		zap.String("site", cfg.Site.BaseURL),
		zap.String("site_template", cfg.Planner.SiteTemplate),
	)

	return &App{
		cfg:        cfg,
		logger:     logger,
		fetcher:    fetcher,
		policy:     policy,
		enumerator: enumerator,
		rangeCache: cache.New(),
		classifier: classifier,
		probe:      feedprobe.New(fetcher, logger),
		sink:       sink,
		clock:      system.New(),
		ids:        uuid.New(),
	}, nil
}

// newExtractor selects the site-template field extractor.
func newExtractor(template string) (planner.FieldExtractor, error) {
	switch template {
	case "bonappetit":
		return classify.BonAppetit{}, nil
	default:
		return nil, fmt.Errorf("unknown site template: %s", template)
	}
}

// RunPlan produces a full plan report for the range: enumerate (memoized),
// classify the allowed URLs, probe feed endpoints, and stamp the report with
// a run ID. The enumeration result is shared across runs of the same range;
// classification and the probe run fresh every time.
func (a *App) RunPlan(ctx context.Context, r planner.BucketRange) (*planner.PlanReport, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid range: %w", err)
	}

	result, err := a.rangeCache.GetOrCompute(ctx, r, func(ctx context.Context) (*planner.CrawlRangeResult, error) {
		return a.enumerator.Enumerate(ctx, r)
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate range: %w", err)
	}

	classification, err := a.classifier.Classify(ctx, result.AllowedURLs())
	if err != nil {
		return nil, fmt.Errorf("classify urls: %w", err)
	}

	feeds, err := a.probe.Open(ctx, a.cfg.Site.BaseURL, a.cfg.Planner.FeedCandidates)
	if err != nil {
		return nil, fmt.Errorf("probe feeds: %w", err)
	}

	runID, err := a.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	planReport := &planner.PlanReport{
		RunID:          runID,
		Site:           a.cfg.Site.BaseURL,
		Range:          r,
		Result:         result,
		Crawlability:   result.CrawlabilityScore(),
		Classification: classification,
		OpenFeeds:      feeds,
		GeneratedAt:    a.clock.Now(),
	}

	a.logger.Info("plan finished",
		zap.String("run_id", runID),
		zap.Int("buckets", len(result.Entries)),
		zap.Int("discovered", result.TotalDiscovered),
		zap.Int("allowed", result.TotalAllowed),
		zap.Float64("crawlability", planReport.Crawlability),
		zap.Int("js_heavy", len(classification.JSHeavy)),
		zap.Int("cached_ranges", a.rangeCache.Len()),
	)
	return planReport, nil
}

// RobotsSummary returns the plain-text robots artifact.
func (a *App) RobotsSummary() string {
	return a.policy.SummaryText()
}

// RobotsRuleSet returns the structured robots directives.
func (a *App) RobotsRuleSet() planner.RobotsRuleSet {
	return a.policy.RuleSet()
}

// SaveReport exports the plan report JSON and returns the file path.
func (a *App) SaveReport(ctx context.Context, planReport *planner.PlanReport) (string, error) {
	return a.sink.SaveReport(ctx, planReport)
}

// SaveRobotsSummary exports the robots summary artifact and returns the file
// path.
func (a *App) SaveRobotsSummary(ctx context.Context) (string, error) {
	return a.sink.SaveRobotsSummary(ctx, a.policy.SummaryText())
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// Close flushes shared services. It is called by a Cobra hook after the
// command finishes.
func (a *App) Close() {
	//nolint:errcheck // best-effort flush, stderr may be gone already
	_ = a.logger.Sync()
}
