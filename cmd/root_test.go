package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/config"
	"github.com/smartcrawler/crawlplan/internal/planner"
)

func TestPlanCommandRunsAndSavesArtifacts(t *testing.T) {
	fake := newFakeApp()
	withFakeApp(t, fake)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{
		"plan",
		"--start-year", "2024", "--start-month", "1", "--start-week", "1",
		"--end-year", "2024", "--end-month", "2", "--end-week", "3",
	})

	require.NoError(t, root.Execute())

	wantRange := planner.BucketRange{
		StartYear: 2024, StartMonth: 1, StartWeek: 1,
		EndYear: 2024, EndMonth: 2, EndWeek: 3,
	}
	require.Equal(t, []planner.BucketRange{wantRange}, fake.ranges)
	require.Equal(t, 1, fake.saveReportCalls)
	require.Equal(t, 1, fake.saveSummaryCalls)
	require.True(t, fake.closed)
}

func TestPlanCommandRequiresRangeFlags(t *testing.T) {
	withFakeApp(t, newFakeApp())

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"plan", "--start-year", "2024"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "required flag")
}

func TestPlanCommandPropagatesRunError(t *testing.T) {
	fake := newFakeApp()
	fake.runErr = errors.New("boom")
	withFakeApp(t, fake)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{
		"plan",
		"--start-year", "2024", "--start-month", "1", "--start-week", "1",
		"--end-year", "2024", "--end-month", "1", "--end-week", "1",
	})

	err := root.Execute()
	require.ErrorContains(t, err, "run plan: boom")
	require.Zero(t, fake.saveReportCalls)
}

func TestRobotsCommandPrintsSummary(t *testing.T) {
	fake := newFakeApp()
	fake.summary = "Allowed paths: []\nDisallowed paths: [/secret/]\nCrawl-delay: None\nSitemap links: []\n"
	withFakeApp(t, fake)

	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"robots"})

	require.NoError(t, root.Execute())
	require.Equal(t, fake.summary, out.String())
	require.Zero(t, fake.saveSummaryCalls)
	require.True(t, fake.closed)
}

func TestRobotsCommandExportWritesSummary(t *testing.T) {
	fake := newFakeApp()
	withFakeApp(t, fake)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"robots", "--export"})

	require.NoError(t, root.Execute())
	require.Equal(t, 1, fake.saveSummaryCalls)
}

func TestRootCommandReportsAppInitFailure(t *testing.T) {
	orig := newApp
	newApp = func(context.Context) (App, error) {
		return nil, errors.New("no services")
	}
	t.Cleanup(func() { newApp = orig })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"robots"})

	err := root.Execute()
	require.ErrorContains(t, err, "failed to initialize application services")
}

// --- helpers/fakes ---

func withFakeApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(context.Context) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })
}

type fakeApp struct {
	report  *planner.PlanReport
	runErr  error
	summary string
	rules   planner.RobotsRuleSet

	ranges           []planner.BucketRange
	saveReportCalls  int
	saveSummaryCalls int
	closed           bool
}

func newFakeApp() *fakeApp {
	return &fakeApp{
		report: &planner.PlanReport{
			RunID:          "0198ab12-0000-7000-8000-00000000cafe",
			Result:         &planner.CrawlRangeResult{TotalDiscovered: 4, TotalAllowed: 3},
			Crawlability:   75,
			Classification: &planner.ClassificationResult{},
			GeneratedAt:    time.Unix(100, 0).UTC(),
		},
	}
}

func (f *fakeApp) RunPlan(_ context.Context, r planner.BucketRange) (*planner.PlanReport, error) {
	f.ranges = append(f.ranges, r)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.report, nil
}

func (f *fakeApp) RobotsSummary() string {
	return f.summary
}

func (f *fakeApp) RobotsRuleSet() planner.RobotsRuleSet {
	return f.rules
}

func (f *fakeApp) SaveReport(context.Context, *planner.PlanReport) (string, error) {
	f.saveReportCalls++
	return "plans/plan_test.json", nil
}

func (f *fakeApp) SaveRobotsSummary(context.Context) (string, error) {
	f.saveSummaryCalls++
	return "plans/robots_summary.txt", nil
}

func (f *fakeApp) GetLogger() *zap.Logger {
	return zap.NewNop()
}

func (f *fakeApp) GetConfig() *config.Config {
	return &config.Config{}
}

func (f *fakeApp) Close() {
	f.closed = true
}
