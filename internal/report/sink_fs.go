// Package report exports planning artifacts to the local filesystem.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/planner"
)

// FileSystemSink saves plan reports and robots summaries to disk.
type FileSystemSink struct {
	root   string
	logger *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir, creating the directory if
// needed.
func NewFileSystemSink(root string, logger *zap.Logger) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create report dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{root: root, logger: logger}, nil
}

// SaveReport writes the plan report as indented JSON named by run ID and
// returns the file path.
func (s *FileSystemSink) SaveReport(ctx context.Context, report *planner.PlanReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if report == nil || report.RunID == "" {
		return "", fmt.Errorf("report requires a run id")
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	target := filepath.Join(s.root, fmt.Sprintf("plan_%s.json", report.RunID))
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return "", fmt.Errorf("write report %s: %w", target, err)
	}

	s.logger.Info("plan report saved",
		zap.String("path", target),
		zap.String("run_id", report.RunID),
	)
	return target, nil
}

// SaveRobotsSummary writes the plain-text robots summary artifact and
// returns the file path.
func (s *FileSystemSink) SaveRobotsSummary(ctx context.Context, summary string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}

	target := filepath.Join(s.root, "robots_summary.txt")
	if err := os.WriteFile(target, []byte(summary), 0o600); err != nil {
		return "", fmt.Errorf("write robots summary %s: %w", target, err)
	}

	s.logger.Info("robots summary saved", zap.String("path", target))
	return target, nil
}
