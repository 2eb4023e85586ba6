package output

import (
	"context"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// LogSink - One-line report summary through the logger. Default sink when no
// transport is configured.
type LogSink struct {
	logger *util.Logger
}

func NewLogSink(logger *util.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Report(ctx context.Context, report *state.SlowQueryReport) error {
	hasPlan := "no"
	if report.Plan != nil {
		hasPlan = "yes"
	}
	s.logger.PrintInfo("Slow query %s: %.1fms, context %s, plan captured: %s", report.OperationID, report.ElapsedMs, report.ContextName, hasPlan)
	return nil
}
