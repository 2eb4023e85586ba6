package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// LocalDirSink - Writes each report as a JSON file into a directory. Intended
// for development environments without API access.
type LocalDirSink struct {
	dir            string
	maxQueryLength int
	logger         *util.Logger
}

func NewLocalDirSink(dir string, maxQueryLength int, logger *util.Logger) *LocalDirSink {
	return &LocalDirSink{dir: dir, maxQueryLength: maxQueryLength, logger: logger}
}

func (s *LocalDirSink) Name() string {
	return "local_dir"
}

func (s *LocalDirSink) Report(ctx context.Context, report *state.SlowQueryReport) error {
	err := os.MkdirAll(s.dir, 0755)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(makeWireReport(report, s.maxQueryLength), "", "  ")
	if err != nil {
		return err
	}

	location := filepath.Join(s.dir, fmt.Sprintf("slow_query_%s.json", report.OperationID))
	err = os.WriteFile(location, data, 0644)
	if err != nil {
		return err
	}

	s.logger.PrintVerbose("Wrote slow query report to %s", location)
	return nil
}
