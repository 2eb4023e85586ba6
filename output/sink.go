package output

import (
	"context"
	"sync"
	"time"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// Sink - Accepts one completed report. Implementations must not panic; the
// composite isolates failures regardless.
type Sink interface {
	Name() string
	Report(ctx context.Context, report *state.SlowQueryReport) error
}

// CompositeSink - Fans one report out to all registered sinks. Sinks are
// invoked concurrently and independently; one sink's failure is logged and
// does not prevent the others from completing.
type CompositeSink struct {
	sinks  []Sink
	logger *util.Logger
}

func NewCompositeSink(logger *util.Logger, sinks ...Sink) *CompositeSink {
	return &CompositeSink{sinks: sinks, logger: logger}
}

func (s *CompositeSink) Name() string {
	return "composite"
}

func (s *CompositeSink) Report(ctx context.Context, report *state.SlowQueryReport) error {
	var wg sync.WaitGroup
	for _, sink := range s.sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.PrintError("Sink %s panicked for report %s: %v", sink.Name(), report.OperationID, r)
				}
			}()

			err := sink.Report(ctx, report)
			if err != nil {
				s.logger.PrintError("Sink %s failed for report %s: %s", sink.Name(), report.OperationID, err)
			}
		}(sink)
	}
	wg.Wait()

	return nil
}

// wireReport - The stable wire shape shared by transport sinks. Field names
// are part of the reporting contract, do not rename.
type wireReport struct {
	OperationID        string             `json:"operation_id"`
	Query              string             `json:"query"`
	QueryFingerprint   string             `json:"query_fingerprint,omitempty"`
	Parameters         state.ParameterMap `json:"parameters,omitempty"`
	ElapsedMs          float64            `json:"elapsed_ms"`
	StackTrace         []string           `json:"stack_trace,omitempty"`
	StartedAt          string             `json:"started_at"`
	ContextName        string             `json:"context_name"`
	Environment        string             `json:"environment"`
	ApplicationName    string             `json:"application_name,omitempty"`
	ApplicationVersion string             `json:"application_version,omitempty"`
	ExecutionPlan      *state.ExplainPlan `json:"execution_plan,omitempty"`
}

const truncationMarker = "... [truncated]"

func makeWireReport(report *state.SlowQueryReport, maxQueryLength int) wireReport {
	return wireReport{
		OperationID:        report.OperationID,
		Query:              truncateQuery(report.Query, maxQueryLength),
		QueryFingerprint:   report.QueryFingerprint,
		Parameters:         report.Parameters,
		ElapsedMs:          report.ElapsedMs,
		StackTrace:         report.StackTrace,
		StartedAt:          report.StartedAt.UTC().Format(time.RFC3339Nano),
		ContextName:        report.ContextName,
		Environment:        report.Environment,
		ApplicationName:    report.ApplicationName,
		ApplicationVersion: report.ApplicationVersion,
		ExecutionPlan:      report.Plan,
	}
}

func truncateQuery(query string, maxQueryLength int) string {
	if maxQueryLength <= 0 || len(query) <= maxQueryLength {
		return query
	}
	return query[:maxQueryLength] + truncationMarker
}
