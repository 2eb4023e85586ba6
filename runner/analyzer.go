package runner

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/akhmadkhasan68/efcore-query-analyzer/analysis"
	"github.com/akhmadkhasan68/efcore-query-analyzer/config"
	"github.com/akhmadkhasan68/efcore-query-analyzer/input/postgres"
	"github.com/akhmadkhasan68/efcore-query-analyzer/output"
	"github.com/akhmadkhasan68/efcore-query-analyzer/stacktrace"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/tracker"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// Analyzer - Ties the tracker, queue, worker and sinks together and exposes
// the inbound hook the host data access layer calls around each command.
type Analyzer struct {
	conf   *config.Config
	opts   state.CollectionOpts
	logger *util.Logger

	tracker *tracker.Tracker
	queue   *analysis.Queue
	worker  *analysis.Worker

	reportsQueued int64
}

func NewAnalyzer(conf *config.Config, opts state.CollectionOpts, logger *util.Logger) *Analyzer {
	stacks := stacktrace.NewRuntimeProvider("")
	maxAge := time.Duration(conf.TrackerMaxAgeSeconds) * time.Second

	queue := analysis.NewQueue()

	var capturePlan analysis.PlanCaptureFunc
	if conf.CaptureExecutionPlan {
		capturePlan = func(ctx context.Context, report *state.SlowQueryReport) *state.ExplainPlan {
			return postgres.CapturePlan(ctx, report, conf, logger)
		}
	}

	worker := analysis.NewWorker(
		queue,
		buildSink(conf, logger),
		capturePlan,
		logger,
		conf.DrainBatchSize,
		time.Duration(conf.DrainIntervalMs)*time.Millisecond,
	)

	return &Analyzer{
		conf:    conf,
		opts:    opts,
		logger:  logger,
		tracker: tracker.NewTracker(logger, stacks, conf.MaxStackLines, maxAge),
		queue:   queue,
		worker:  worker,
	}
}

func buildSink(conf *config.Config, logger *util.Logger) analysis.Sink {
	var sinks []output.Sink
	if conf.APIBaseURL != "" && conf.APIKey != "" {
		sinks = append(sinks, output.NewAPISink(conf, logger))
	}
	if conf.LocalReportDir != "" {
		sinks = append(sinks, output.NewLocalDirSink(conf.LocalReportDir, conf.MaxQueryLength, logger))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, output.NewLogSink(logger))
	}
	return output.NewCompositeSink(logger, sinks...)
}

// OnCommandStarting - Inbound hook, called synchronously when the host layer
// is about to execute a command. Must return quickly and never fail the host.
func (a *Analyzer) OnCommandStarting(connectionID string, commandID string, query string, parameters state.ParameterMap, contextName string, connection *sql.DB, source state.ConnectionSource) string {
	if !a.conf.Enabled {
		return ""
	}

	key := state.CorrelationKey{ConnectionID: connectionID, CommandID: commandID}
	return a.tracker.Start(key, query, parameters, contextName, connection, source, a.conf.CaptureStack)
}

// OnCommandCompleted - Inbound hook, called synchronously when the host layer
// finished executing a command. A completion with no matching start is a
// benign no-op.
func (a *Analyzer) OnCommandCompleted(connectionID string, commandID string) {
	if !a.conf.Enabled {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.PrintError("Failed to process command completion for %s/%s: %v", connectionID, commandID, r)
		}
	}()

	key := state.CorrelationKey{ConnectionID: connectionID, CommandID: commandID}
	op, ok := a.tracker.Complete(key)
	if !ok {
		return
	}

	report, slow := tracker.EvaluateCompleted(op, a.conf.ThresholdMs, a.conf.Environment, a.opts)
	if !slow {
		return
	}

	a.queue.Enqueue(report)
	atomic.AddInt64(&a.reportsQueued, 1)
}

// Stats - Snapshot of the analyzer's internal counters.
func (a *Analyzer) Stats() state.CollectorStats {
	processed, failed, plansCaptured, plansMissed := a.worker.Counters.Snapshot()
	return state.CollectorStats{
		ReportsQueued:    atomic.LoadInt64(&a.reportsQueued),
		ReportsProcessed: processed,
		ReportsFailed:    failed,
		PlansCaptured:    plansCaptured,
		PlansFailed:      plansMissed,
		QueueDepth:       a.queue.Len(),
		ActiveOperations: a.tracker.Len(),
	}
}
