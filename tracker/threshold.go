package tracker

import (
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
)

// EvaluateCompleted - Classifies a completed operation against the configured
// threshold. Operations that ran for exactly the threshold count as slow.
//
// Not-slow operations are discarded with no further cost. Slow operations
// become a frozen SlowQueryReport with all fields copied, so the report never
// aliases tracker-owned state. This runs on the producer path and must stay
// cheap; query fingerprinting happens later in the background worker.
func EvaluateCompleted(op state.CompletedOperation, thresholdMs int, environment string, opts state.CollectionOpts) (*state.SlowQueryReport, bool) {
	elapsedMs := op.ElapsedMs()
	if elapsedMs < float64(thresholdMs) {
		return nil, false
	}

	return &state.SlowQueryReport{
		OperationID:        op.OperationID,
		Query:              op.Query,
		Parameters:         op.Parameters.Copy(),
		ElapsedMs:          elapsedMs,
		StackTrace:         append([]string(nil), op.StackTrace...),
		StartedAt:          op.StartedAt.UTC(),
		ContextName:        op.ContextName,
		Environment:        environment,
		ApplicationName:    opts.ApplicationName,
		ApplicationVersion: opts.ApplicationVersion,
		Connection:         op.Connection,
		Source:             op.Source,
	}, true
}
