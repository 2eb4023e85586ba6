package state

import (
	"database/sql"
	"time"
)

// CorrelationKey - Identifies one in-flight database command. Both identifiers
// are opaque values supplied by the host data access layer's interception hook.
// The pair is only unique among concurrently active commands, not across the
// process lifetime.
type CorrelationKey struct {
	ConnectionID string
	CommandID    string
}

// ConnectionSource - Optional capability a host data context can implement so
// the plan capture subsystem can recover a connection string when neither an
// explicit configuration nor a still-open connection handle is available.
type ConnectionSource interface {
	ConnectionString() string
}

// ParameterMap - Snapshot of a command's parameters (name to value, values may
// be nil).
type ParameterMap map[string]interface{}

// Copy - Returns an independent copy, so a frozen report never aliases the
// tracker-owned snapshot.
func (m ParameterMap) Copy() ParameterMap {
	if m == nil {
		return nil
	}
	result := make(ParameterMap, len(m))
	for name, value := range m {
		result[name] = value
	}
	return result
}

// TrackedOperation - Metadata of one in-flight command, owned exclusively by
// the tracker from Start until Complete (or sweeper eviction). Mutated once,
// at completion, and never again.
type TrackedOperation struct {
	OperationID string
	Query       string
	Parameters  ParameterMap
	ContextName string
	StartedAt   time.Time
	StackTrace  []string

	Key CorrelationKey

	// Optional handles used by the plan capture connection strategies
	Connection *sql.DB
	Source     ConnectionSource
}

// CompletedOperation - A tracked operation whose completion event arrived.
type CompletedOperation struct {
	TrackedOperation

	FinishedAt time.Time
	Elapsed    time.Duration
}

func (op CompletedOperation) ElapsedMs() float64 {
	return float64(op.Elapsed) / float64(time.Millisecond)
}
