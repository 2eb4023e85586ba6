package state

import (
	"database/sql"
	"time"
)

// PlanFormat - Describes the shape of a captured execution plan payload.
type PlanFormat struct {
	ContentType string `json:"content_type"`
	Extension   string `json:"extension"`
	Description string `json:"description"`
}

var PlanFormatJSON = PlanFormat{
	ContentType: "application/json",
	Extension:   "json",
	Description: "EXPLAIN (FORMAT JSON) output",
}

var PlanFormatText = PlanFormat{
	ContentType: "text/plain",
	Extension:   "txt",
	Description: "EXPLAIN (FORMAT TEXT) output",
}

// ExplainPlan - Execution plan payload captured during background analysis.
// Absent by default.
type ExplainPlan struct {
	Provider string     `json:"provider"`
	Format   PlanFormat `json:"format"`
	Content  string     `json:"content"`
}

// SlowQueryReport - Frozen, self-contained snapshot of one slow operation.
// Created by the threshold evaluator, enriched by the background worker, and
// discarded after dispatch. Shares no mutable state with the tracker.
type SlowQueryReport struct {
	OperationID        string       `json:"operation_id"`
	Query              string       `json:"query"`
	QueryFingerprint   string       `json:"query_fingerprint,omitempty"`
	Parameters         ParameterMap `json:"parameters,omitempty"`
	ElapsedMs          float64      `json:"elapsed_ms"`
	StackTrace         []string     `json:"stack_trace,omitempty"`
	StartedAt          time.Time    `json:"started_at"`
	ContextName        string       `json:"context_name"`
	Environment        string       `json:"environment"`
	ApplicationName    string       `json:"application_name,omitempty"`
	ApplicationVersion string       `json:"application_version,omitempty"`
	Plan               *ExplainPlan `json:"execution_plan,omitempty"`

	// Connection handles carried for plan capture only, never serialized
	Connection *sql.DB          `json:"-"`
	Source     ConnectionSource `json:"-"`
}
