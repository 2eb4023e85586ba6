package config

import (
	"strings"
)

// Config - Runtime configuration of the query analyzer.
//
// Read from an INI file (section "query_analyzer") with environment variable
// overrides, see read.go. The host application can also construct this struct
// directly when embedding the analyzer as a library.
type Config struct {
	Enabled bool `ini:"enabled"`

	// Operations with an elapsed time at or above this value are reported
	ThresholdMs int `ini:"threshold_ms"`

	CaptureStack  bool `ini:"capture_stack"`
	MaxStackLines int  `ini:"max_stack_lines"`

	// Query text sent to transport sinks is cut off at this many bytes
	MaxQueryLength int `ini:"max_query_length"`

	CaptureExecutionPlan      bool `ini:"capture_execution_plan"`
	PlanCaptureTimeoutSeconds int  `ini:"plan_capture_timeout_seconds"`

	// Explicit connection string for plan capture (strategy a). When empty the
	// still-open connection handle or the data context's connection source is
	// used instead.
	DbURL string `ini:"db_url"`

	// Current environment tag (e.g. "development", "production"), supplied by
	// the host deployment
	Environment string `ini:"environment"`

	// Comma-separated list of environments reporting is enabled for. Empty
	// means all environments.
	EnabledEnvironments string `ini:"enabled_environments"`

	APIBaseURL        string `ini:"api_base_url"`
	APIKey            string `ini:"api_key"`
	ProjectID         string `ini:"project_id"`
	APITimeoutSeconds int    `ini:"api_timeout_seconds"`

	// When set, reports are additionally written as JSON files to this directory
	LocalReportDir string `ini:"local_report_dir"`

	SentryDsn string `ini:"sentry_dsn"`

	// Entries whose completion event never arrives (host connection pool edge
	// cases) are evicted after this many seconds
	TrackerMaxAgeSeconds int `ini:"tracker_max_age_seconds"`

	DrainBatchSize  int `ini:"drain_batch_size"`
	DrainIntervalMs int `ini:"drain_interval_ms"`

	// Plan capture connection strategy (d), set programmatically by the host
	FallbackConnectionString func() string `ini:"-"`

	SectionName string `ini:"-"`
}

// EnvironmentEnabled - Reports whether transport sinks may send for the
// currently configured environment.
func (c *Config) EnvironmentEnabled() bool {
	if c.EnabledEnvironments == "" {
		return true
	}
	for _, env := range strings.Split(c.EnabledEnvironments, ",") {
		if strings.TrimSpace(env) == c.Environment {
			return true
		}
	}
	return false
}
