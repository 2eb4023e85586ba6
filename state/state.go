package state

import "time"

// CollectionOpts - Process-wide options not owned by the configuration file.
type CollectionOpts struct {
	StartedAt time.Time

	ApplicationName    string
	ApplicationVersion string

	TestRun bool
}

// CollectorStats - Counters describing the analyzer's own behavior, emitted
// periodically through the logger.
type CollectorStats struct {
	ReportsQueued    int64
	ReportsProcessed int64
	ReportsFailed    int64
	PlansCaptured    int64
	PlansFailed      int64

	QueueDepth       int
	ActiveOperations int

	ActiveGoroutines int32
	MemoryRssBytes   uint64
}
