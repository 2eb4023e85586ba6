package runner

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/process"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

func getMemoryRssBytes() uint64 {
	pid := os.Getpid()

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		return 0
	}

	return mem.RSS
}

func getCollectorStats(analyzer *Analyzer) state.CollectorStats {
	stats := analyzer.Stats()
	stats.ActiveGoroutines = int32(runtime.NumGoroutine())
	stats.MemoryRssBytes = getMemoryRssBytes()
	return stats
}

// printCollectorStats - The once-a-minute stats line. Queue depth is the
// operator's signal that the unbounded analysis queue is outgrowing the
// configured threshold.
func printCollectorStats(analyzer *Analyzer, logger *util.Logger) {
	stats := getCollectorStats(analyzer)
	logger.PrintVerbose("Analyzer stats: queued %d, processed %d, failed %d, plans %d/%d, queue depth %d, active ops %d, goroutines %d, rss %d bytes",
		stats.ReportsQueued, stats.ReportsProcessed, stats.ReportsFailed,
		stats.PlansCaptured, stats.PlansCaptured+stats.PlansFailed,
		stats.QueueDepth, stats.ActiveOperations,
		stats.ActiveGoroutines, stats.MemoryRssBytes)
}
