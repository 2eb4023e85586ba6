package analysis

import (
	"context"
	"sync"
	"time"

	pg_query "github.com/lfittl/pg_query_go"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

const (
	DefaultBatchSize     = 10
	DefaultDrainInterval = 100 * time.Millisecond
)

// Sink - Accepts one completed report. Implementations live in the output
// package; the worker only needs the capability.
type Sink interface {
	Name() string
	Report(ctx context.Context, report *state.SlowQueryReport) error
}

// PlanCaptureFunc - Optional per-item enrichment step run before dispatch.
// Returns nil when no plan could be captured; that is not an error.
type PlanCaptureFunc func(ctx context.Context, report *state.SlowQueryReport) *state.ExplainPlan

// Counters - Processing statistics, safe for concurrent reads from the stats
// emitter while the worker updates them.
type Counters struct {
	lock sync.Mutex

	processed     int64
	failed        int64
	plansCaptured int64
	plansMissed   int64
}

func (c *Counters) Snapshot() (processed int64, failed int64, plansCaptured int64, plansMissed int64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.processed, c.failed, c.plansCaptured, c.plansMissed
}

// Worker - Single background consumer of the analysis queue.
//
// Each drain pass processes up to batchSize items, then the worker idles for
// drainInterval before the next pass, bounding queue latency without busy
// spinning. One item's failure never stops the loop. On shutdown the worker
// performs one final unbounded drain so nothing queued is silently dropped.
type Worker struct {
	queue       *Queue
	sink        Sink
	capturePlan PlanCaptureFunc
	logger      *util.Logger

	batchSize     int
	drainInterval time.Duration

	Counters Counters
}

func NewWorker(queue *Queue, sink Sink, capturePlan PlanCaptureFunc, logger *util.Logger, batchSize int, drainInterval time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if drainInterval <= 0 {
		drainInterval = DefaultDrainInterval
	}
	return &Worker{
		queue:         queue,
		sink:          sink,
		capturePlan:   capturePlan,
		logger:        logger,
		batchSize:     batchSize,
		drainInterval: drainInterval,
	}
}

// Run - Blocks until the context is canceled and the final drain finished.
// The run context only controls the loop; dequeued items are always dispatched
// on a detached context, so canceling Run never aborts in-flight sink or plan
// capture I/O. Those calls carry their own timeouts.
func (w *Worker) Run(ctx context.Context) {
	for {
		w.drain(w.batchSize)

		select {
		case <-time.After(w.drainInterval):
		case <-ctx.Done():
			// Final unbounded drain so nothing queued is dropped
			w.drain(0)
			return
		}
	}
}

func (w *Worker) drain(max int) {
	for _, report := range w.queue.DequeueBatch(max) {
		w.processItem(context.Background(), report)
	}
}

func (w *Worker) processItem(ctx context.Context, report *state.SlowQueryReport) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.PrintError("Panic while analyzing slow query %s: %v", report.OperationID, r)
			w.countFailure()
		}
	}()

	if report.QueryFingerprint == "" {
		report.QueryFingerprint = fingerprintQuery(report.Query)
	}

	if w.capturePlan != nil {
		report.Plan = w.capturePlan(ctx, report)

		w.Counters.lock.Lock()
		if report.Plan != nil {
			w.Counters.plansCaptured++
		} else {
			w.Counters.plansMissed++
		}
		w.Counters.lock.Unlock()
	}

	err := w.sink.Report(ctx, report)
	if err != nil {
		w.logger.PrintError("Failed to report slow query %s: %s", report.OperationID, err)
		w.countFailure()
		return
	}

	w.Counters.lock.Lock()
	w.Counters.processed++
	w.Counters.lock.Unlock()
}

// fingerprintQuery - Best effort; not all query text the host hands us is
// parseable (truncated text, non-Postgres dialects), in which case reports
// simply carry no fingerprint. Fingerprinting parses the full query text, so
// it runs here in the background rather than on the producer path.
func fingerprintQuery(query string) string {
	fingerprint, err := pg_query.FastFingerprint(query)
	if err != nil {
		return ""
	}
	return fingerprint
}

func (w *Worker) countFailure() {
	w.Counters.lock.Lock()
	w.Counters.failed++
	w.Counters.lock.Unlock()
}
