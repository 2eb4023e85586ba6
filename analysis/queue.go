package analysis

import (
	"sync"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
)

// Queue - Unbounded FIFO hand-off between the producer-side fast path and the
// background drain worker. Enqueue never blocks and never rejects; bounding
// memory is the caller's job via thresholds and sampling, not this queue's.
// Safe for many producers and a single consumer.
type Queue struct {
	lock  sync.Mutex
	items []*state.SlowQueryReport
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(report *state.SlowQueryReport) {
	q.lock.Lock()
	q.items = append(q.items, report)
	q.lock.Unlock()
}

// DequeueBatch - Pops up to max items in FIFO order. max <= 0 drains the
// whole queue (used for the final shutdown drain).
func (q *Queue) DequeueBatch(max int) []*state.SlowQueryReport {
	q.lock.Lock()
	defer q.lock.Unlock()

	count := len(q.items)
	if count == 0 {
		return nil
	}
	if max > 0 && count > max {
		count = max
	}

	batch := make([]*state.SlowQueryReport, count)
	copy(batch, q.items[:count])
	q.items = q.items[count:]
	if len(q.items) == 0 {
		q.items = nil
	}

	return batch
}

func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}
