package tracker

import (
	"context"
	"database/sql"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/akhmadkhasan68/efcore-query-analyzer/stacktrace"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// Tracker - Holds the active tracked operations, keyed by correlation key.
//
// Start and Complete are called synchronously from the host's command
// interception hook, potentially from many goroutines at once, and must stay
// O(1) beyond the optional stack capture. The map is the only structure
// mutated by multiple producers; no lock is held across caller-visible work
// other than the map insert/remove itself.
type Tracker struct {
	logger *util.Logger
	stacks stacktrace.Provider

	maxStackLines int
	maxAge        time.Duration

	lock sync.Mutex
	ops  map[state.CorrelationKey]*state.TrackedOperation
}

func NewTracker(logger *util.Logger, stacks stacktrace.Provider, maxStackLines int, maxAge time.Duration) *Tracker {
	return &Tracker{
		logger:        logger,
		stacks:        stacks,
		maxStackLines: maxStackLines,
		maxAge:        maxAge,
		ops:           make(map[state.CorrelationKey]*state.TrackedOperation),
	}
}

// Start - Begins tracking one command execution and returns the generated
// operation id. Never panics out to the caller; on an internal fault the
// operation is simply not tracked.
func (t *Tracker) Start(key state.CorrelationKey, query string, parameters state.ParameterMap, contextName string, connection *sql.DB, source state.ConnectionSource, captureStack bool) (operationID string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.PrintError("Failed to track command start for %s/%s: %v", key.ConnectionID, key.CommandID, r)
			operationID = ""
		}
	}()

	op := &state.TrackedOperation{
		OperationID: uuid.NewV4().String(),
		Query:       query,
		Parameters:  parameters.Copy(),
		ContextName: contextName,
		StartedAt:   time.Now(),
		Key:         key,
		Connection:  connection,
		Source:      source,
	}

	if captureStack && t.stacks != nil {
		op.StackTrace = t.stacks.Capture(t.maxStackLines)
	}

	t.lock.Lock()
	if _, exists := t.ops[key]; exists {
		// The host's connection pool reused identifiers before we saw the
		// completion event; the stale entry is superseded
		t.logger.PrintVerbose("Replacing stale tracked operation for %s/%s", key.ConnectionID, key.CommandID)
	}
	t.ops[key] = op
	t.lock.Unlock()

	return op.OperationID
}

// Complete - Atomically looks up and removes the matching entry. A completion
// event with no matching start is benign and returns ok=false.
func (t *Tracker) Complete(key state.CorrelationKey) (completed state.CompletedOperation, ok bool) {
	finishedAt := time.Now()

	t.lock.Lock()
	op, exists := t.ops[key]
	if exists {
		delete(t.ops, key)
	}
	t.lock.Unlock()

	if !exists {
		return state.CompletedOperation{}, false
	}

	return state.CompletedOperation{
		TrackedOperation: *op,
		FinishedAt:       finishedAt,
		Elapsed:          finishedAt.Sub(op.StartedAt),
	}, true
}

func (t *Tracker) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.ops)
}

// RunSweeper - Periodically evicts entries whose completion event never
// arrived (host connection pool edge cases). Runs until the context is
// canceled.
func (t *Tracker) RunSweeper(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-time.After(interval):
			t.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) sweep() {
	if t.maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-t.maxAge)

	t.lock.Lock()
	var evicted int
	for key, op := range t.ops {
		if op.StartedAt.Before(cutoff) {
			delete(t.ops, key)
			evicted++
		}
	}
	t.lock.Unlock()

	if evicted > 0 {
		t.logger.PrintVerbose("Evicted %d tracked operations with no completion event", evicted)
	}
}
