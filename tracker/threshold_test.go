package tracker_test

import (
	"testing"
	"time"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/tracker"
)

func completedAfter(elapsed time.Duration) state.CompletedOperation {
	startedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return state.CompletedOperation{
		TrackedOperation: state.TrackedOperation{
			OperationID: "op-1",
			Query:       "SELECT * FROM orders WHERE id = @id",
			Parameters:  state.ParameterMap{"id": 7},
			ContextName: "OrdersContext",
			StartedAt:   startedAt,
		},
		FinishedAt: startedAt.Add(elapsed),
		Elapsed:    elapsed,
	}
}

var thresholdTests = []struct {
	name        string
	elapsed     time.Duration
	thresholdMs int
	slow        bool
}{
	{"well above threshold", 150 * time.Millisecond, 100, true},
	{"well below threshold", 40 * time.Millisecond, 100, false},
	{"exactly at threshold", 100 * time.Millisecond, 100, true},
	{"just below threshold", 99 * time.Millisecond, 100, false},
}

func TestEvaluateCompleted(t *testing.T) {
	for _, test := range thresholdTests {
		report, slow := tracker.EvaluateCompleted(completedAfter(test.elapsed), test.thresholdMs, "production", state.CollectionOpts{})
		if slow != test.slow {
			t.Errorf("%s: expected slow=%v, got %v", test.name, test.slow, slow)
			continue
		}
		if !slow {
			if report != nil {
				t.Errorf("%s: expected no report for not-slow operation", test.name)
			}
			continue
		}
		if report.ElapsedMs != float64(test.elapsed)/float64(time.Millisecond) {
			t.Errorf("%s: expected elapsed %v ms, got %v", test.name, test.elapsed, report.ElapsedMs)
		}
	}
}

func TestEvaluateCompletedFreezesReport(t *testing.T) {
	op := completedAfter(150 * time.Millisecond)
	report, slow := tracker.EvaluateCompleted(op, 100, "production", state.CollectionOpts{ApplicationName: "shop", ApplicationVersion: "1.2.3"})
	if !slow {
		t.Fatalf("Expected operation to be classified slow")
	}

	op.Parameters["id"] = 999
	if report.Parameters["id"] != 7 {
		t.Errorf("Report parameters alias the completed operation: %v", report.Parameters)
	}

	if report.Environment != "production" || report.ApplicationName != "shop" || report.ApplicationVersion != "1.2.3" {
		t.Errorf("Report missing environment or application identity: %+v", report)
	}
	if report.StartedAt.Location() != time.UTC {
		t.Errorf("Expected UTC start timestamp, got %v", report.StartedAt)
	}
	if report.Plan != nil {
		t.Errorf("Expected execution plan to be absent by default")
	}
}

func TestEvaluateCompletedLeavesFingerprintToWorker(t *testing.T) {
	op := completedAfter(200 * time.Millisecond)
	op.Query = "SELECT * FROM orders WHERE id = $1"
	report, _ := tracker.EvaluateCompleted(op, 100, "production", state.CollectionOpts{})
	if report.QueryFingerprint != "" {
		t.Errorf("Expected no fingerprint on the producer path, got %s", report.QueryFingerprint)
	}
}
