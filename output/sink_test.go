package output

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/akhmadkhasan68/efcore-query-analyzer/config"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

func testLogger() *util.Logger {
	return &util.Logger{Destination: log.New(os.Stderr, "", log.LstdFlags)}
}

func sampleReport() *state.SlowQueryReport {
	return &state.SlowQueryReport{
		OperationID: "op-1",
		Query:       "SELECT * FROM orders WHERE id = @id",
		Parameters:  state.ParameterMap{"id": 7},
		ElapsedMs:   152.5,
		StartedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ContextName: "OrdersContext",
		Environment: "production",
	}
}

type countingSink struct {
	name string
	fail bool

	lock  sync.Mutex
	count int
}

func (s *countingSink) Name() string { return s.name }

func (s *countingSink) Report(ctx context.Context, report *state.SlowQueryReport) error {
	if s.fail {
		return errors.New("sink is broken")
	}
	s.lock.Lock()
	s.count++
	s.lock.Unlock()
	return nil
}

func TestCompositeSinkIsolatesFailures(t *testing.T) {
	healthy1 := &countingSink{name: "healthy1"}
	broken := &countingSink{name: "broken", fail: true}
	healthy2 := &countingSink{name: "healthy2"}

	composite := NewCompositeSink(testLogger(), healthy1, broken, healthy2)
	err := composite.Report(context.Background(), sampleReport())
	if err != nil {
		t.Errorf("Composite must not surface sink failures, got %s", err)
	}

	if healthy1.count != 1 || healthy2.count != 1 {
		t.Errorf("Expected healthy sinks to receive the report, got %d/%d", healthy1.count, healthy2.count)
	}
}

var truncateTests = []struct {
	name     string
	query    string
	max      int
	expected string
}{
	{"no limit", "SELECT 1", 0, "SELECT 1"},
	{"under limit", "SELECT 1", 100, "SELECT 1"},
	{"at limit", "SELECT 11", 9, "SELECT 11"},
	{"over limit", "SELECT * FROM orders", 8, "SELECT *" + truncationMarker},
}

func TestTruncateQuery(t *testing.T) {
	for _, test := range truncateTests {
		if actual := truncateQuery(test.query, test.max); actual != test.expected {
			t.Errorf("%s: expected %q, got %q", test.name, test.expected, actual)
		}
	}
}

func TestAPISinkSubmitsReport(t *testing.T) {
	var receivedBody []byte
	var receivedHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		receivedHeader = r.Header
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	conf := &config.Config{
		Environment:       "production",
		APIBaseURL:        server.URL,
		APIKey:            "secret-key",
		ProjectID:         "proj-42",
		APITimeoutSeconds: 5,
		MaxQueryLength:    20,
	}
	sink := NewAPISink(conf, testLogger())

	report := sampleReport()
	report.Plan = &state.ExplainPlan{Provider: "postgres", Format: state.PlanFormatJSON, Content: "[]"}
	err := sink.Report(context.Background(), report)
	if err != nil {
		t.Fatalf("Expected submission to succeed, got %s", err)
	}

	if receivedHeader.Get("Authorization") != "Bearer secret-key" {
		t.Errorf("Missing bearer credential header: %v", receivedHeader)
	}
	if receivedHeader.Get("X-Project-Id") != "proj-42" {
		t.Errorf("Missing project identifier header: %v", receivedHeader)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(receivedBody, &wire); err != nil {
		t.Fatalf("Could not decode wire report: %s", err)
	}
	if wire["operation_id"] != "op-1" {
		t.Errorf("Unexpected operation_id: %v", wire["operation_id"])
	}
	if wire["started_at"] != "2024-05-01T12:00:00Z" {
		t.Errorf("Expected ISO-8601 UTC start timestamp, got %v", wire["started_at"])
	}
	query, _ := wire["query"].(string)
	if !strings.HasSuffix(query, truncationMarker) || len(query) != 20+len(truncationMarker) {
		t.Errorf("Expected truncated query with marker, got %q", query)
	}
	if wire["execution_plan"] == nil {
		t.Errorf("Expected execution plan in wire report")
	}
}

func TestAPISinkEnvironmentGating(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	conf := &config.Config{
		Environment:         "development",
		EnabledEnvironments: "production,staging",
		APIBaseURL:          server.URL,
		APITimeoutSeconds:   5,
	}
	sink := NewAPISink(conf, testLogger())

	if err := sink.Report(context.Background(), sampleReport()); err != nil {
		t.Errorf("Gated environment must not be an error, got %s", err)
	}
	if requests != 0 {
		t.Errorf("Expected no request for a disabled environment, got %d", requests)
	}
}

func TestAPISinkNonSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unhappy", http.StatusBadGateway)
	}))
	defer server.Close()

	conf := &config.Config{
		Environment:       "production",
		APIBaseURL:        server.URL,
		APITimeoutSeconds: 5,
	}
	sink := NewAPISink(conf, testLogger())

	err := sink.Report(context.Background(), sampleReport())
	if err == nil {
		t.Fatalf("Expected non-success response to surface as an error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("Expected status code in error, got %s", err)
	}
}

func TestLocalDirSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewLocalDirSink(dir, 0, testLogger())

	if err := sink.Report(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Expected local write to succeed, got %s", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "slow_query_op-1.json"))
	if err != nil {
		t.Fatalf("Expected report file: %s", err)
	}
	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Report file is not valid JSON: %s", err)
	}
	if wire["context_name"] != "OrdersContext" {
		t.Errorf("Unexpected report contents: %v", wire)
	}
}
