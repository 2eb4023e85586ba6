package postgres_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/akhmadkhasan68/efcore-query-analyzer/config"
	"github.com/akhmadkhasan68/efcore-query-analyzer/input/postgres"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

func testLogger() *util.Logger {
	return &util.Logger{Destination: log.New(os.Stderr, "", log.LstdFlags)}
}

func TestRunExplain(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Could not create mock connection: %s", err)
	}
	defer db.Close()

	mock.ExpectExec("SET statement_timeout = 10000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("EXPLAIN \\(VERBOSE, FORMAT JSON\\) SELECT \\* FROM orders WHERE id = 7").
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(`[{"Plan": {"Node Type": "Seq Scan"}}]`))
	mock.ExpectExec("RESET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))

	plan, err := postgres.RunExplain(context.Background(), db, "SELECT * FROM orders WHERE id = @id", state.ParameterMap{"id": 7}, 10*time.Second, testLogger())
	if err != nil {
		t.Fatalf("Expected plan capture to succeed, got %s", err)
	}
	if plan.Provider != "postgres" || plan.Format != state.PlanFormatJSON {
		t.Errorf("Unexpected plan metadata: %+v", plan)
	}
	if plan.Content != `[{"Plan": {"Node Type": "Seq Scan"}}]` {
		t.Errorf("Unexpected plan content: %s", plan.Content)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %s", err)
	}
}

func TestRunExplainRestoresSessionStateOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Could not create mock connection: %s", err)
	}
	defer db.Close()

	mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("EXPLAIN").WillReturnError(context.DeadlineExceeded)
	mock.ExpectExec("RESET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = postgres.RunExplain(context.Background(), db, "SELECT 1", nil, time.Second, testLogger())
	if err == nil {
		t.Fatalf("Expected explain failure to surface as an error")
	}

	// The RESET expectation being met proves session state was restored even
	// though the substituted query failed
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Session state was not restored: %s", err)
	}
}

func TestRunExplainRefusesMultipleStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Could not create mock connection: %s", err)
	}
	defer db.Close()

	_, err = postgres.RunExplain(context.Background(), db, "SELECT 1; DROP TABLE orders", nil, time.Second, testLogger())
	if err == nil {
		t.Fatalf("Expected multi-statement query to be refused")
	}

	// Nothing may have reached the connection
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected statements executed: %s", err)
	}
}

func TestRunExplainRefusesUnparseableStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Could not create mock connection: %s", err)
	}
	defer db.Close()

	_, err = postgres.RunExplain(context.Background(), db, "SELECT )", nil, time.Second, testLogger())
	if err == nil {
		t.Fatalf("Expected unparseable query to be refused")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected statements executed: %s", err)
	}
}

func TestResolveConnectionReusesOperationHandle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Could not create mock connection: %s", err)
	}
	defer db.Close()

	mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("EXPLAIN").WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow("[]"))
	mock.ExpectExec("RESET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))

	report := &state.SlowQueryReport{
		OperationID: "op-1",
		Query:       "SELECT 1",
		Connection:  db,
	}
	conf := &config.Config{CaptureExecutionPlan: true, PlanCaptureTimeoutSeconds: 10}

	plan := postgres.CapturePlan(context.Background(), report, conf, testLogger())
	if plan == nil {
		t.Fatalf("Expected plan capture over the reused connection handle")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %s", err)
	}
}

func TestCapturePlanNoStrategy(t *testing.T) {
	report := &state.SlowQueryReport{OperationID: "op-1", Query: "SELECT 1"}
	conf := &config.Config{CaptureExecutionPlan: true, PlanCaptureTimeoutSeconds: 10}

	plan := postgres.CapturePlan(context.Background(), report, conf, testLogger())
	if plan != nil {
		t.Errorf("Expected nil plan when no connection strategy is available")
	}
}
