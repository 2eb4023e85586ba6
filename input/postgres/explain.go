package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pg_query "github.com/lfittl/pg_query_go"
	"github.com/pkg/errors"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// RunExplain - Captures the execution plan for one slow query on the given
// connection.
//
// The connection is switched into plan capture session state (the dedicated
// statement timeout), the parameters are substituted with literal values so
// the planner sees representative cardinalities instead of bound parameters,
// and the session state is restored unconditionally afterwards, even when the
// substituted statement fails.
func RunExplain(ctx context.Context, db *sql.DB, query string, parameters state.ParameterMap, timeout time.Duration, logger *util.Logger) (*state.ExplainPlan, error) {
	substituted, err := SubstituteParameters(query, parameters)
	if err != nil {
		return nil, errors.Wrap(err, "parameter substitution failed")
	}

	// To be on the safe side never EXPLAIN a statement that can't be parsed,
	// or multiple statements in one (leading to accidental execution)
	parsetree, err := pg_query.Parse(substituted)
	if err != nil {
		return nil, errors.Wrap(err, "substituted statement does not parse")
	}
	if len(parsetree.Statements) != 1 {
		return nil, fmt.Errorf("refusing to explain %d statements at once", len(parsetree.Statements))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = enablePlanCapture(ctx, db, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "could not enable plan capture session state")
	}
	defer disablePlanCapture(db, logger)

	var content string
	err = db.QueryRowContext(ctx, QueryMarkerSQL+"EXPLAIN (VERBOSE, FORMAT JSON) "+substituted).Scan(&content)
	if err != nil {
		return nil, errors.Wrap(err, "explain failed")
	}

	return &state.ExplainPlan{
		Provider: "postgres",
		Format:   state.PlanFormatJSON,
		Content:  content,
	}, nil
}

func enablePlanCapture(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("%sSET statement_timeout = %d", QueryMarkerSQL, int64(timeout/time.Millisecond)))
	return err
}

// disablePlanCapture - Runs unconditionally after an attempted capture, with
// its own context since the capture context may already be canceled or timed
// out. Failures are logged, never escalated.
func disablePlanCapture(db *sql.DB, logger *util.Logger) {
	_, err := db.Exec(QueryMarkerSQL + "RESET statement_timeout")
	if err != nil {
		logger.PrintWarning("Could not restore session state after plan capture: %s", err)
	}
}
