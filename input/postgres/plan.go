package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/akhmadkhasan68/efcore-query-analyzer/config"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// CapturePlan - Per-item plan capture entry point used by the background
// worker. Resolves a connection, runs the capture protocol, and degrades to a
// nil plan with a logged warning on any failure. Never propagates errors to
// the reporting stage.
func CapturePlan(ctx context.Context, report *state.SlowQueryReport, conf *config.Config, logger *util.Logger) *state.ExplainPlan {
	db, opened, strategy := resolveConnection(ctx, report, conf, logger)
	if db == nil {
		logger.PrintWarning("Skipping plan capture for %s: no connection strategy available", report.OperationID)
		return nil
	}
	if opened {
		defer db.Close()
	}

	timeout := time.Duration(conf.PlanCaptureTimeoutSeconds) * time.Second
	plan, err := RunExplain(ctx, db, report.Query, report.Parameters, timeout, logger)
	if err != nil {
		logger.PrintWarning("Plan capture failed for %s (%s connection): %s", report.OperationID, strategy, err)
		return nil
	}

	return plan
}

// resolveConnection - Connection strategy selection, in priority order:
// (a) explicitly configured connection string, (b) the still-open connection
// handle attached to the operation, (c) a connection string recovered from
// the owning data context's capability interface, (d) the configured fallback
// resolver. The second return value reports whether the connection was newly
// opened and must be closed by the caller.
func resolveConnection(ctx context.Context, report *state.SlowQueryReport, conf *config.Config, logger *util.Logger) (*sql.DB, bool, string) {
	if conf.DbURL != "" {
		db, err := EstablishConnection(ctx, conf.DbURL)
		if err != nil {
			logger.PrintWarning("Could not open configured plan capture connection: %s", err)
			return nil, false, ""
		}
		return db, true, "configured"
	}

	if report.Connection != nil {
		return report.Connection, false, "reused"
	}

	if report.Source != nil {
		if connectionString := report.Source.ConnectionString(); connectionString != "" {
			db, err := EstablishConnection(ctx, connectionString)
			if err != nil {
				logger.PrintWarning("Could not open data context plan capture connection: %s", err)
				return nil, false, ""
			}
			return db, true, "data context"
		}
	}

	if conf.FallbackConnectionString != nil {
		if connectionString := conf.FallbackConnectionString(); connectionString != "" {
			db, err := EstablishConnection(ctx, connectionString)
			if err != nil {
				logger.PrintWarning("Could not open fallback plan capture connection: %s", err)
				return nil, false, ""
			}
			return db, true, "fallback"
		}
	}

	return nil, false, ""
}
