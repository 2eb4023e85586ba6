package postgres

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/lib/pq"
)

// Marker prefix for all SQL statements this analyzer issues itself, so they
// are recognizable in server logs and never re-analyzed
const QueryMarkerSQL = "/* efcore-query-analyzer */ "

// ApplicationName - Reported to the server for connections the analyzer opens
const ApplicationName = "efcore_query_analyzer"

// EstablishConnection - Opens a dedicated plan capture connection. The caller
// owns the returned handle and must close it.
func EstablishConnection(ctx context.Context, connectionString string) (*sql.DB, error) {
	connectString := connectionString
	if !strings.HasPrefix(connectString, "postgres://") && !strings.HasPrefix(connectString, "postgresql://") {
		connectString += " application_name=" + ApplicationName
	}

	db, err := sql.Open("postgres", connectString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
