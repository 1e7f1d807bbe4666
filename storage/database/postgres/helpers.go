package pgrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/darasa/core"
)

// selectCtx runs query and scans all rows into dest (a pointer to a slice of
// structs) using sqlx struct scanning on db tags.
func selectCtx(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	if err = sqlx.StructScan(rows, dest); err != nil {
		return err
	}
	return rows.Err()
}

// countCtx runs a single-value COUNT query.
func countCtx(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	var count int
	err := exec.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// existsCtx runs a single-value EXISTS query.
func existsCtx(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var exists bool
	err := exec.QueryRowContext(ctx, query, args...).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return exists, err
}

// where joins conditions with AND into a WHERE clause, empty for none.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// orderBy builds an ORDER BY clause from the requested ordering, falling back
// to defaults. Identifiers are quoted; direction comes from DBOrdering.
func orderBy(ordering, defaults []core.DBOrdering) string {
	if len(ordering) == 0 {
		ordering = defaults
	}
	if len(ordering) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		direction := "DESC"
		if ord.Ascending {
			direction = "ASC"
		}
		clauses = append(clauses, strmangle.IdentQuote('"', '"', ord.Field)+" "+direction)
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// newestFirst is the default list ordering: most recent first, id tie-break.
func newestFirst(tsField string) []core.DBOrdering {
	return []core.DBOrdering{
		{Field: tsField},
		{Field: "id", Ascending: true},
	}
}
