package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/artpar/tablekit/ports"
)

// query accumulates one statement against a single table. It is
// single-use and not safe for concurrent use.
type query struct {
	c     *conn
	table string
	cols  []string
	cond  ports.Row
}

// Where adds equality conditions. A nil value matches SQL NULL.
func (q *query) Where(cond ports.Row) ports.Query {
	if q.cond == nil {
		q.cond = make(ports.Row, len(cond))
	}
	for k, v := range cond {
		q.cond[k] = v
	}
	return q
}

// Columns restricts the projection.
func (q *query) Columns(cols ...string) ports.Query {
	q.cols = append(q.cols, cols...)
	return q
}

// All executes a select and returns every matching row.
func (q *query) All(ctx context.Context) ([]ports.Row, error) {
	text, args := q.selectSQL("")
	rows, err := q.queryRows(ctx, "select", text, args)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// First executes a select limited to one row.
func (q *query) First(ctx context.Context) (ports.Row, error) {
	text, args := q.selectSQL(" LIMIT 1")
	rows, err := q.queryRows(ctx, "select", text, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count returns the number of matching rows.
func (q *query) Count(ctx context.Context) (int64, error) {
	where, args := q.whereSQL()
	text := "SELECT COUNT(*) FROM " + quoteIdent(q.table) + where

	var n int64
	err := q.observe(ctx, "count", text, func(ctx context.Context) error {
		rows, err := q.c.exec.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return rows.Err()
		}
		if err := rows.Scan(&n); err != nil {
			return err
		}
		return rows.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.table, err)
	}
	return n, nil
}

// Insert writes the given rows one statement each, returning them as
// stored. Rows may declare different column subsets; omitted columns
// take their table defaults. Multi-row inserts on an autocommit
// connection run inside their own transaction, so a failure mid-slice
// leaves nothing behind.
func (q *query) Insert(ctx context.Context, recs []ports.Row) ([]ports.Row, error) {
	if len(recs) > 1 && q.c.tx == nil {
		sub, err := q.c.Begin(ctx)
		if err != nil {
			return nil, err
		}
		out, err := (&query{c: sub.(*conn), table: q.table}).Insert(ctx, recs)
		if err != nil {
			if rbErr := sub.Rollback(); rbErr != nil {
				return nil, fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
			return nil, err
		}
		if err := sub.Commit(); err != nil {
			return nil, err
		}
		return out, nil
	}

	var out []ports.Row
	for i, rec := range recs {
		keys := sortedKeys(rec)
		args := make([]any, 0, len(keys))
		quoted := make([]string, 0, len(keys))
		marks := make([]string, 0, len(keys))
		for _, k := range keys {
			quoted = append(quoted, quoteIdent(k))
			marks = append(marks, "?")
			args = append(args, rec[k])
		}

		var text string
		if len(keys) == 0 {
			text = "INSERT INTO " + quoteIdent(q.table) + " DEFAULT VALUES RETURNING *"
		} else {
			text = "INSERT INTO " + quoteIdent(q.table) +
				" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ") RETURNING *"
		}

		rows, err := q.queryRows(ctx, "insert", text, args)
		if err != nil {
			return nil, fmt.Errorf("insert %s row %d: %w", q.table, i, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// Update applies values to every matching row and returns the updated
// rows.
func (q *query) Update(ctx context.Context, values ports.Row) ([]ports.Row, error) {
	keys := sortedKeys(values)
	if len(keys) == 0 {
		return nil, nil
	}
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		sets = append(sets, quoteIdent(k)+" = ?")
		args = append(args, values[k])
	}
	where, whereArgs := q.whereSQL()
	args = append(args, whereArgs...)

	text := "UPDATE " + quoteIdent(q.table) + " SET " + strings.Join(sets, ", ") + where + " RETURNING *"
	rows, err := q.queryRows(ctx, "update", text, args)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", q.table, err)
	}
	return rows, nil
}

// Delete removes matching rows.
func (q *query) Delete(ctx context.Context) (int64, error) {
	where, args := q.whereSQL()
	text := "DELETE FROM " + quoteIdent(q.table) + where

	var affected int64
	err := q.observe(ctx, "delete", text, func(ctx context.Context) error {
		res, err := q.c.exec.ExecContext(ctx, text, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", q.table, err)
	}
	return affected, nil
}

// selectSQL renders the projection and where clause.
func (q *query) selectSQL(suffix string) (string, []any) {
	proj := "*"
	if len(q.cols) > 0 {
		quoted := make([]string, len(q.cols))
		for i, c := range q.cols {
			quoted[i] = quoteIdent(c)
		}
		proj = strings.Join(quoted, ", ")
	}
	where, args := q.whereSQL()
	return "SELECT " + proj + " FROM " + quoteIdent(q.table) + where + suffix, args
}

// whereSQL renders accumulated conditions with keys in sorted order so
// identical conditions produce identical statements.
func (q *query) whereSQL() (string, []any) {
	if len(q.cond) == 0 {
		return "", nil
	}
	keys := sortedKeys(q.cond)
	clauses := make([]string, 0, len(keys))
	var args []any
	for _, k := range keys {
		if q.cond[k] == nil {
			clauses = append(clauses, quoteIdent(k)+" IS NULL")
			continue
		}
		clauses = append(clauses, quoteIdent(k)+" = ?")
		args = append(args, q.cond[k])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// queryRows runs a row-returning statement and scans into maps.
func (q *query) queryRows(ctx context.Context, op, text string, args []any) ([]ports.Row, error) {
	var out []ports.Row
	err := q.observe(ctx, op, text, func(ctx context.Context) error {
		rows, err := q.c.exec.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, q.table, err)
	}
	return out, nil
}

// observe wraps statement execution with logging and metrics.
func (q *query) observe(ctx context.Context, op, text string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	q.c.db.log.Debug().
		Str("table", q.table).
		Str("op", op).
		Str("sql", text).
		Dur("elapsed", elapsed).
		Err(err).
		Msg("statement")

	if m := q.c.db.metrics; m != nil {
		m.QueriesTotal.WithLabelValues(op, q.table).Inc()
		m.QueryDuration.WithLabelValues(op).Observe(elapsed.Seconds())
		if err != nil {
			m.QueryErrors.WithLabelValues(op, q.table).Inc()
		}
	}
	return err
}

// scanRows reads every row into a map, normalizing []byte to string.
func scanRows(rows *sql.Rows) ([]ports.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []ports.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(ports.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func sortedKeys(m ports.Row) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
