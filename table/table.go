// Package table implements table blueprints: immutable definitions
// that become usable once connected to a query-execution connection.
// Table covers reads, Dynamic adds writes with audit stamping, and
// Static manages a validated in-memory reference dataset loaded in
// phases.
package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/tablekit/ports"
	"github.com/artpar/tablekit/row"
)

// ErrNotConnected is returned when a connection-requiring call is made
// on an unconnected blueprint.
var ErrNotConnected = errors.New("table not connected")

// ErrInsertFailed is returned when the store reports no row for an
// insert.
var ErrInsertFailed = errors.New("insert returned no row")

// ErrNotFound is returned by static-table lookups for unknown keys.
var ErrNotFound = errors.New("not found")

// ErrInvalidRow is returned when a static dataset row fails
// construction-time validation.
var ErrInvalidRow = errors.New("invalid dataset row")

// CreateFunc declares the table's columns to the DDL builder.
type CreateFunc func(ports.TableBuilder)

// Table is the read-only blueprint: identity, schema, and the select
// family. The zero value is unusable; build with New. A Table is
// immutable; Connect returns a bound clone and leaves the receiver
// untouched.
type Table struct {
	name    string
	schema  row.Schema
	columns []string
	conv    row.Converter
	create  CreateFunc
	idCol   string
	conn    ports.Connection
}

// New builds an unconnected table blueprint.
func New(name string, schema row.Schema, create CreateFunc) *Table {
	t := &Table{
		name:    name,
		schema:  schema,
		columns: schema.Columns(),
		conv:    row.NewConverter(schema),
		create:  create,
	}
	if ids := schema.ColumnsOf(row.KindIdentity); len(ids) > 0 {
		t.idCol = ids[0]
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Row returns the table's schema.
func (t *Table) Row() row.Schema { return t.schema }

// Columns returns the column names in schema order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Converter returns the table's row converter.
func (t *Table) Converter() row.Converter { return t.conv }

// As returns the aliased table reference for joins.
func (t *Table) As(alias string) string {
	return t.name + " AS " + alias
}

// On returns the table-qualified column reference.
func (t *Table) On(col string) string {
	return t.name + "." + col
}

// AsOn returns the aliased table reference together with the
// alias-qualified column, for join conditions.
func (t *Table) AsOn(alias, col string) (string, string) {
	return t.As(alias), alias + "." + col
}

// Connected reports whether the table holds a live connection.
func (t *Table) Connected() bool { return t.conn != nil }

// Connect returns an independent clone bound to conn. The receiver
// stays unconnected and may be connected again elsewhere.
func (t *Table) Connect(conn ports.Connection) *Table {
	clone := *t
	clone.conn = conn
	return &clone
}

// Bind satisfies the session member contract.
func (t *Table) Bind(conn ports.Connection) any { return t.Connect(conn) }

func (t *Table) connection() (ports.Connection, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, t.name)
	}
	return t.conn, nil
}

// Select fetches one row by its identity column, in user shape.
// Returns (nil, nil) when nothing matches.
func (t *Table) Select(ctx context.Context, id int64) (row.Row, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}
	if t.idCol == "" {
		return nil, fmt.Errorf("table %s: no identity column", t.name)
	}
	rec, err := conn.Table(t.name).Where(ports.Row{t.idCol: id}).First(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return t.conv.ToUser(row.Select, rec)
}

// SelectBy fetches every row matching the user-shape condition.
func (t *Table) SelectBy(ctx context.Context, cond row.Row) ([]row.Row, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}
	where, err := t.conv.ToStorage(row.Where, cond)
	if err != nil {
		return nil, err
	}
	recs, err := conn.Table(t.name).Where(where).All(ctx)
	if err != nil {
		return nil, err
	}
	return t.conv.ToUserSlice(row.Select, recs)
}

// SelectAll fetches every row in the table.
func (t *Table) SelectAll(ctx context.Context) ([]row.Row, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}
	recs, err := conn.Table(t.name).All(ctx)
	if err != nil {
		return nil, err
	}
	return t.conv.ToUserSlice(row.Select, recs)
}

// Count returns the total number of rows.
func (t *Table) Count(ctx context.Context) (int64, error) {
	conn, err := t.connection()
	if err != nil {
		return 0, err
	}
	return conn.Table(t.name).Count(ctx)
}

// CountOf returns the number of rows matching the user-shape condition.
func (t *Table) CountOf(ctx context.Context, cond row.Row) (int64, error) {
	conn, err := t.connection()
	if err != nil {
		return 0, err
	}
	where, err := t.conv.ToStorage(row.Where, cond)
	if err != nil {
		return 0, err
	}
	return conn.Table(t.name).Where(where).Count(ctx)
}

// Create creates the table using the declaration callback supplied at
// definition time.
func (t *Table) Create(ctx context.Context) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	if t.create == nil {
		return fmt.Errorf("table %s: no create callback", t.name)
	}
	return conn.Schema().CreateTable(ctx, t.name, t.create)
}

// Drop drops the table if it exists.
func (t *Table) Drop(ctx context.Context) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	return conn.Schema().DropTableIfExists(ctx, t.name)
}
