package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/tablekit/ports"
)

// schemaTool issues DDL on its connection.
type schemaTool struct {
	c *conn
}

// CreateTable creates a table with columns declared by fn.
func (s *schemaTool) CreateTable(ctx context.Context, name string, fn func(ports.TableBuilder)) error {
	tb := &tableBuilder{}
	fn(tb)
	if len(tb.cols) == 0 {
		return fmt.Errorf("create table %s: no columns declared", name)
	}

	defs := make([]string, len(tb.cols))
	for i, col := range tb.cols {
		defs[i] = col.render()
	}
	text := "CREATE TABLE " + quoteIdent(name) + " (" + strings.Join(defs, ", ") + ")"
	if _, err := s.c.exec.ExecContext(ctx, text); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	s.c.db.log.Debug().Str("table", name).Msg("table created")
	return nil
}

// AlterTable adds columns to an existing table. SQLite allows one
// ADD COLUMN per statement, so each declaration runs separately.
func (s *schemaTool) AlterTable(ctx context.Context, name string, fn func(ports.TableBuilder)) error {
	tb := &tableBuilder{}
	fn(tb)
	for _, col := range tb.cols {
		text := "ALTER TABLE " + quoteIdent(name) + " ADD COLUMN " + col.render()
		if _, err := s.c.exec.ExecContext(ctx, text); err != nil {
			return fmt.Errorf("alter table %s: %w", name, err)
		}
	}
	return nil
}

// DropTableIfExists drops a table, ignoring absence.
func (s *schemaTool) DropTableIfExists(ctx context.Context, name string) error {
	if _, err := s.c.exec.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	s.c.db.log.Debug().Str("table", name).Msg("table dropped")
	return nil
}

// tableBuilder collects column declarations.
type tableBuilder struct {
	cols []*colDef
}

func (tb *tableBuilder) add(name, typ string) *colDef {
	col := &colDef{name: name, typ: typ}
	tb.cols = append(tb.cols, col)
	return col
}

func (tb *tableBuilder) Increments(name string) ports.ColumnBuilder {
	col := tb.add(name, "INTEGER")
	col.autoincrement = true
	return col
}

func (tb *tableBuilder) String(name string) ports.ColumnBuilder    { return tb.add(name, "TEXT") }
func (tb *tableBuilder) Text(name string) ports.ColumnBuilder      { return tb.add(name, "TEXT") }
func (tb *tableBuilder) Integer(name string) ports.ColumnBuilder   { return tb.add(name, "INTEGER") }
func (tb *tableBuilder) Boolean(name string) ports.ColumnBuilder   { return tb.add(name, "INTEGER") }
func (tb *tableBuilder) Timestamp(name string) ports.ColumnBuilder { return tb.add(name, "DATETIME") }
func (tb *tableBuilder) Date(name string) ports.ColumnBuilder      { return tb.add(name, "TEXT") }
func (tb *tableBuilder) UUID(name string) ports.ColumnBuilder      { return tb.add(name, "TEXT") }

// colDef is one column declaration.
type colDef struct {
	name          string
	typ           string
	autoincrement bool
	notNull       bool
	unique        bool
	primary       bool
	hasDefault    bool
	def           any
}

func (d *colDef) NotNull() ports.ColumnBuilder {
	d.notNull = true
	return d
}

func (d *colDef) Unique() ports.ColumnBuilder {
	d.unique = true
	return d
}

func (d *colDef) Primary() ports.ColumnBuilder {
	d.primary = true
	return d
}

func (d *colDef) Default(value any) ports.ColumnBuilder {
	d.hasDefault = true
	d.def = value
	return d
}

func (d *colDef) render() string {
	parts := []string{quoteIdent(d.name), d.typ}
	if d.autoincrement {
		parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
	} else if d.primary {
		parts = append(parts, "PRIMARY KEY")
	}
	if d.notNull {
		parts = append(parts, "NOT NULL")
	}
	if d.unique {
		parts = append(parts, "UNIQUE")
	}
	if d.hasDefault {
		parts = append(parts, "DEFAULT "+renderLiteral(d.def))
	}
	return strings.Join(parts, " ")
}

func renderLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case ports.Raw:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", x)
	}
}
