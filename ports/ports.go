// Package ports defines interfaces (contracts) between the data-access
// layer and its collaborators. Implementations live in adapters/.
package ports

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher abstracts password hashing.
type Hasher interface {
	// Hash generates a hash from plaintext.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Query Execution Port
// -----------------------------------------------------------------------------

// Row is a single record in driver-native (storage) shape.
type Row = map[string]any

// Connection is a handle to the query-execution collaborator. A root
// connection issues statements directly; Begin derives an exclusive
// sub-connection scoped to one transaction.
type Connection interface {
	// Table returns a query builder rooted at the named table.
	Table(name string) Query

	// Schema returns the DDL builder for this connection.
	Schema() SchemaTool

	// Begin opens a transaction (or nested savepoint) and returns the
	// sub-connection owning it.
	Begin(ctx context.Context) (Connection, error)

	// Commit finalizes the transaction owned by this connection.
	Commit() error

	// Rollback aborts the transaction owned by this connection.
	Rollback() error

	// Completed reports whether Commit or Rollback has been called.
	Completed() bool
}

// Query builds and executes one statement against a single table.
// Builder methods return the receiver for chaining; terminal methods
// execute. Query values are driver-native; callers are expected to
// convert rich values before handing them over.
type Query interface {
	// Where adds equality conditions. A nil value matches SQL NULL.
	Where(cond Row) Query

	// Columns restricts the projection. Defaults to all columns.
	Columns(cols ...string) Query

	// All executes a select and returns every matching row.
	All(ctx context.Context) ([]Row, error)

	// First executes a select limited to one row. Returns (nil, nil)
	// when nothing matches.
	First(ctx context.Context) (Row, error)

	// Count returns the number of matching rows.
	Count(ctx context.Context) (int64, error)

	// Insert writes the given rows and returns them as stored.
	Insert(ctx context.Context, rows []Row) ([]Row, error)

	// Update applies values to every matching row and returns the
	// updated rows.
	Update(ctx context.Context, values Row) ([]Row, error)

	// Delete removes matching rows and returns how many went away.
	Delete(ctx context.Context) (int64, error)
}

// SchemaTool issues DDL statements.
type SchemaTool interface {
	// CreateTable creates a table, with columns declared by fn.
	CreateTable(ctx context.Context, name string, fn func(TableBuilder)) error

	// AlterTable adds columns to an existing table.
	AlterTable(ctx context.Context, name string, fn func(TableBuilder)) error

	// DropTableIfExists drops a table, ignoring absence.
	DropTableIfExists(ctx context.Context, name string) error
}

// TableBuilder declares columns inside a CreateTable/AlterTable callback.
type TableBuilder interface {
	// Increments declares an auto-incrementing integer primary key.
	Increments(name string) ColumnBuilder

	// String declares a VARCHAR-ish text column.
	String(name string) ColumnBuilder

	// Text declares an unbounded text column.
	Text(name string) ColumnBuilder

	// Integer declares an integer column.
	Integer(name string) ColumnBuilder

	// Boolean declares a boolean column (stored as 0/1).
	Boolean(name string) ColumnBuilder

	// Timestamp declares a datetime column.
	Timestamp(name string) ColumnBuilder

	// Date declares a date-only column.
	Date(name string) ColumnBuilder

	// UUID declares a column holding UUID strings.
	UUID(name string) ColumnBuilder
}

// ColumnBuilder refines a declared column.
type ColumnBuilder interface {
	NotNull() ColumnBuilder
	Unique() ColumnBuilder
	Primary() ColumnBuilder
	Default(value any) ColumnBuilder
}

// Raw marks a default value as a SQL expression to be emitted verbatim,
// e.g. Default(Raw("CURRENT_TIMESTAMP")).
type Raw string
