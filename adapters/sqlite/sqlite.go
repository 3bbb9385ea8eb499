// Package sqlite implements the query-execution port over SQLite: a
// chainable statement builder, a DDL schema tool, and nested
// transactions mapped to BEGIN plus SAVEPOINTs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/artpar/tablekit/adapters/metrics"
	"github.com/artpar/tablekit/ports"
)

// ErrCompleted is returned when a committed or rolled back connection
// is asked to do transactional work again.
var ErrCompleted = errors.New("transaction already completed")

// ErrNoTransaction is returned when Commit or Rollback is called on the
// root connection.
var ErrNoTransaction = errors.New("not in a transaction")

// ErrTransactionOpen is returned when Begin is called on the root
// connection while another root transaction is still open. The single
// pooled connection would otherwise block the caller forever.
var ErrTransactionOpen = errors.New("a transaction is already open")

// DB wraps a SQLite database handle plus adapter-wide options.
type DB struct {
	sql     *sql.DB
	log     zerolog.Logger
	metrics *metrics.Collector

	spSeq  uint64     // savepoint name sequence
	mu     sync.Mutex // guards txOpen
	txOpen bool
}

// Option configures a DB.
type Option func(*DB)

// WithLogger attaches a logger; statements log at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(db *DB) { db.log = log }
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(db *DB) { db.metrics = c }
}

// Open creates a new SQLite database handle. Use ":memory:" for an
// in-memory database.
func Open(path string, opts ...Option) (*DB, error) {
	handle, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The layer serializes everything through one connection; more
	// would break in-memory databases and savepoint nesting. Begin on
	// the root fails fast with ErrTransactionOpen while a transaction
	// holds that connection, instead of blocking on the pool.
	handle.SetMaxOpenConns(1)

	db := &DB{sql: handle, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the database handle.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Conn returns the root connection. It is shared and never completes;
// transactional scopes derive from it via Begin.
func (db *DB) Conn() ports.Connection {
	return &conn{db: db, exec: db.sql}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn is one scope of the connection tree: the root (tx == nil), a
// transaction (tx set, savepoint empty) or a nested savepoint.
type conn struct {
	db        *DB
	exec      execer
	tx        *sql.Tx
	savepoint string
	depth     int
	completed bool
}

// Table returns a query builder rooted at the named table.
func (c *conn) Table(name string) ports.Query {
	return &query{c: c, table: name}
}

// Schema returns the DDL builder for this connection.
func (c *conn) Schema() ports.SchemaTool {
	return &schemaTool{c: c}
}

// Begin opens a transaction on the root connection, or a savepoint on
// a transactional one. The returned sub-connection owns the new scope
// exclusively.
func (c *conn) Begin(ctx context.Context) (ports.Connection, error) {
	if c.completed {
		return nil, ErrCompleted
	}

	if c.tx == nil {
		if err := c.db.acquireTx(); err != nil {
			return nil, err
		}
		tx, err := c.db.sql.BeginTx(ctx, nil)
		if err != nil {
			c.db.releaseTx()
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		c.db.log.Debug().Int("depth", 1).Msg("transaction started")
		c.txStarted()
		return &conn{db: c.db, exec: tx, tx: tx, depth: 1}, nil
	}

	// Savepoint names come from a database-wide sequence: sibling
	// scopes of one parent must never share a name, or ROLLBACK TO
	// binds to the wrong mark.
	sp := fmt.Sprintf("tablekit_sp_%d", atomic.AddUint64(&c.db.spSeq, 1))
	if _, err := c.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return nil, fmt.Errorf("savepoint %s: %w", sp, err)
	}
	c.db.log.Debug().Int("depth", c.depth+1).Msg("savepoint started")
	c.txStarted()
	return &conn{db: c.db, exec: c.tx, tx: c.tx, savepoint: sp, depth: c.depth + 1}, nil
}

// Commit finalizes this connection's transaction or savepoint.
func (c *conn) Commit() error {
	if err := c.finishable(); err != nil {
		return err
	}
	c.completed = true

	if c.savepoint != "" {
		if _, err := c.tx.Exec("RELEASE SAVEPOINT " + c.savepoint); err != nil {
			return fmt.Errorf("release savepoint %s: %w", c.savepoint, err)
		}
	} else {
		err := c.tx.Commit()
		c.db.releaseTx()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	c.db.log.Debug().Int("depth", c.depth).Msg("transaction committed")
	c.txCompleted("commit")
	return nil
}

// Rollback aborts this connection's transaction or savepoint.
func (c *conn) Rollback() error {
	if err := c.finishable(); err != nil {
		return err
	}
	c.completed = true

	if c.savepoint != "" {
		if _, err := c.tx.Exec("ROLLBACK TO SAVEPOINT " + c.savepoint); err != nil {
			return fmt.Errorf("rollback to savepoint %s: %w", c.savepoint, err)
		}
		if _, err := c.tx.Exec("RELEASE SAVEPOINT " + c.savepoint); err != nil {
			return fmt.Errorf("release savepoint %s: %w", c.savepoint, err)
		}
	} else {
		err := c.tx.Rollback()
		c.db.releaseTx()
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	c.db.log.Debug().Int("depth", c.depth).Msg("transaction rolled back")
	c.txCompleted("rollback")
	return nil
}

// Completed reports whether Commit or Rollback has been called.
func (c *conn) Completed() bool {
	return c.completed
}

func (c *conn) finishable() error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	if c.completed {
		return ErrCompleted
	}
	return nil
}

func (db *DB) acquireTx() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.txOpen {
		return ErrTransactionOpen
	}
	db.txOpen = true
	return nil
}

func (db *DB) releaseTx() {
	db.mu.Lock()
	db.txOpen = false
	db.mu.Unlock()
}

func (c *conn) txStarted() {
	if c.db.metrics != nil {
		c.db.metrics.TxStartedTotal.Inc()
	}
}

func (c *conn) txCompleted(outcome string) {
	if c.db.metrics != nil {
		c.db.metrics.TxCompletedTotal.WithLabelValues(outcome).Inc()
	}
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + name + `"`
}
