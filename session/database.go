// Package session implements the transactional scope model: a Database
// owns named table blueprints and produces, from one root connection, a
// tree of scopes whose members bind lazily to the scope's own
// connection. System mirrors Database one layer up for services.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/tablekit/ports"
)

// ErrTransactionState is the common sentinel for scope lifecycle
// violations; ErrClosed and ErrNotTransaction both wrap it.
var ErrTransactionState = errors.New("invalid transaction state")

// ErrClosed is returned when a committed or rolled back scope (or a
// scope with a closed ancestor) is asked to do transactional work.
var ErrClosed = fmt.Errorf("%w: scope is closed", ErrTransactionState)

// ErrNotTransaction is returned when Commit or Rollback is called on
// the base scope.
var ErrNotTransaction = fmt.Errorf("%w: not a transaction scope", ErrTransactionState)

// ErrUnknownMember is returned when a scope is asked for a name it
// does not own.
var ErrUnknownMember = errors.New("unknown member")

// Binder is the blueprint contract: anything that can produce an
// independent copy bound to a connection. *table.Table, *table.Dynamic
// and *table.Static all satisfy it.
type Binder interface {
	Bind(conn ports.Connection) any
}

// Member pairs a name with its blueprint, preserving registration
// order.
type Member struct {
	Name      string
	Blueprint Binder
}

// Database is one scope of the transaction hierarchy. The base scope
// wraps the root connection at level 0; Transaction derives children
// with exclusive sub-connections. Blueprints are shared across the
// whole tree and never mutated; bound members are scope-local.
type Database struct {
	conn       ports.Connection
	parent     *Database
	level      int
	ownClosed  bool
	names      []string
	blueprints map[string]Binder
	bound      map[string]any
	log        zerolog.Logger
}

// Option configures a Database.
type Option func(*Database)

// WithLogger attaches a logger; scope lifecycle logs at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Database) { d.log = log }
}

// New builds the base scope over the given connection. Duplicate
// member names are a programming error and panic.
func New(conn ports.Connection, members []Member, opts ...Option) *Database {
	d := &Database{
		conn:       conn,
		names:      make([]string, 0, len(members)),
		blueprints: make(map[string]Binder, len(members)),
		bound:      make(map[string]any),
		log:        zerolog.Nop(),
	}
	for _, m := range members {
		if _, dup := d.blueprints[m.Name]; dup {
			panic(fmt.Sprintf("session: duplicate member %q", m.Name))
		}
		d.names = append(d.names, m.Name)
		d.blueprints[m.Name] = m.Blueprint
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Conn returns the scope's connection handle.
func (d *Database) Conn() ports.Connection { return d.conn }

// Level returns the nesting depth; the base scope is 0.
func (d *Database) Level() int { return d.level }

// Closed reports whether this scope, or any ancestor, has been
// committed or rolled back. It is computed on every call so an
// ancestor closing is visible here immediately.
func (d *Database) Closed() bool {
	if d.ownClosed {
		return true
	}
	if d.parent != nil {
		return d.parent.Closed()
	}
	return false
}

// Names returns the member names in registration order.
func (d *Database) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Has reports whether the scope owns the named member.
func (d *Database) Has(name string) bool {
	_, ok := d.blueprints[name]
	return ok
}

// Get returns the named member bound to this scope's connection. The
// binding happens on first access and is memoized for the scope's
// lifetime; sibling scopes never share bound instances.
func (d *Database) Get(name string) (any, error) {
	if v, ok := d.bound[name]; ok {
		return v, nil
	}
	bp, ok := d.blueprints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMember, name)
	}
	v := bp.Bind(d.conn)
	d.bound[name] = v
	return v, nil
}

// Get returns the named member of d as a T.
func Get[T any](d *Database, name string) (T, error) {
	var zero T
	v, err := d.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("member %q is %T, not %T", name, v, zero)
	}
	return t, nil
}

// Transaction derives a child scope one level deeper, owning an
// exclusive sub-connection. Only an active scope can open one.
func (d *Database) Transaction(ctx context.Context) (*Database, error) {
	if d.Closed() {
		return nil, ErrClosed
	}
	sub, err := d.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	child := &Database{
		conn:       sub,
		parent:     d,
		level:      d.level + 1,
		names:      d.names,
		blueprints: d.blueprints,
		bound:      make(map[string]any),
		log:        d.log,
	}
	d.log.Debug().Int("level", child.level).Msg("transaction scope opened")
	return child, nil
}

// Commit finalizes this scope's transaction. The scope is closed
// afterwards even if the underlying commit fails.
func (d *Database) Commit() error {
	if err := d.finishable(); err != nil {
		return err
	}
	d.ownClosed = true
	if err := d.conn.Commit(); err != nil {
		return err
	}
	d.log.Debug().Int("level", d.level).Msg("scope committed")
	return nil
}

// Rollback aborts this scope's transaction. The scope is closed
// afterwards even if the underlying rollback fails.
func (d *Database) Rollback() error {
	if err := d.finishable(); err != nil {
		return err
	}
	d.ownClosed = true
	if err := d.conn.Rollback(); err != nil {
		return err
	}
	d.log.Debug().Int("level", d.level).Msg("scope rolled back")
	return nil
}

func (d *Database) finishable() error {
	if d.parent == nil {
		return ErrNotTransaction
	}
	if d.Closed() {
		return ErrClosed
	}
	return nil
}
