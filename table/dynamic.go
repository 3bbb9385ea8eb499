package table

import (
	"context"
	"fmt"

	"github.com/artpar/tablekit/adapters/clock"
	"github.com/artpar/tablekit/ports"
	"github.com/artpar/tablekit/row"
)

// DefaultBatchSize is the insertMany threshold: fewer rows insert
// directly, this many or more go through batches inside one internal
// transaction.
const DefaultBatchSize = 500

// Dynamic is a writable table: the Table read surface plus insert,
// update with audit stamping, and delete.
type Dynamic struct {
	Table
	clock       ports.Clock
	updatedCols []string
}

// DynamicOption configures a Dynamic blueprint.
type DynamicOption func(*Dynamic)

// WithClock overrides the clock used for updated-column stamping.
func WithClock(c ports.Clock) DynamicOption {
	return func(d *Dynamic) { d.clock = c }
}

// NewDynamic builds an unconnected writable table blueprint. The list
// of updated-kind columns is computed here and reused on every update.
func NewDynamic(name string, schema row.Schema, create CreateFunc, opts ...DynamicOption) *Dynamic {
	d := &Dynamic{
		Table:       *New(name, schema, create),
		clock:       clock.Real{},
		updatedCols: schema.ColumnsOf(row.KindUpdated),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect returns an independent bound clone.
func (d *Dynamic) Connect(conn ports.Connection) *Dynamic {
	clone := *d
	clone.Table.conn = conn
	return &clone
}

// Bind satisfies the session member contract.
func (d *Dynamic) Bind(conn ports.Connection) any { return d.Connect(conn) }

// Insert writes one user-shape row and returns it as stored, in user
// shape.
func (d *Dynamic) Insert(ctx context.Context, rec row.Row) (row.Row, error) {
	conn, err := d.connection()
	if err != nil {
		return nil, err
	}
	stored, err := d.conv.ToStorage(row.Insert, rec)
	if err != nil {
		return nil, err
	}
	out, err := conn.Table(d.name).Insert(ctx, []ports.Row{stored})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInsertFailed, d.name)
	}
	return d.conv.ToUser(row.Select, out[0])
}

// BatchObserver is invoked before each batch of an insertMany run with
// the zero-based batch number and the user-shape rows about to go in.
type BatchObserver func(batch int, rows []row.Row)

// InsertOption configures InsertMany.
type InsertOption func(*insertOptions)

type insertOptions struct {
	batchSize int
	onBatch   BatchObserver
}

// WithBatchSize overrides the DefaultBatchSize threshold.
func WithBatchSize(n int) InsertOption {
	return func(o *insertOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithBatchObserver registers a per-batch progress callback.
func WithBatchObserver(fn BatchObserver) InsertOption {
	return func(o *insertOptions) { o.onBatch = fn }
}

// InsertMany writes the given rows. When len(recs) is at least the
// batch size, the rows go in as sequential batches inside one internal
// transaction, so either every batch commits or none do; below the
// threshold a single direct insert runs without transaction overhead.
// Returned rows are in user shape, insertion order preserved.
func (d *Dynamic) InsertMany(ctx context.Context, recs []row.Row, opts ...InsertOption) ([]row.Row, error) {
	conn, err := d.connection()
	if err != nil {
		return nil, err
	}
	o := insertOptions{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}

	stored, err := d.conv.ToStorageSlice(row.Insert, recs)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	if len(recs) < o.batchSize {
		out, err := conn.Table(d.name).Insert(ctx, stored)
		if err != nil {
			return nil, err
		}
		return d.conv.ToUserSlice(row.Select, out)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}

	var out []ports.Row
	for batch, offset := 0, 0; offset < len(stored); batch, offset = batch+1, offset+o.batchSize {
		end := offset + o.batchSize
		if end > len(stored) {
			end = len(stored)
		}
		if o.onBatch != nil {
			o.onBatch(batch, recs[offset:end])
		}
		inserted, err := tx.Table(d.name).Insert(ctx, stored[offset:end])
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return nil, fmt.Errorf("batch %d: %w (rollback: %v)", batch, err, rbErr)
			}
			return nil, fmt.Errorf("batch %d: %w", batch, err)
		}
		out = append(out, inserted...)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d.conv.ToUserSlice(row.Select, out)
}

// Update modifies the row with the given id and returns it in user
// shape, or (nil, nil) when nothing matched. Every updated-kind column
// is stamped with the current time.
func (d *Dynamic) Update(ctx context.Context, id int64, rec row.Row) (row.Row, error) {
	conn, err := d.connection()
	if err != nil {
		return nil, err
	}
	if d.idCol == "" {
		return nil, fmt.Errorf("table %s: no identity column", d.name)
	}
	values, err := d.updateValues(rec)
	if err != nil {
		return nil, err
	}
	// No surviving columns to set: report the row as-is instead of a
	// phantom no-match.
	if len(values) == 0 {
		return d.Select(ctx, id)
	}
	out, err := conn.Table(d.name).Where(ports.Row{d.idCol: id}).Update(ctx, values)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return d.conv.ToUser(row.Select, out[0])
}

// UpdateBy modifies every row matching the user-shape condition and
// returns the updated rows in user shape.
func (d *Dynamic) UpdateBy(ctx context.Context, cond, rec row.Row) ([]row.Row, error) {
	conn, err := d.connection()
	if err != nil {
		return nil, err
	}
	where, err := d.conv.ToStorage(row.Where, cond)
	if err != nil {
		return nil, err
	}
	values, err := d.updateValues(rec)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return d.SelectBy(ctx, cond)
	}
	out, err := conn.Table(d.name).Where(where).Update(ctx, values)
	if err != nil {
		return nil, err
	}
	return d.conv.ToUserSlice(row.Select, out)
}

// updateValues converts the payload to storage shape and stamps the
// audit columns. Stamping happens after conversion: the converter's
// update shape never carries non-modifiable columns, so the stamps are
// added to the storage values directly.
func (d *Dynamic) updateValues(rec row.Row) (ports.Row, error) {
	values, err := d.conv.ToStorage(row.Update, rec)
	if err != nil {
		return nil, err
	}
	now := d.clock.Now().UTC()
	for _, name := range d.updatedCols {
		values[name] = now
	}
	return values, nil
}

// Delete removes the row with the given id. The count is 0 when
// nothing matched.
func (d *Dynamic) Delete(ctx context.Context, id int64) (int64, error) {
	conn, err := d.connection()
	if err != nil {
		return 0, err
	}
	if d.idCol == "" {
		return 0, fmt.Errorf("table %s: no identity column", d.name)
	}
	return conn.Table(d.name).Where(ports.Row{d.idCol: id}).Delete(ctx)
}

// DeleteBy removes every row matching the user-shape condition.
func (d *Dynamic) DeleteBy(ctx context.Context, cond row.Row) (int64, error) {
	conn, err := d.connection()
	if err != nil {
		return 0, err
	}
	where, err := d.conv.ToStorage(row.Where, cond)
	if err != nil {
		return 0, err
	}
	return conn.Table(d.name).Where(where).Delete(ctx)
}
