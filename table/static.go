package table

import (
	"context"
	"fmt"
	"sort"

	"github.com/artpar/tablekit/adapters/clock"
	"github.com/artpar/tablekit/ports"
	"github.com/artpar/tablekit/row"
)

// CreatedColumn is the date dimension every static dataset row must
// carry. Rows sharing a value load and unload together.
const CreatedColumn = "created"

// Static is a table backed by a fixed in-memory dataset. The dataset
// is validated once at construction and stays the single source of
// truth; Add and Remove move whole date phases of it in and out of the
// store.
type Static struct {
	Table
	data  map[string]row.Row
	byID  map[int64]row.Row
	keys  []string
	dates []string
}

// NewStatic builds a static table blueprint over the given keyed
// dataset. Validation is fail-fast: the first invalid row aborts
// construction. Every row must carry the identity column as an integer
// >= 1 and a fixed-width date in the created column.
func NewStatic(name string, schema row.Schema, create CreateFunc, data map[string]row.Row) (*Static, error) {
	s := &Static{
		Table: *New(name, schema, create),
		data:  make(map[string]row.Row, len(data)),
		byID:  make(map[int64]row.Row, len(data)),
	}
	if s.idCol == "" {
		return nil, fmt.Errorf("static table %s: schema has no identity column", name)
	}
	if !schema.Has(CreatedColumn) {
		return nil, fmt.Errorf("static table %s: schema has no %q column", name, CreatedColumn)
	}

	// Keys sorted up front so validation errors and phase loads are
	// deterministic.
	s.keys = make([]string, 0, len(data))
	for key := range data {
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)

	seen := make(map[string]bool)
	for _, key := range s.keys {
		rec := data[key]
		id, date, err := validateStaticRow(s.idCol, rec)
		if err != nil {
			return nil, fmt.Errorf("%w: table %s key %q: %v", ErrInvalidRow, name, key, err)
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("%w: table %s key %q: duplicate id %d", ErrInvalidRow, name, key, id)
		}
		s.data[key] = rec
		s.byID[id] = rec
		if !seen[date] {
			seen[date] = true
			s.dates = append(s.dates, date)
		}
	}
	sort.Strings(s.dates)
	return s, nil
}

func validateStaticRow(idCol string, rec row.Row) (int64, string, error) {
	id, ok := asID(rec[idCol])
	if !ok || id < 1 {
		return 0, "", fmt.Errorf("column %q must be an integer >= 1, got %v", idCol, rec[idCol])
	}
	date, ok := rec[CreatedColumn].(string)
	if !ok {
		return 0, "", fmt.Errorf("column %q must be a date string, got %v", CreatedColumn, rec[CreatedColumn])
	}
	if err := clock.ValidateDateOnly(date); err != nil {
		return 0, "", err
	}
	return id, date, nil
}

func asID(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	return 0, false
}

// Connect returns an independent bound clone.
func (s *Static) Connect(conn ports.Connection) *Static {
	clone := *s
	clone.Table.conn = conn
	return &clone
}

// Bind satisfies the session member contract.
func (s *Static) Bind(conn ports.Connection) any { return s.Connect(conn) }

// Data returns the dataset keyed by name. The returned map is a copy;
// the rows themselves are shared and must not be mutated.
func (s *Static) Data() map[string]row.Row {
	out := make(map[string]row.Row, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// GetRow looks a row up by dataset key or numeric id. The returned row
// is a copy; the dataset itself stays frozen.
func (s *Static) GetRow(key any) (row.Row, error) {
	rec, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	out := make(row.Row, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (s *Static) lookup(key any) (row.Row, error) {
	if id, ok := asID(key); ok {
		if rec, found := s.byID[id]; found {
			return rec, nil
		}
		return nil, fmt.Errorf("%w: table %s id %d", ErrNotFound, s.name, id)
	}
	name := fmt.Sprint(key)
	if rec, found := s.data[name]; found {
		return rec, nil
	}
	return nil, fmt.Errorf("%w: table %s key %q", ErrNotFound, s.name, name)
}

// GetID resolves a dataset key or numeric id to the row's id.
func (s *Static) GetID(key any) (int64, error) {
	rec, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	id, _ := asID(rec[s.idCol])
	return id, nil
}

// GetDates returns the distinct created values in ascending order.
// The date format is fixed-width, so lexicographic order is
// chronological.
func (s *Static) GetDates() []string {
	out := make([]string, len(s.dates))
	copy(out, s.dates)
	return out
}

// resolveDate accepts a date string or an index into GetDates.
func (s *Static) resolveDate(dateOrIndex any) (string, error) {
	if idx, ok := asID(dateOrIndex); ok {
		if idx < 0 || idx >= int64(len(s.dates)) {
			return "", fmt.Errorf("%w: table %s date index %d", ErrNotFound, s.name, idx)
		}
		return s.dates[idx], nil
	}
	date := fmt.Sprint(dateOrIndex)
	if err := clock.ValidateDateOnly(date); err != nil {
		return "", err
	}
	return date, nil
}

// Add inserts every dataset row whose created value matches the given
// date (or date index). Rows go in with their dataset ids: the select
// conversion is used so identity and audit columns survive.
func (s *Static) Add(ctx context.Context, dateOrIndex any) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	date, err := s.resolveDate(dateOrIndex)
	if err != nil {
		return err
	}

	var batch []ports.Row
	for _, key := range s.keys {
		rec := s.data[key]
		if rec[CreatedColumn] != date {
			continue
		}
		stored, err := s.conv.ToStorage(row.Select, rec)
		if err != nil {
			return fmt.Errorf("table %s key %q: %w", s.name, key, err)
		}
		batch = append(batch, stored)
	}
	if len(batch) == 0 {
		return nil
	}
	if _, err := conn.Table(s.name).Insert(ctx, batch); err != nil {
		return err
	}
	return nil
}

// Remove deletes every stored row whose created value matches the
// given date (or date index).
func (s *Static) Remove(ctx context.Context, dateOrIndex any) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	date, err := s.resolveDate(dateOrIndex)
	if err != nil {
		return err
	}
	_, err = conn.Table(s.name).Where(ports.Row{CreatedColumn: date}).Delete(ctx)
	return err
}

// Initialize creates the table and loads the earliest date phase.
func (s *Static) Initialize(ctx context.Context) error {
	if err := s.Create(ctx); err != nil {
		return err
	}
	if len(s.dates) == 0 {
		return nil
	}
	return s.Add(ctx, 0)
}
