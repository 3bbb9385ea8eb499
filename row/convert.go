package row

import (
	"errors"
	"fmt"
)

// ErrValueMissing is returned when a required column has no value for
// an action that demands one.
var ErrValueMissing = errors.New("required value missing")

// ErrValueNull is returned when a required column is explicitly null.
var ErrValueNull = errors.New("required value is null")

// Action names the row shape being produced. Select and Where cover
// every schema column; Insert and Update are restricted to modifiable
// columns.
type Action int

const (
	Select Action = iota
	Where
	Insert
	Update
)

// String returns the action name used in error messages.
func (a Action) String() string {
	switch a {
	case Select:
		return "select"
	case Where:
		return "where"
	case Insert:
		return "insert"
	case Update:
		return "update"
	default:
		return "unknown"
	}
}

// strict reports whether the action rejects absent or null values on
// required columns. Where and Update treat a missing value as "not
// constrained" / "not changed" and simply drop it.
func (a Action) strict() bool {
	return a == Select || a == Insert
}

// Converter translates records between user and storage shape for one
// schema. It is stateless and safe for concurrent use.
type Converter struct {
	schema Schema
}

// NewConverter returns a converter over the given schema.
func NewConverter(schema Schema) Converter {
	return Converter{schema: schema}
}

// ToUser converts a storage-shape record to user shape for the action.
func (c Converter) ToUser(action Action, rec Row) (Row, error) {
	return c.convert(action, rec, func(col Column) Transform { return col.toUser })
}

// ToStorage converts a user-shape record to storage shape for the action.
func (c Converter) ToStorage(action Action, rec Row) (Row, error) {
	return c.convert(action, rec, func(col Column) Transform { return col.toStorage })
}

// ToUserSlice converts every record in order. A nil slice stays nil.
func (c Converter) ToUserSlice(action Action, recs []Row) ([]Row, error) {
	if recs == nil {
		return nil, nil
	}
	out := make([]Row, len(recs))
	for i, rec := range recs {
		converted, err := c.ToUser(action, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}

// ToStorageSlice converts every record in order. A nil slice stays nil.
func (c Converter) ToStorageSlice(action Action, recs []Row) ([]Row, error) {
	if recs == nil {
		return nil, nil
	}
	out := make([]Row, len(recs))
	for i, rec := range recs {
		converted, err := c.ToStorage(action, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}

// convert walks the schema columns relevant to the action and applies
// the per-field policy. The input record is never mutated and the
// output contains exactly the columns that pass policy.
func (c Converter) convert(action Action, rec Row, pick func(Column) Transform) (Row, error) {
	out := make(Row, c.schema.Len())
	for _, name := range c.schema.names {
		col := c.schema.cols[name]
		if (action == Insert || action == Update) && !col.Modifiable() {
			continue
		}

		v, present := rec[name]
		if !present {
			if col.IsRequired() && action.strict() {
				return nil, fmt.Errorf("%w: column %q (%s)", ErrValueMissing, name, action)
			}
			continue
		}
		if v == nil {
			if col.IsRequired() {
				return nil, fmt.Errorf("%w: column %q (%s)", ErrValueNull, name, action)
			}
			out[name] = nil
			continue
		}

		fn := pick(col)
		if fn == nil {
			out[name] = v
			continue
		}
		converted, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("column %q (%s): %w", name, action, err)
		}
		out[name] = converted
	}
	return out, nil
}
