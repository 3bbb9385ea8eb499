// Package row implements the typed row model: column specifications,
// ordered schemas, and the converter that moves records between the
// user representation (bool, int64, RFC3339 strings, UUID strings) and
// the storage representation native to the SQL driver.
package row

import (
	"errors"
	"fmt"
	"time"

	"github.com/artpar/tablekit/adapters/clock"
	"github.com/artpar/tablekit/adapters/idgen"
)

// ErrUnsupportedKind is returned when a column factory receives an
// unknown kind.
var ErrUnsupportedKind = errors.New("unsupported column kind")

// Kind is the semantic category of a column. It drives the default
// value, modifiability, and the transform pair crossing the
// user/storage boundary.
type Kind int

const (
	// KindIdentity is the auto-incrementing integer primary key.
	KindIdentity Kind = iota

	// KindExternalID is a UUID exposed outside the system.
	KindExternalID

	// KindCreated is the creation audit timestamp.
	KindCreated

	// KindUpdated is the modification audit timestamp, stamped on update.
	KindUpdated

	// KindBoolean is stored as a 0/1 integer.
	KindBoolean

	// KindInteger is a plain integer column.
	KindInteger

	// KindString is a plain text column.
	KindString

	// KindUUID holds UUID strings that are not the external id.
	KindUUID

	// KindTimestamp is a non-audit datetime column.
	KindTimestamp

	// KindDate is a date-only column in fixed-width form.
	KindDate
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindExternalID:
		return "external-id"
	case KindCreated:
		return "created"
	case KindUpdated:
		return "updated"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindUUID:
		return "uuid"
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Modifiable reports whether columns of this kind may appear in insert
// and update payloads. Identity and audit columns are owned by the
// store and never modifiable.
func (k Kind) Modifiable() bool {
	switch k {
	case KindIdentity, KindExternalID, KindCreated, KindUpdated:
		return false
	}
	return true
}

// Transform converts a single non-null value across the user/storage
// boundary.
type Transform func(v any) (any, error)

// Column is one field's specification: kind, default, requiredness and
// the paired transforms. The zero value is not usable; build columns
// through ColumnOf or the kind helpers.
type Column struct {
	kind      Kind
	def       any
	required  bool
	toUser    Transform
	toStorage Transform
}

// Kind returns the column's semantic kind.
func (c Column) Kind() Kind { return c.kind }

// Default returns the value used when the DDL builder declares the
// column with a default.
func (c Column) Default() any { return c.def }

// IsRequired reports whether the column must be present and non-null
// for select and insert actions.
func (c Column) IsRequired() bool { return c.required }

// Modifiable reports whether the column may appear in insert/update
// payloads. Derived solely from the kind.
func (c Column) Modifiable() bool { return c.kind.Modifiable() }

// Required returns a copy of the column marked required.
func (c Column) Required() Column {
	c.required = true
	return c
}

// WithDefault returns a copy of the column with the given default.
func (c Column) WithDefault(v any) Column {
	c.def = v
	return c
}

// WithTransforms returns a copy of the column with custom transforms.
func (c Column) WithTransforms(toUser, toStorage Transform) Column {
	c.toUser = toUser
	c.toStorage = toStorage
	return c
}

// ColumnOf builds the default column specification for a kind. Unknown
// kinds fail with ErrUnsupportedKind.
func ColumnOf(kind Kind) (Column, error) {
	switch kind {
	case KindIdentity:
		return Column{kind: kind, required: true, toUser: asInteger, toStorage: asInteger}, nil
	case KindExternalID:
		return Column{kind: kind, def: idgen.Empty, required: true, toUser: asString, toStorage: asString}, nil
	case KindCreated, KindUpdated:
		return Column{kind: kind, toUser: timeToUser, toStorage: timeToStorage}, nil
	case KindBoolean:
		return Column{kind: kind, def: false, toUser: boolToUser, toStorage: boolToStorage}, nil
	case KindInteger:
		return Column{kind: kind, def: int64(0), toUser: asInteger, toStorage: asInteger}, nil
	case KindString:
		return Column{kind: kind, def: "", toUser: asString, toStorage: asString}, nil
	case KindUUID:
		return Column{kind: kind, def: idgen.Empty, toUser: asString, toStorage: asString}, nil
	case KindTimestamp:
		return Column{kind: kind, toUser: timeToUser, toStorage: timeToStorage}, nil
	case KindDate:
		return Column{kind: kind, toUser: asDate, toStorage: asDate}, nil
	}
	return Column{}, fmt.Errorf("%w: %d", ErrUnsupportedKind, kind)
}

// MustColumn is ColumnOf for statically known kinds; it panics on an
// unknown kind.
func MustColumn(kind Kind) Column {
	c, err := ColumnOf(kind)
	if err != nil {
		panic(err)
	}
	return c
}

// Kind helpers for schema literals.

// Identity returns the auto-increment primary key column.
func Identity() Column { return MustColumn(KindIdentity) }

// ExternalID returns the external UUID column.
func ExternalID() Column { return MustColumn(KindExternalID) }

// Created returns the creation audit timestamp column.
func Created() Column { return MustColumn(KindCreated) }

// Updated returns the modification audit timestamp column.
func Updated() Column { return MustColumn(KindUpdated) }

// Boolean returns a boolean column stored as a 0/1 integer.
func Boolean() Column { return MustColumn(KindBoolean) }

// Integer returns a plain integer column.
func Integer() Column { return MustColumn(KindInteger) }

// String returns a plain text column.
func String() Column { return MustColumn(KindString) }

// UUID returns a UUID string column.
func UUID() Column { return MustColumn(KindUUID) }

// Timestamp returns a non-audit datetime column.
func Timestamp() Column { return MustColumn(KindTimestamp) }

// Date returns a date-only column.
func Date() Column { return MustColumn(KindDate) }

// -----------------------------------------------------------------------------
// Built-in transforms
// -----------------------------------------------------------------------------

func boolToStorage(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int64:
		if x == 0 || x == 1 {
			return x, nil
		}
	}
	return nil, fmt.Errorf("boolean column: cannot store %v (%T)", v, v)
}

func boolToUser(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	}
	return nil, fmt.Errorf("boolean column: cannot read %v (%T)", v, v)
}

func asInteger(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	}
	return nil, fmt.Errorf("integer column: cannot convert %v (%T)", v, v)
}

func asString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return nil, fmt.Errorf("string column: cannot convert %v (%T)", v, v)
}

func timeToStorage(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		return clock.ToInternal(x)
	}
	return nil, fmt.Errorf("timestamp column: cannot store %v (%T)", v, v)
}

func timeToUser(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return clock.FromInternal(x, clock.Internal), nil
	case string:
		return x, nil
	}
	return nil, fmt.Errorf("timestamp column: cannot read %v (%T)", v, v)
}

func asDate(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, fmt.Errorf("date column: cannot convert %v (%T)", v, v)
	}
	if err := clock.ValidateDateOnly(s.(string)); err != nil {
		return nil, err
	}
	return s, nil
}
