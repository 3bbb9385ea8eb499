// Package clock provides Clock implementations and the timestamp
// conversions used at the user/storage boundary.
package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/artpar/tablekit/ports"
)

// Layouts for the two row representations. User-shape timestamps are
// RFC3339 strings; date-only values use the fixed-width DateOnly form
// so lexicographic order equals chronological order.
const (
	DateOnly = "2006-01-02"
	Internal = time.RFC3339
)

// Real returns the actual current time.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Ensure interface compliance.
var _ ports.Clock = Real{}

// Fake provides a controllable clock for testing.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Ensure interface compliance.
var _ ports.Clock = (*Fake)(nil)

// Now formats the clock's current time with the given layout.
func Now(c ports.Clock, layout string) string {
	return c.Now().UTC().Format(layout)
}

// ToInternal converts a user-shape timestamp string to the driver-native
// time value.
func ToInternal(s string) (time.Time, error) {
	t, err := time.Parse(Internal, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FromInternal formats a driver-native time value with the given layout.
func FromInternal(t time.Time, layout string) string {
	return t.UTC().Format(layout)
}

// ValidateDateOnly checks that s is a well-formed DateOnly string.
func ValidateDateOnly(s string) error {
	if len(s) != len(DateOnly) {
		return fmt.Errorf("date %q: want %s", s, DateOnly)
	}
	if _, err := time.Parse(DateOnly, s); err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	return nil
}
