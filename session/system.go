package session

import (
	"context"
	"fmt"
)

// Service is the blueprint contract for business-logic units: an
// independent copy bound to a database scope. Services receive the
// whole scope so they can reach its tables.
type Service interface {
	Bind(db *Database) any
}

// ServiceMember pairs a name with a service blueprint.
type ServiceMember struct {
	Name      string
	Blueprint Service
}

// System owns named service blueprints over a Database scope. It
// mirrors the Database scope tree: Transaction wraps the underlying
// database child, and level/closed delegate downwards.
type System struct {
	db       *Database
	names    []string
	services map[string]Service
	bound    map[string]any
}

// NewSystem builds a system over the given database scope. Duplicate
// service names are a programming error and panic.
func NewSystem(db *Database, services []ServiceMember) *System {
	s := &System{
		db:       db,
		names:    make([]string, 0, len(services)),
		services: make(map[string]Service, len(services)),
		bound:    make(map[string]any),
	}
	for _, m := range services {
		if _, dup := s.services[m.Name]; dup {
			panic(fmt.Sprintf("session: duplicate service %q", m.Name))
		}
		s.names = append(s.names, m.Name)
		s.services[m.Name] = m.Blueprint
	}
	return s
}

// Database returns the underlying database scope.
func (s *System) Database() *Database { return s.db }

// Level returns the underlying scope's nesting depth.
func (s *System) Level() int { return s.db.Level() }

// Closed reports whether the underlying scope is closed.
func (s *System) Closed() bool { return s.db.Closed() }

// Names returns the service names in registration order.
func (s *System) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether the system owns the named service.
func (s *System) Has(name string) bool {
	_, ok := s.services[name]
	return ok
}

// Get returns the named service bound to the underlying scope,
// memoized for this system's lifetime.
func (s *System) Get(name string) (any, error) {
	if v, ok := s.bound[name]; ok {
		return v, nil
	}
	bp, ok := s.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMember, name)
	}
	v := bp.Bind(s.db)
	s.bound[name] = v
	return v, nil
}

// GetService returns the named service of s as a T.
func GetService[T any](s *System, name string) (T, error) {
	var zero T
	v, err := s.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %q is %T, not %T", name, v, zero)
	}
	return t, nil
}

// Transaction derives a child system over a child database scope.
func (s *System) Transaction(ctx context.Context) (*System, error) {
	child, err := s.db.Transaction(ctx)
	if err != nil {
		return nil, err
	}
	return &System{
		db:       child,
		names:    s.names,
		services: s.services,
		bound:    make(map[string]any),
	}, nil
}

// Commit finalizes the underlying scope.
func (s *System) Commit() error { return s.db.Commit() }

// Rollback aborts the underlying scope.
func (s *System) Rollback() error { return s.db.Rollback() }
