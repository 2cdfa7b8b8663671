package memory

import (
	"context"
	"fmt"
	"sync"

	"finance/internal/core"
	"finance/internal/table"
)

var _ table.Store = (*Store)(nil)

// Store keeps a ledger table in process memory. Rows are copied on the way
// in and out so callers never share backing arrays with it.
type Store struct {
	mu     sync.Mutex
	exists bool
	rows   []core.Record
	writes int
}

// New returns an existing table holding rows.
func New(rows ...core.Record) *Store {
	return &Store{exists: true, rows: clone(rows)}
}

// NewMissing returns a store whose table has not been created yet.
func NewMissing() *Store {
	return &Store{}
}

// ReadAll implements table.Reader.
func (s *Store) ReadAll(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return nil, fmt.Errorf("memory table: %w", core.ErrNotFound)
	}
	return clone(s.rows), nil
}

// LatestSession implements table.SessionReader.
func (s *Store) LatestSession(_ context.Context) (core.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return core.SessionToken{}, fmt.Errorf("memory table: %w", core.ErrNotFound)
	}
	return core.LatestSession(s.rows), nil
}

// ReplaceAll implements table.Writer.
func (s *Store) ReplaceAll(_ context.Context, rows []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = true
	s.rows = clone(rows)
	s.writes++
	return nil
}

// CreateIfMissing implements table.Initializer.
func (s *Store) CreateIfMissing(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return false, nil
	}
	s.exists = true
	return true, nil
}

// Writes reports how many times the table has been overwritten.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func clone(in []core.Record) []core.Record {
	if in == nil {
		return nil
	}
	return append([]core.Record(nil), in...)
}
