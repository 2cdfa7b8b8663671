// Package ledger owns the in-memory expense table of one user and persists
// it through a table.Store under an optimistic session check.
//
// A Store is not safe for concurrent use; callers serialize access.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance/internal/core"
	"finance/internal/table"
)

type Store struct {
	userName string
	table    table.Store
	loc      *time.Location
	session  core.SessionToken
	records  []core.Record
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the zone session tokens are written in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates an empty ledger for userName and opens a fresh session.
func New(userName string, t table.Store, opts ...Option) *Store {
	s := &Store{userName: userName, table: t, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	s.session = core.NewSessionToken(s.loc)
	return s
}

func (s *Store) UserName() string { return s.userName }

func (s *Store) Session() core.SessionToken { return s.session }

func (s *Store) Len() int { return len(s.records) }

// Records returns a copy of the ledger in its current order.
func (s *Store) Records() []core.Record {
	return slices.Clone(s.records)
}

// Load replaces the in-memory ledger with the persisted table, sorted newest
// date first. The session token is left untouched.
func (s *Store) Load(ctx context.Context) error {
	rows, err := s.table.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("load ledger for %s: %w", s.userName, err)
	}
	for i := range rows {
		rows[i].Amount = core.RoundAmount(rows[i].Amount)
	}
	slices.SortStableFunc(rows, func(a, b core.Record) int {
		return b.Date.Compare(a.Date.Time)
	})
	s.records = rows
	return nil
}

// NewEntry appends a record stamped with the current session. Nothing is
// persisted until Dump.
func (s *Store) NewEntry(date core.Date, category, title string, amount decimal.Decimal, notes string) core.Record {
	r := core.NewRecord(date, category, title, amount, notes, s.session)
	s.records = append(s.records, r)
	return r
}

// DeleteIndex removes the record at position index. Positions shift after
// every delete, insert or load.
func (s *Store) DeleteIndex(index int) (core.Record, error) {
	if index < 0 || index >= len(s.records) {
		return core.Record{}, fmt.Errorf("delete %d: %w", index, core.ErrIndexNotFound)
	}
	r := s.records[index]
	s.records = slices.Delete(s.records, index, index+1)
	return r, nil
}

// DeleteID removes the record with the given identifier.
func (s *Store) DeleteID(id uuid.UUID) (core.Record, error) {
	i := s.indexOf(id)
	if i < 0 {
		return core.Record{}, fmt.Errorf("delete %s: %w", id, core.ErrIndexNotFound)
	}
	return s.DeleteIndex(i)
}

// Dump overwrites the backing table with the in-memory ledger, unless the
// table already holds a session at least as new as ours. A session that has
// been dumped once must be renewed before it can write again.
func (s *Store) Dump(ctx context.Context) error {
	latest, err := s.table.LatestSession(ctx)
	if err != nil {
		return fmt.Errorf("read latest session: %w", err)
	}
	if !s.session.After(latest) {
		return fmt.Errorf("failed to write (session %s, table %s): %w", s.session, latest, core.ErrStaleWrite)
	}
	if err := s.table.ReplaceAll(ctx, s.records); err != nil {
		return fmt.Errorf("write ledger for %s: %w", s.userName, err)
	}
	return nil
}

// EstablishNewSession opens a new session and restamps every in-memory
// record with it, so the next Dump wins over whatever is on disk.
func (s *Store) EstablishNewSession() core.SessionToken {
	s.session = core.NewSessionToken(s.loc)
	for i := range s.records {
		s.records[i].Session = s.session
	}
	return s.session
}

func (s *Store) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.records, func(r core.Record) bool { return r.ID == id })
}

// FilterByCategory returns the records whose category equals category
// exactly, each with its position in the full ledger so it can be passed
// straight to DeleteIndex.
func (s *Store) FilterByCategory(category string) []core.IndexedRecord {
	var out []core.IndexedRecord
	for i, r := range s.records {
		if r.Category == category {
			out = append(out, core.IndexedRecord{Index: i, Record: r})
		}
	}
	return out
}

// Snapshot captures the ledger so a failed write can be undone.
type Snapshot struct {
	records []core.Record
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{records: slices.Clone(s.records)}
}

func (s *Store) Restore(snap Snapshot) {
	s.records = slices.Clone(snap.records)
}
