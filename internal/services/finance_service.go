// Package services exposes the ledger operations used by the HTTP API, the
// CLI and the workers. One FinanceService owns one ledger and serializes
// every operation on it.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/ledger"
	"finance/internal/log"
	"finance/internal/report"
	"finance/internal/table"
)

// CommitPublisher announces successful dumps to other processes.
type CommitPublisher interface {
	PublishCommit(ctx context.Context, msg *amqp.LedgerCommitMessage) error
}

// RecordInput carries the raw fields of a new record.
type RecordInput struct {
	Date     string
	Category string
	Title    string
	Amount   string
	Notes    string
}

type FinanceService struct {
	mu        sync.Mutex
	userName  string
	table     table.Store
	loc       *time.Location
	store     *ledger.Store
	publisher CommitPublisher
	totals    *cache.LRUCache[[]core.CategoryAmount]
	logger    *log.Logger
	events    *log.StructuredLogger
}

type Option func(*FinanceService)

// WithPublisher enables commit notifications.
func WithPublisher(p CommitPublisher) Option {
	return func(s *FinanceService) { s.publisher = p }
}

// WithLocation sets the zone new session tokens are written in.
func WithLocation(loc *time.Location) Option {
	return func(s *FinanceService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(s *FinanceService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTotalsCache sets the monthly totals cache.
func WithTotalsCache(c *cache.LRUCache[[]core.CategoryAmount]) Option {
	return func(s *FinanceService) {
		if c != nil {
			s.totals = c
		}
	}
}

// NewFinanceService creates the service with an empty, unloaded ledger.
// Call Init (or Refresh) before serving requests.
func NewFinanceService(userName string, tbl table.Store, opts ...Option) *FinanceService {
	s := &FinanceService{
		userName: userName,
		table:    tbl,
		loc:      time.UTC,
		totals:   cache.NewLRUCache[[]core.CategoryAmount](64, 10*time.Minute),
		logger:   log.New(log.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.events = log.NewStructuredLogger(s.logger)
	s.store = s.newStore()
	return s
}

func (s *FinanceService) newStore() *ledger.Store {
	return ledger.New(s.userName, s.table, ledger.WithLocation(s.loc))
}

// TotalsCache exposes the monthly totals cache for periodic cleanup.
func (s *FinanceService) TotalsCache() *cache.LRUCache[[]core.CategoryAmount] {
	return s.totals
}

// Init optionally creates an empty backing table, then loads the ledger.
func (s *FinanceService) Init(ctx context.Context, createIfMissing bool) error {
	if createIfMissing {
		created, err := s.table.CreateIfMissing(ctx)
		if err != nil {
			return fmt.Errorf("create ledger table: %w", err)
		}
		if created {
			s.logger.InfoContext(ctx, "Created empty ledger table", log.FieldUser, s.userName)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Load(ctx); err != nil {
		return err
	}
	s.totals.Clear()
	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldUser, s.userName,
		log.FieldRecords, s.store.Len(),
		log.FieldSession, s.store.Session().String())
	return nil
}

func (s *FinanceService) UserName() string { return s.userName }

// Session returns the token the next dump will be written with.
func (s *FinanceService) Session() core.SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Session()
}

// AllRecords returns the ledger in its current order; positions are the
// indices DeleteRecord accepts.
func (s *FinanceService) AllRecords() []core.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Records()
}

// FilterByCategory returns matching records with the positions DeleteRecord
// accepts.
func (s *FinanceService) FilterByCategory(category string) []core.IndexedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.FilterByCategory(category)
}

func (s *FinanceService) view() *report.View {
	return report.NewView(s.store.Records())
}

// MonthlyTotals returns category totals for month, or every month when
// month is empty or core.AllMonths.
func (s *FinanceService) MonthlyTotals(month string) ([]core.CategoryAmount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monthlyTotals(month)
}

func (s *FinanceService) monthlyTotals(month string) ([]core.CategoryAmount, error) {
	if month == "" {
		month = core.AllMonths
	}
	if rows, ok := s.totals.Get(month); ok {
		return rows, nil
	}
	rows, err := s.view().MonthlyCategoryTotals(month)
	if err != nil {
		return nil, err
	}
	s.totals.Set(month, rows)
	return rows, nil
}

func (s *FinanceService) MonthlySum(month string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.monthlyTotals(month)
	if err != nil {
		return decimal.Zero, err
	}
	return report.SumAmounts(rows), nil
}

func (s *FinanceService) MonthlyHeights(month string) ([]core.CategoryHeight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.monthlyTotals(month)
	if err != nil {
		return nil, err
	}
	return report.Heights(rows), nil
}

func (s *FinanceService) ListMonths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().MonthsList()
}

// ParseRecordInput validates raw input. Every field but notes is required,
// and a zero amount counts as missing.
func ParseRecordInput(in RecordInput) (core.Date, decimal.Decimal, error) {
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Category) == "" ||
		strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Amount) == "" {
		return core.Date{}, decimal.Zero, core.ErrMissingFields
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Date{}, decimal.Zero, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Date{}, decimal.Zero, err
	}
	if amount.IsZero() {
		return core.Date{}, decimal.Zero, core.ErrMissingFields
	}
	return date, amount, nil
}

// AddRecord appends a record and persists the ledger. If the write fails the
// record is taken back out.
func (s *FinanceService) AddRecord(ctx context.Context, in RecordInput) (core.Record, error) {
	date, amount, err := ParseRecordInput(in)
	if err != nil {
		return core.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	rec := s.store.NewEntry(date, in.Category, in.Title, amount, in.Notes)
	if err := s.dump(ctx, log.OpAdd); err != nil {
		s.store.Restore(snap)
		return core.Record{}, err
	}
	s.events.LogRecordAdded(ctx, s.userName, s.store.Session().String(), rec.Category, rec.Title, rec.Amount)
	return rec, nil
}

// DeleteRecord removes the record at index and persists the ledger.
func (s *FinanceService) DeleteRecord(ctx context.Context, index int) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAndDump(ctx, func() (core.Record, error) { return s.store.DeleteIndex(index) })
}

// DeleteRecordByID removes the record with id and persists the ledger.
func (s *FinanceService) DeleteRecordByID(ctx context.Context, id uuid.UUID) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAndDump(ctx, func() (core.Record, error) { return s.store.DeleteID(id) })
}

func (s *FinanceService) deleteAndDump(ctx context.Context, del func() (core.Record, error)) (core.Record, error) {
	snap := s.store.Snapshot()
	rec, err := del()
	if err != nil {
		return core.Record{}, err
	}
	if err := s.dump(ctx, log.OpDelete); err != nil {
		s.store.Restore(snap)
		return core.Record{}, err
	}
	s.logger.InfoContext(ctx, "Record deleted",
		log.FieldUser, s.userName,
		log.FieldCategory, rec.Category,
		log.FieldTitle, rec.Title)
	return rec, nil
}

// dump persists the ledger, then drops cached totals and announces the commit.
func (s *FinanceService) dump(ctx context.Context, op string) error {
	s.totals.Clear()
	if err := s.store.Dump(ctx); err != nil {
		level := s.logger.ErrorContext
		if errors.Is(err, core.ErrStaleWrite) {
			level = s.logger.WarnContext
		}
		level(ctx, "Ledger write rejected",
			log.FieldOperation, op,
			log.FieldUser, s.userName,
			log.FieldSession, s.store.Session().String(),
			log.FieldError, err)
		return err
	}
	s.publish(ctx)
	return nil
}

func (s *FinanceService) publish(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewLedgerCommitMessage(s.userName, s.store.Session().String(), s.store.Len())
	if err := s.publisher.PublishCommit(ctx, msg); err != nil {
		// The ledger is already written; the mirror catches up on the next commit.
		s.events.LogError(ctx, "Failed to publish commit message", err,
			log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithLedger(s.userName, msg.Session))
	}
}

// Refresh discards the in-memory ledger and reloads it under a new session.
// On failure the previous ledger stays in place.
func (s *FinanceService) Refresh(ctx context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := s.newStore()
	if err := fresh.Load(ctx); err != nil {
		return nil, err
	}
	s.store = fresh
	s.totals.Clear()
	s.logger.InfoContext(ctx, "Ledger refreshed",
		log.FieldOperation, log.OpRefresh,
		log.FieldRecords, fresh.Len(),
		log.FieldSession, fresh.Session().String())
	return fresh.Records(), nil
}

// NewSession restamps the in-memory ledger with a fresh token so the next
// write overrides whatever is on disk. Nothing is written.
func (s *FinanceService) NewSession(ctx context.Context) core.SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.store.EstablishNewSession()
	s.logger.InfoContext(ctx, "New session established",
		log.FieldOperation, log.OpNewSession,
		log.FieldSession, tok.String())
	return tok
}
