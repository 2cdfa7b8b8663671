package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finance/internal/amqp"
	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/table/memory"
)

type failingTable struct {
	*memory.Store
	err error
}

func (f *failingTable) ReplaceAll(ctx context.Context, rows []core.Record) error {
	if f.err != nil {
		return f.err
	}
	return f.Store.ReplaceAll(ctx, rows)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerCommitMessage
	err  error
}

func (p *recordingPublisher) PublishCommit(_ context.Context, msg *amqp.LedgerCommitMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func seeded() *memory.Store {
	old := core.SessionAt(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	return memory.New(
		core.Record{Date: core.NewDate(2024, 1, 5), Category: "food", Title: "lunch", Amount: decimal.RequireFromString("12.50"), Session: old},
		core.Record{Date: core.NewDate(2024, 1, 6), Category: "food", Title: "dinner", Amount: decimal.RequireFromString("20.00"), Session: old},
		core.Record{Date: core.NewDate(2024, 2, 1), Category: "rent", Title: "rent", Amount: decimal.RequireFromString("1000.00"), Session: old},
	)
}

func newService(t *testing.T, tbl *memory.Store, opts ...Option) *FinanceService {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	s := NewFinanceService("alice", tbl, opts...)
	if err := s.Init(context.Background(), false); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestInitCreatesMissingTable(t *testing.T) {
	tbl := memory.NewMissing()
	s := NewFinanceService("alice", tbl, WithLogger(log.Discard()))
	if err := s.Init(context.Background(), false); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found without bootstrap, got %v", err)
	}
	if err := s.Init(context.Background(), true); err != nil {
		t.Fatalf("init with bootstrap: %v", err)
	}
	if len(s.AllRecords()) != 0 {
		t.Fatalf("expected empty ledger")
	}
}

func TestReportingThroughService(t *testing.T) {
	s := newService(t, seeded())

	totals, err := s.MonthlyTotals("2024-01")
	if err != nil || len(totals) != 1 || !totals[0].Amount.Equal(decimal.RequireFromString("32.5")) {
		t.Fatalf("totals = %+v (%v)", totals, err)
	}
	if _, err := s.MonthlyTotals(""); err != nil {
		t.Fatalf("empty month should mean ALL: %v", err)
	}
	sum, err := s.MonthlySum(core.AllMonths)
	if err != nil || core.FormatSum(sum) != "1,032.50" {
		t.Fatalf("sum = %s (%v)", sum, err)
	}
	heights, err := s.MonthlyHeights(core.AllMonths)
	if err != nil || len(heights) != 2 || heights[1].Height != 1 {
		t.Fatalf("heights = %+v (%v)", heights, err)
	}
	months := s.ListMonths()
	if len(months) != 3 || months[1] != "2024-02" {
		t.Fatalf("months = %v", months)
	}
	if _, err := s.MonthlyTotals("2030-01"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected invalid month, got %v", err)
	}
	if got := s.FilterByCategory("rent"); len(got) != 1 {
		t.Fatalf("filter = %+v", got)
	}
}

func TestAddRecordValidation(t *testing.T) {
	s := newService(t, seeded())
	cases := []RecordInput{
		{Category: "food", Title: "x", Amount: "1"},
		{Date: "2024-01-01", Title: "x", Amount: "1"},
		{Date: "2024-01-01", Category: "food", Amount: "1"},
		{Date: "2024-01-01", Category: "food", Title: "x"},
		{Date: "2024-01-01", Category: "food", Title: "x", Amount: "0"},
	}
	for i, in := range cases {
		_, err := s.AddRecord(context.Background(), in)
		if !errors.Is(err, core.ErrMissingFields) {
			t.Fatalf("case %d: expected missing fields, got %v", i, err)
		}
	}
	if _, err := s.AddRecord(context.Background(), RecordInput{Date: "01/02/2024", Category: "a", Title: "b", Amount: "1"}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected invalid date, got %v", err)
	}
	if _, err := s.AddRecord(context.Background(), RecordInput{Date: "2024-01-01", Category: "a", Title: "b", Amount: "lots"}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if len(s.AllRecords()) != 3 {
		t.Fatalf("rejected input changed the ledger")
	}
}

func TestAddRecordPersistsAndPublishes(t *testing.T) {
	tbl := seeded()
	pub := &recordingPublisher{}
	s := newService(t, tbl, WithPublisher(pub))

	// Warm the cache so the add has to invalidate it.
	if _, err := s.MonthlyTotals(core.AllMonths); err != nil {
		t.Fatalf("totals: %v", err)
	}

	rec, err := s.AddRecord(context.Background(), RecordInput{Date: "2024-02-03", Category: "food", Title: "snack", Amount: "2,499"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !rec.Amount.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("amount = %s", rec.Amount)
	}
	if tbl.Writes() != 1 {
		t.Fatalf("expected one write, got %d", tbl.Writes())
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Records != 4 || pub.msgs[0].User != "alice" {
		t.Fatalf("unexpected publish: %+v", pub.msgs)
	}
	totals, _ := s.MonthlyTotals(core.AllMonths)
	if !totals[0].Amount.Equal(decimal.RequireFromString("35")) {
		t.Fatalf("cached totals not invalidated: %+v", totals)
	}
}

func TestSecondWriteNeedsNewSession(t *testing.T) {
	s := newService(t, seeded())
	ctx := context.Background()
	in := RecordInput{Date: "2024-02-03", Category: "food", Title: "snack", Amount: "2"}
	if _, err := s.AddRecord(ctx, in); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := s.AddRecord(ctx, in); !errors.Is(err, core.ErrStaleWrite) {
		t.Fatalf("expected stale write, got %v", err)
	}
	if len(s.AllRecords()) != 4 {
		t.Fatalf("failed add must be rolled back, have %d records", len(s.AllRecords()))
	}
	s.NewSession(ctx)
	if _, err := s.AddRecord(ctx, in); err != nil {
		t.Fatalf("add after new session: %v", err)
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	tbl := &failingTable{Store: seeded(), err: errors.New("disk full")}
	s := NewFinanceService("alice", tbl, WithLogger(log.Discard()))
	if err := s.Init(context.Background(), false); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx := context.Background()
	if _, err := s.AddRecord(ctx, RecordInput{Date: "2024-02-03", Category: "a", Title: "b", Amount: "1"}); err == nil {
		t.Fatalf("expected write error")
	}
	if _, err := s.DeleteRecord(ctx, 0); err == nil {
		t.Fatalf("expected write error")
	}
	if len(s.AllRecords()) != 3 {
		t.Fatalf("ledger not restored, have %d records", len(s.AllRecords()))
	}
}

func TestDeleteRecord(t *testing.T) {
	tbl := seeded()
	s := newService(t, tbl)
	ctx := context.Background()

	if _, err := s.DeleteRecord(ctx, 3); !errors.Is(err, core.ErrIndexNotFound) {
		t.Fatalf("expected index error, got %v", err)
	}
	if tbl.Writes() != 0 {
		t.Fatalf("invalid delete must not write")
	}

	first := s.AllRecords()[0]
	if _, err := s.DeleteRecord(ctx, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rest := s.AllRecords()
	if len(rest) != 2 || rest[0].ID == first.ID {
		t.Fatalf("unexpected ledger after delete: %+v", rest)
	}

	s.NewSession(ctx)
	if _, err := s.DeleteRecordByID(ctx, rest[1].ID); err != nil {
		t.Fatalf("delete by id: %v", err)
	}
	if got := s.AllRecords(); len(got) != 1 || got[0].ID != rest[0].ID {
		t.Fatalf("unexpected ledger after delete by id: %+v", got)
	}
}

func TestRefreshDiscardsUnsavedStateAndRenewsSession(t *testing.T) {
	tbl := seeded()
	s := newService(t, tbl)
	ctx := context.Background()
	before := s.Session()

	// Another writer replaces the table.
	other := NewFinanceService("alice", tbl, WithLogger(log.Discard()))
	if err := other.Init(ctx, false); err != nil {
		t.Fatalf("init other: %v", err)
	}
	if _, err := other.AddRecord(ctx, RecordInput{Date: "2024-03-01", Category: "fun", Title: "film", Amount: "9"}); err != nil {
		t.Fatalf("other add: %v", err)
	}

	if _, err := s.AddRecord(ctx, RecordInput{Date: "2024-03-02", Category: "fun", Title: "x", Amount: "1"}); !errors.Is(err, core.ErrStaleWrite) {
		t.Fatalf("expected stale write, got %v", err)
	}

	records, err := s.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(records) != 4 || records[0].Title != "film" {
		t.Fatalf("refresh did not reload: %+v", records)
	}
	if !s.Session().After(before) {
		t.Fatalf("refresh should start a new session")
	}
	if _, err := s.AddRecord(ctx, RecordInput{Date: "2024-03-02", Category: "fun", Title: "x", Amount: "1"}); err != nil {
		t.Fatalf("add after refresh: %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newService(t, seeded(), WithPublisher(pub))
	if _, err := s.AddRecord(context.Background(), RecordInput{Date: "2024-03-02", Category: "fun", Title: "x", Amount: "1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
}
