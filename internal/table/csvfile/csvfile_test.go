package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finance/internal/core"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	s := New(t.TempDir(), "kai")
	if _, err := s.ReadAll(context.Background()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.LatestSession(context.Background()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReadAllDropsExtraColumnsAndFillsBlanks(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "kai")
	mustWrite(t, s.Path(), "Unnamed: 0,date,category,title,amount,session_id,extra\n"+
		"0,2024-01-05 00:00:00,food,lunch,12.499,2024-03-01 10:11:12.123456-08:00,x\n"+
		"1,2024-02-01,rent,rent,1000,,y\n"+
		",,,,,,\n")

	rows, err := s.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	r := rows[0]
	if r.Date.String() != "2024-01-05" || r.Category != "food" || r.Title != "lunch" {
		t.Fatalf("unexpected first row: %+v", r)
	}
	if !r.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("amount not rounded: %s", r.Amount)
	}
	if r.Notes != "" {
		t.Fatalf("missing notes column should read as empty, got %q", r.Notes)
	}
	if !rows[1].Session.IsZero() {
		t.Fatalf("blank session should be zero")
	}
}

func TestReplaceAllThenReadAll(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "kai")
	tok := core.SessionAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	in := []core.Record{
		core.NewRecord(core.NewDate(2024, 1, 5), "food", "lunch, with \"friends\"", decimal.RequireFromString("12.5"), "line1\nline2", tok),
		core.NewRecord(core.NewDate(2024, 2, 1), "rent", "rent", decimal.RequireFromString("1000"), "", tok),
	}
	if err := s.ReplaceAll(context.Background(), in); err != nil {
		t.Fatalf("replace: %v", err)
	}

	raw, _ := os.ReadFile(s.Path())
	if !strings.HasPrefix(string(raw), "date,category,title,amount,notes,session_id\n") {
		t.Fatalf("unexpected header: %q", string(raw))
	}

	out, err := s.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d rows", len(out))
	}
	for i := range in {
		if out[i].Title != in[i].Title || out[i].Notes != in[i].Notes || !out[i].Amount.Equal(in[i].Amount) ||
			out[i].Date.String() != in[i].Date.String() || out[i].Session.Compare(in[i].Session) != 0 {
			t.Fatalf("row %d mismatch: %+v vs %+v", i, out[i], in[i])
		}
	}
	latest, err := s.LatestSession(context.Background())
	if err != nil || latest.Compare(tok) != 0 {
		t.Fatalf("latest = %s err=%v", latest, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestCreateIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := New(dir, "kai")
	created, err := s.CreateIfMissing(context.Background())
	if err != nil || !created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	rows, err := s.ReadAll(context.Background())
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected empty ledger, got %v err=%v", rows, err)
	}
	if created, _ := s.CreateIfMissing(context.Background()); created {
		t.Fatalf("second call should not recreate the file")
	}
}

func TestReadAllRejectsBadDate(t *testing.T) {
	s := New(t.TempDir(), "kai")
	mustWrite(t, s.Path(), "date,category,title,amount,notes,session_id\nnot-a-date,food,x,1,,\n")
	if _, err := s.ReadAll(context.Background()); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
