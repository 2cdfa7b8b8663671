package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Columns is the canonical column set of a ledger table, in file order.
var Columns = []string{"date", "category", "title", "amount", "notes", "session_id"}

// DateLayout is the wire and file format of a record date.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Record struct {
		ID       uuid.UUID // assigned in memory, never persisted
		Date     Date
		Category string
		Title    string
		Amount   decimal.Decimal
		Notes    string
		Session  SessionToken
	}

	// IndexedRecord is a record together with its position in the full ledger.
	IndexedRecord struct {
		Index  int
		Record Record
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIndexNotFound   = errors.New("Index not found")
	ErrStaleWrite      = errors.New("local copy is out of date")

	ErrInvalidMonth  = wrapInvalid("Invalid Month")
	ErrMissingFields = wrapInvalid("missing required information")
	ErrInvalidDate   = wrapInvalid("invalid date")
	ErrInvalidAmount = wrapInvalid("invalid amount")
)

// invalidArgument keeps its own message while matching ErrInvalidArgument.
type invalidArgument struct{ msg string }

func wrapInvalid(msg string) error { return &invalidArgument{msg: msg} }

func (e *invalidArgument) Error() string { return e.msg }

func (e *invalidArgument) Is(target error) bool { return target == ErrInvalidArgument }

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a calendar date from the first 10 characters of s, so both
// "2024-01-05" and "2024-01-05 00:00:00" are accepted.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the "YYYY-MM" month the date falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// Indexed pairs each record with its position in records.
func Indexed(records []Record) []IndexedRecord {
	out := make([]IndexedRecord, len(records))
	for i, r := range records {
		out[i] = IndexedRecord{Index: i, Record: r}
	}
	return out
}

// NewRecord builds a record with a fresh identifier and the amount rounded to cents.
func NewRecord(date Date, category, title string, amount decimal.Decimal, notes string, session SessionToken) Record {
	return Record{
		ID:       uuid.New(),
		Date:     date,
		Category: category,
		Title:    title,
		Amount:   RoundAmount(amount),
		Notes:    notes,
		Session:  session,
	}
}
