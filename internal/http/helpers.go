package http

import (
	"encoding/json"
	"strconv"
	"strings"

	"finance/internal/core"
)

// recordJSON is the wire form of a ledger record.
type recordJSON struct {
	ID        string      `json:"id"`
	Date      string      `json:"date"`
	Category  string      `json:"category"`
	Title     string      `json:"title"`
	Amount    json.Number `json:"amount"`
	Notes     string      `json:"notes"`
	SessionID string      `json:"session_id"`
}

type categoryAmountJSON struct {
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"`
}

type categoryHeightJSON struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

func toRecordJSON(r core.Record) recordJSON {
	return recordJSON{
		ID:        r.ID.String(),
		Date:      r.Date.String(),
		Category:  r.Category,
		Title:     r.Title,
		Amount:    json.Number(core.FormatAmount(r.Amount)),
		Notes:     r.Notes,
		SessionID: r.Session.String(),
	}
}

// recordList renders records as a JSON array.
func recordList(records []core.Record) []recordJSON {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = toRecordJSON(r)
	}
	return out
}

// recordsByIndex renders records as an object keyed by ledger position,
// the positions delete_expense?index= accepts.
func recordsByIndex(records []core.IndexedRecord) map[string]recordJSON {
	out := make(map[string]recordJSON, len(records))
	for _, r := range records {
		out[strconv.Itoa(r.Index)] = toRecordJSON(r.Record)
	}
	return out
}

func totalsList(totals []core.CategoryAmount) []categoryAmountJSON {
	out := make([]categoryAmountJSON, len(totals))
	for i, t := range totals {
		out[i] = categoryAmountJSON{Category: t.Category, Amount: json.Number(core.FormatAmount(t.Amount))}
	}
	return out
}

// heightsList keeps the "amount" key the chart client reads.
func heightsList(heights []core.CategoryHeight) []categoryHeightJSON {
	out := make([]categoryHeightJSON, len(heights))
	for i, h := range heights {
		out[i] = categoryHeightJSON{Category: h.Category, Amount: h.Height}
	}
	return out
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
