package table

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"finance/internal/core"
)

// EncodeRow renders a record as cells in core.Columns order.
func EncodeRow(r core.Record) []string {
	return []string{
		r.Date.String(),
		r.Category,
		r.Title,
		core.FormatAmount(r.Amount),
		r.Notes,
		r.Session.String(),
	}
}

// DecodeRows converts a header plus data rows into records. Columns are
// matched by header name; unknown columns are dropped and absent ones read
// as empty cells. Each record gets a fresh in-memory id.
func DecodeRows(header []string, rows [][]string) ([]core.Record, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	cell := func(row []string, col string) string {
		i, ok := pos[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]core.Record, 0, len(rows))
	for n, row := range rows {
		if isBlank(row) {
			continue
		}
		date, err := core.ParseDate(cell(row, "date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: date %q: %w", n+1, cell(row, "date"), err)
		}
		amount, err := core.ParseAmount(cell(row, "amount"))
		if err != nil {
			return nil, fmt.Errorf("row %d: amount %q: %w", n+1, cell(row, "amount"), err)
		}
		session, err := core.ParseSessionToken(cell(row, "session_id"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		out = append(out, core.Record{
			ID:       uuid.New(),
			Date:     date,
			Category: cell(row, "category"),
			Title:    cell(row, "title"),
			Amount:   amount,
			Notes:    cell(row, "notes"),
			Session:  session,
		})
	}
	return out, nil
}

// LatestSessionCell scans only the session column of a table.
func LatestSessionCell(header []string, rows [][]string) (core.SessionToken, error) {
	col := -1
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == "session_id" {
			col = i
			break
		}
	}
	var latest core.SessionToken
	if col < 0 {
		return latest, nil
	}
	for n, row := range rows {
		if col >= len(row) {
			continue
		}
		tok, err := core.ParseSessionToken(row[col])
		if err != nil {
			return core.SessionToken{}, fmt.Errorf("row %d: %w", n+1, err)
		}
		if tok.After(latest) {
			latest = tok
		}
	}
	return latest, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
