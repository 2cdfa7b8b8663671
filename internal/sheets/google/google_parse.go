package google

import (
	"fmt"
	"strings"

	"finance/internal/core"
	"finance/internal/table"
)

// fromValues converts the matrix returned by the Sheets API into text rows.
// Trailing empty cells are omitted by the API, so rows may be ragged.
func fromValues(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		out = append(out, toStrings(row))
	}
	return out
}

// toValues renders the header plus one row per record.
func toValues(rows []core.Record) [][]interface{} {
	out := make([][]interface{}, 0, len(rows)+1)
	out = append(out, toInterfaces(core.Columns))
	for _, r := range rows {
		out = append(out, toInterfaces(table.EncodeRow(r)))
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
