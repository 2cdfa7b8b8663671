// Package report derives read-only projections from a ledger snapshot:
// category totals per month, the month list, monthly sums and chart heights.
package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"finance/internal/core"
)

// View is an immutable projection over a copy of the ledger records.
type View struct {
	records []core.Record
}

// NewView copies records so later ledger mutations do not leak into the view.
func NewView(records []core.Record) *View {
	return &View{records: slices.Clone(records)}
}

// Records returns the records the view was built from.
func (v *View) Records() []core.Record {
	return slices.Clone(v.records)
}

// MonthsList returns core.AllMonths followed by every month that has at
// least one record, newest first.
func (v *View) MonthsList() []string {
	seen := make(map[string]struct{})
	months := make([]string, 0)
	for _, r := range v.records {
		m := r.Date.MonthKey()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		months = append(months, m)
	}
	slices.Sort(months)
	slices.Reverse(months)
	return append([]string{core.AllMonths}, months...)
}

// MonthlyCategoryTotals sums amounts per category for month ("YYYY-MM"), or
// across every month when month is core.AllMonths. Rows are ordered by
// category. A month without records is rejected.
func (v *View) MonthlyCategoryTotals(month string) ([]core.CategoryAmount, error) {
	all := month == core.AllMonths
	totals := make(map[string]decimal.Decimal)
	found := false
	for _, r := range v.records {
		if !all && r.Date.MonthKey() != month {
			continue
		}
		found = true
		totals[r.Category] = totals[r.Category].Add(r.Amount)
	}
	if !all && !found {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidMonth, month)
	}

	out := make([]core.CategoryAmount, 0, len(totals))
	for c, a := range totals {
		out = append(out, core.CategoryAmount{Category: c, Amount: core.RoundAmount(a)})
	}
	slices.SortFunc(out, func(a, b core.CategoryAmount) int {
		return strings.Compare(a.Category, b.Category)
	})
	return out, nil
}

// MonthlySum totals every category for month.
func (v *View) MonthlySum(month string) (decimal.Decimal, error) {
	totals, err := v.MonthlyCategoryTotals(month)
	if err != nil {
		return decimal.Zero, err
	}
	return SumAmounts(totals), nil
}

// ChartHeights scales each category total by the largest one, so the
// largest bar is 1. When no total is positive every height is 0.
func (v *View) ChartHeights(month string) ([]core.CategoryHeight, error) {
	totals, err := v.MonthlyCategoryTotals(month)
	if err != nil {
		return nil, err
	}
	return Heights(totals), nil
}

// SumAmounts adds up a list of category totals.
func SumAmounts(totals []core.CategoryAmount) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Heights normalizes totals against their maximum.
func Heights(totals []core.CategoryAmount) []core.CategoryHeight {
	peak := decimal.Zero
	for i, t := range totals {
		if i == 0 || t.Amount.GreaterThan(peak) {
			peak = t.Amount
		}
	}
	out := make([]core.CategoryHeight, len(totals))
	for i, t := range totals {
		out[i].Category = t.Category
		if peak.IsPositive() {
			out[i].Height = t.Amount.Div(peak).InexactFloat64()
		}
	}
	return out
}
