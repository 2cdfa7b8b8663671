package core

import "github.com/shopspring/decimal"

// AllMonths selects every month in monthly reports.
const AllMonths = "ALL"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

// CategoryHeight is a category total normalized against the largest one.
type CategoryHeight struct {
	Category string
	Height   float64
}
