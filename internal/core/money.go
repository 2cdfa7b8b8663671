// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values kept at two fractional digits. Rounding is
// half away from zero on the third digit, the same rule a spreadsheet applies.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// AmountPlaces is the number of fractional digits stored for an amount.
const AmountPlaces = 2

var sumPrinter = message.NewPrinter(language.English)

// RoundAmount rounds a to two decimal places.
func RoundAmount(a decimal.Decimal) decimal.Decimal {
	return a.Round(AmountPlaces)
}

// ParseAmount converts a decimal string to a rounded amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. An empty
// string parses to zero, matching a blank cell in the ledger file.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("")       -> 0
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return RoundAmount(d), nil
}

// FormatAmount renders an amount the way it is written to the ledger file.
func FormatAmount(a decimal.Decimal) string {
	return RoundAmount(a).StringFixed(AmountPlaces)
}

// FormatSum renders a total with thousands separators, e.g. "1,032.50".
func FormatSum(a decimal.Decimal) string {
	return sumPrinter.Sprintf("%v", number.Decimal(RoundAmount(a).InexactFloat64(), number.Scale(AmountPlaces)))
}
