// Package format renders ledger amounts for humans.
package format

import (
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the ledger's cash currency.
const DefaultCurrency = money.USD

// Money formats amount in currency, e.g. "$1,155.00". Amounts are rounded
// to the currency's minor unit. Unknown currencies fall back to a plain
// two-decimal number.
func Money(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return decimal.NewFromFloat(amount).StringFixed(2)
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// USD formats amount in dollars.
func USD(amount float64) string {
	return Money(amount, DefaultCurrency)
}

// Percent formats p with one decimal and a percent sign.
func Percent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

// Units formats a quantity without trailing zeros.
func Units(u float64) string {
	return decimal.NewFromFloat(u).String()
}
