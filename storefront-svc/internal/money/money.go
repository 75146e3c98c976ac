// Package money holds decimal helpers for prices, line totals and display.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultCurrency = "KES"

var printer = message.NewPrinter(language.English)

// LineTotal returns unitPrice × quantity. Non-positive quantities count as zero.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Format renders amount with two decimals and thousands grouping, prefixed
// by the currency code: "KES 2,200.00".
func Format(amount decimal.Decimal, currency string) string {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	rounded := amount.Round(2)
	units := rounded.Truncate(0)
	cents := rounded.Sub(units).Abs().Shift(2).IntPart()

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		units = units.Abs()
	}

	return currency + " " + sign + printer.Sprintf("%d", units.IntPart()) + fmt.Sprintf(".%02d", cents)
}
