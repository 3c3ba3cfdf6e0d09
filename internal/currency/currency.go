// Package currency renders rupee amounts for the dashboard and exported reports.
package currency

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const Symbol = "₹"

type tier struct {
	divisor float64
	suffix  string
}

// Largest tier first.
var tiers = []tier{
	{divisor: 10_000_000, suffix: "Cr"},
	{divisor: 100_000, suffix: "L"},
	{divisor: 1_000, suffix: "K"},
}

var printer = message.NewPrinter(language.MustParse("en-IN"))

// Abbreviate renders amount with the largest applicable crore/lakh/thousand suffix,
// rounded to decimals places.
func Abbreviate(amount int64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	sign := ""
	abs := float64(amount)
	if amount < 0 {
		sign = "-"
		abs = -abs
	}
	for _, t := range tiers {
		if abs >= t.divisor {
			return fmt.Sprintf("%s%s%.*f%s", sign, Symbol, decimals, abs/t.divisor, t.suffix)
		}
	}
	return sign + Symbol + printer.Sprintf("%d", int64(abs))
}

// Compact is the one-decimal form used on cards and in report headers.
func Compact(amount int64) string {
	return Abbreviate(amount, 1)
}

// Full renders the un-abbreviated amount with Indian digit grouping.
func Full(amount int64) string {
	if amount < 0 {
		return "-" + Symbol + printer.Sprintf("%d", -amount)
	}
	return Symbol + printer.Sprintf("%d", amount)
}

// FullFloat rounds to the nearest rupee before grouping.
func FullFloat(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Symbol + "0"
	}
	return Full(int64(math.Round(amount)))
}

func Percent(v int) string {
	if v > 0 {
		return fmt.Sprintf("+%d%%", v)
	}
	return fmt.Sprintf("%d%%", v)
}

// PDFSafe replaces the rupee sign, which the core PDF fonts cannot encode.
func PDFSafe(s string) string {
	return strings.ReplaceAll(s, Symbol, "Rs.")
}
