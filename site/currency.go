package site

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	nairaPrinter = message.NewPrinter(language.MustParse("en-NG"))
	naira        = currency.MustParseISO("NGN")
)

// FormatNaira formats amount as Nigerian naira.
func FormatNaira(amount float64) string {
	return nairaPrinter.Sprint(currency.Symbol(naira.Amount(amount)))
}
