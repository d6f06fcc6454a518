// Package money holds the decimal helpers shared by the register and the
// backend. All amounts are shopspring decimals rounded to two places.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Places is the precision every stored amount is rounded to.
const Places = 2

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// ParseAmount parses a plain decimal string such as "12.50".
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// Line returns quantity × unit price.
func Line(qty int, unit decimal.Decimal) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// Formatter renders amounts in one currency for one locale.
type Formatter struct {
	Currency currency.Unit
	Locale   language.Tag

	printer      *message.Printer
	scale        int
	symbolSuffix bool
}

// suffixLocales write the symbol after the number, e.g. "1.234,50 €".
var suffixLocales = map[string]bool{
	"bg": true, "cs": true, "da": true, "de": true, "el": true, "es": true,
	"et": true, "fi": true, "fr": true, "hr": true, "hu": true, "it": true,
	"lt": true, "lv": true, "nb": true, "no": true, "pl": true, "ro": true,
	"ru": true, "sk": true, "sl": true, "sv": true, "uk": true, "vi": true,
}

func NewFormatter(code string, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{
		Currency:     unit,
		Locale:       tag,
		printer:      message.NewPrinter(tag),
		scale:        scale,
		symbolSuffix: symbolAfterNumber(tag),
	}, nil
}

func symbolAfterNumber(tag language.Tag) bool {
	base, _ := tag.Base()
	if base.String() == "pt" {
		region, _ := tag.Region()
		return region.String() == "PT"
	}
	return suffixLocales[base.String()]
}

// Format renders d with the locale's grouping and symbol position:
// "$1,234.50" for en-US, "1.234,50 €" for de-DE. The minus sign always leads.
func (f *Formatter) Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	value := d.Round(int32(f.scale)).InexactFloat64()
	symbol := f.printer.Sprint(currency.Symbol(f.Currency))
	amount := f.printer.Sprint(number.Decimal(value, number.Scale(f.scale)))
	if f.symbolSuffix {
		return sign + amount + " " + symbol
	}
	return sign + symbol + amount
}
