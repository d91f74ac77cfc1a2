package present

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"dosh/internal/core"
)

// DefaultCurrency is the symbol used when none is configured.
const DefaultCurrency Currency = "£"

// Currency formats money amounts with a fixed symbol.
type Currency string

// Format renders m with thousands separators and two decimals, the sign
// before the symbol: -£1,234.50.
func (c Currency) Format(m core.Money) string {
	sign := ""
	if m.Cents < 0 {
		sign = "-"
	}
	abs := m.Abs().Cents
	return fmt.Sprintf("%s%s%s.%02d", sign, string(c), humanize.Comma(abs/100), abs%100)
}

// FormatCurrency formats m with DefaultCurrency.
func FormatCurrency(m core.Money) string {
	return DefaultCurrency.Format(m)
}
