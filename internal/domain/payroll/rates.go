package payroll

import (
	"strings"

	"github.com/shopspring/decimal"

	"refpay/internal/domain/referees"
)

// RateTable maps a category key to its per-game rate.
type RateTable map[string]float64

func NewRateTable(rates []CategoryRate) RateTable {
	table := make(RateTable, len(rates))
	for _, rate := range rates {
		table[CategoryKey(rate.Category)] = rate.Rate
	}
	return table
}

// CategoryKey folds case and surrounding space so "U-12 " and "u-12" share a rate.
func CategoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func (t RateTable) Lookup(category string) (float64, bool) {
	rate, ok := t[CategoryKey(category)]
	return rate, ok
}

// GrossPay resolves per-game pay for the tally's categories.
//
// A fixed-rate override prices every game at the fixed rate and ignores the
// table. Otherwise a category missing from the table is paid at 0 and
// flagged Unrated on its line; it is never an error here.
func GrossPay(settings referees.Settings, categories []CategoryCount, table RateTable) (float64, []CategoryLine) {
	lines := make([]CategoryLine, 0, len(categories))
	gross := decimal.Zero
	fixed := settings.FixedRateApplies()

	for _, count := range categories {
		line := CategoryLine{Category: count.Category, Games: count.Games}
		if fixed {
			line.Rate = settings.FixedRate
		} else {
			rate, ok := table.Lookup(count.Category)
			line.Rate = rate
			line.Unrated = !ok
		}
		lineAmount := amount(line.Rate).Mul(decimal.NewFromInt(int64(count.Games)))
		line.Amount = cents(lineAmount)
		gross = gross.Add(lineAmount)
		lines = append(lines, line)
	}
	return cents(gross), lines
}
