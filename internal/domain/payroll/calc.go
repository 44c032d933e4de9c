package payroll

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"refpay/internal/domain/referees"
)

// Ledger holds each referee's gross plus extra pay across saved batches,
// excluding the batch being computed.
type Ledger map[string]float64

func (l Ledger) Before(employeeNumber string) float64 {
	return l[employeeNumber]
}

// Calculate prices one referee's tally. It has no side effects; calling it
// again with edited extra pay or fines against the same lifetime figure
// gives the same answer.
func Calculate(tally Tally, settings referees.Settings, table RateTable, global GlobalSettings, lifetimeBefore float64) Result {
	gross, lines := GrossPay(settings, tally.Categories, table)
	games := tally.Games()

	d := ApplyDeductions(DeductionInput{
		GrossPay:               gross,
		ExtraPay:               tally.ExtraPay,
		Fines:                  tally.Fines,
		Games:                  games,
		AdminFeeEligible:       settings.HasAdminFee,
		LifetimeEarningsBefore: lifetimeBefore,
	}, global)

	result := Result{
		EmployeeNumber:         tally.EmployeeNumber,
		FullName:               tally.FullName,
		Games:                  games,
		Categories:             lines,
		HasFixedRate:           settings.FixedRateApplies(),
		FixedRate:              settings.FixedRate,
		GrossPay:               gross,
		ExtraPay:               roundCents(tally.ExtraPay),
		TotalEarnings:          d.TotalEarnings,
		AdminFee:               d.AdminFee,
		Fines:                  roundCents(tally.Fines),
		LifetimeEarningsBefore: roundCents(lifetimeBefore),
		RemainingExemption:     d.RemainingExemption,
		TaxableIncome:          d.TaxableIncome,
		HaciendaTax:            d.HaciendaTax,
		DepositFee:             d.DepositFee,
		NetPay:                 d.NetPay,
		Warnings:               []string{},
	}
	if !result.HasFixedRate {
		for _, line := range lines {
			if line.Unrated {
				result.Warnings = append(result.Warnings, WarningUnratedCategory)
				break
			}
		}
	}
	if result.NetPay < 0 {
		result.Warnings = append(result.Warnings, WarningNegativeNet)
	}
	if tally.LowConfidence {
		result.Warnings = append(result.Warnings, WarningLowConfidence)
	}
	return result
}

// CalculateBatch prices every tally against the same snapshots. Tallies
// should already be merged so each referee appears once.
func CalculateBatch(tallies []Tally, settings referees.SettingsSnapshot, table RateTable, global GlobalSettings, ledger Ledger) ([]Result, Totals) {
	results := make([]Result, 0, len(tallies))
	for _, tally := range tallies {
		results = append(results, Calculate(tally, settings.For(tally.EmployeeNumber), table, global, ledger.Before(tally.EmployeeNumber)))
	}
	return results, Summarize(results)
}

func Summarize(results []Result) Totals {
	var (
		gross, extra, admin, fines decimal.Decimal
		taxable, tax, deposit, net decimal.Decimal
	)
	totals := Totals{Referees: len(results), Warnings: map[string]int{}}
	for _, r := range results {
		totals.Games += r.Games
		gross = gross.Add(amount(r.GrossPay))
		extra = extra.Add(amount(r.ExtraPay))
		admin = admin.Add(amount(r.AdminFee))
		fines = fines.Add(amount(r.Fines))
		taxable = taxable.Add(amount(r.TaxableIncome))
		tax = tax.Add(amount(r.HaciendaTax))
		deposit = deposit.Add(amount(r.DepositFee))
		net = net.Add(amount(r.NetPay))
		for _, warning := range r.Warnings {
			totals.Warnings[warning]++
		}
	}
	totals.GrossPay = cents(gross)
	totals.ExtraPay = cents(extra)
	totals.AdminFee = cents(admin)
	totals.Fines = cents(fines)
	totals.TaxableIncome = cents(taxable)
	totals.HaciendaTax = cents(tax)
	totals.DepositFee = cents(deposit)
	totals.NetPay = cents(net)
	return totals
}

// MergeTallies folds tallies for the same referee into one, summing games per
// category (matched case-insensitively) and the manual adjustments. The
// output keeps first-seen order.
func MergeTallies(tallies []Tally) []Tally {
	index := make(map[string]int, len(tallies))
	merged := make([]Tally, 0, len(tallies))

	for _, tally := range tallies {
		employeeNumber := strings.TrimSpace(tally.EmployeeNumber)
		i, ok := index[employeeNumber]
		if !ok {
			index[employeeNumber] = len(merged)
			merged = append(merged, Tally{
				EmployeeNumber: employeeNumber,
				FullName:       tally.FullName,
			})
			i = len(merged) - 1
		}
		target := &merged[i]
		if target.FullName == "" {
			target.FullName = tally.FullName
		}
		target.ScheduleNames = append(target.ScheduleNames, tally.ScheduleNames...)
		target.ExtraPay = cents(amount(target.ExtraPay).Add(amount(tally.ExtraPay)))
		target.Fines = cents(amount(target.Fines).Add(amount(tally.Fines)))
		target.LowConfidence = target.LowConfidence || tally.LowConfidence
		target.Categories = addCounts(target.Categories, tally.Categories)
	}

	for i := range merged {
		merged[i].ScheduleNames = uniqueNames(merged[i].ScheduleNames)
		sort.SliceStable(merged[i].Categories, func(a, b int) bool {
			return CategoryKey(merged[i].Categories[a].Category) < CategoryKey(merged[i].Categories[b].Category)
		})
	}
	return merged
}

func addCounts(into, from []CategoryCount) []CategoryCount {
	for _, count := range from {
		if count.Games == 0 && strings.TrimSpace(count.Category) == "" {
			continue
		}
		found := false
		for i := range into {
			if CategoryKey(into[i].Category) == CategoryKey(count.Category) {
				into[i].Games += count.Games
				found = true
				break
			}
		}
		if !found {
			into = append(into, CategoryCount{Category: strings.TrimSpace(count.Category), Games: count.Games})
		}
	}
	return into
}
