package payroll

import "github.com/shopspring/decimal"

type DeductionInput struct {
	GrossPay               float64
	ExtraPay               float64
	Fines                  float64
	Games                  int
	AdminFeeEligible       bool
	LifetimeEarningsBefore float64
}

type Deductions struct {
	TotalEarnings      float64
	AdminFee           float64
	RemainingExemption float64
	TaxableIncome      float64
	HaciendaTax        float64
	DepositFee         float64
	NetPay             float64
}

// ApplyDeductions runs the fixed pipeline: earnings, admin fee, lifetime
// exemption, tax, deposit fee, fines. Each component is rounded to cents
// before net is derived so a batch's totals add up exactly. Net pay may be
// negative.
func ApplyDeductions(in DeductionInput, global GlobalSettings) Deductions {
	total := amount(in.GrossPay).Add(amount(in.ExtraPay)).Round(2)

	adminFee := decimal.Zero
	if in.AdminFeeEligible {
		adminFee = amount(global.AdminFeePerGame).Mul(decimal.NewFromInt(int64(in.Games))).Round(2)
	}

	remaining := maxZero(amount(LifetimeTaxExemption).Sub(amount(in.LifetimeEarningsBefore))).Round(2)
	taxable := maxZero(total.Sub(remaining))
	tax := taxable.Mul(amount(global.HaciendaTaxRate)).Round(2)
	deposit := amount(global.DepositFee).Round(2)
	fines := amount(in.Fines).Round(2)

	net := total.Sub(adminFee).Sub(tax).Sub(deposit).Sub(fines)

	return Deductions{
		TotalEarnings:      cents(total),
		AdminFee:           cents(adminFee),
		RemainingExemption: cents(remaining),
		TaxableIncome:      cents(taxable),
		HaciendaTax:        cents(tax),
		DepositFee:         cents(deposit),
		NetPay:             cents(net),
	}
}
