package payroll

import "time"

type GlobalSettings struct {
	HaciendaTaxRate float64   `json:"haciendaTaxRate"`
	DepositFee      float64   `json:"depositFee"`
	AdminFeePerGame float64   `json:"adminFeePerGame"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

type CategoryRate struct {
	Category  string    `json:"category"`
	Rate      float64   `json:"rate"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Games    int    `json:"games"`
}

// Tally is one referee's resolved game counts for a batch, plus the manual
// adjustments entered before saving.
type Tally struct {
	EmployeeNumber string          `json:"employeeNumber"`
	FullName       string          `json:"fullName,omitempty"`
	ScheduleNames  []string        `json:"scheduleNames,omitempty"`
	Categories     []CategoryCount `json:"categories"`
	ExtraPay       float64         `json:"extraPay"`
	Fines          float64         `json:"fines"`
	LowConfidence  bool            `json:"lowConfidence,omitempty"`
}

func (t Tally) Games() int {
	var total int
	for _, count := range t.Categories {
		total += count.Games
	}
	return total
}

type CategoryLine struct {
	Category string  `json:"category"`
	Games    int     `json:"games"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
	Unrated  bool    `json:"unrated,omitempty"`
}

// Result is the payroll outcome for one referee in one batch.
type Result struct {
	EmployeeNumber         string         `json:"employeeNumber"`
	FullName               string         `json:"fullName"`
	Games                  int            `json:"games"`
	Categories             []CategoryLine `json:"categories"`
	HasFixedRate           bool           `json:"hasFixedRate"`
	FixedRate              float64        `json:"fixedRate"`
	GrossPay               float64        `json:"grossPay"`
	ExtraPay               float64        `json:"extraPay"`
	TotalEarnings          float64        `json:"totalEarnings"`
	AdminFee               float64        `json:"adminFee"`
	Fines                  float64        `json:"fines"`
	LifetimeEarningsBefore float64        `json:"lifetimeEarningsBefore"`
	RemainingExemption     float64        `json:"remainingExemption"`
	TaxableIncome          float64        `json:"taxableIncome"`
	HaciendaTax            float64        `json:"haciendaTax"`
	DepositFee             float64        `json:"depositFee"`
	NetPay                 float64        `json:"netPay"`
	Warnings               []string       `json:"warnings"`
}

type Totals struct {
	Referees      int            `json:"referees"`
	Games         int            `json:"games"`
	GrossPay      float64        `json:"grossPay"`
	ExtraPay      float64        `json:"extraPay"`
	AdminFee      float64        `json:"adminFee"`
	Fines         float64        `json:"fines"`
	TaxableIncome float64        `json:"taxableIncome"`
	HaciendaTax   float64        `json:"haciendaTax"`
	DepositFee    float64        `json:"depositFee"`
	NetPay        float64        `json:"netPay"`
	Warnings      map[string]int `json:"warnings"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Batch is a saved payroll run. Only Name may change after it is saved.
type Batch struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"createdAt"`
	DateRange DateRange      `json:"dateRange"`
	Settings  GlobalSettings `json:"settings"`
	Results   []Result       `json:"results"`
	Totals    Totals         `json:"totals"`
}

type BatchSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	DateRange DateRange `json:"dateRange"`
	Totals    Totals    `json:"totals"`
}

type EarningsStatus struct {
	EmployeeNumber     string  `json:"employeeNumber"`
	LifetimeEarnings   float64 `json:"lifetimeEarnings"`
	RemainingExemption float64 `json:"remainingExemption"`
	Batches            int     `json:"batches"`
}
