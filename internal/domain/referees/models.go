package referees

import "time"

type Referee struct {
	EmployeeNumber string    `json:"employeeNumber"`
	FullName       string    `json:"fullName"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Settings holds per-referee payroll overrides. A referee without a stored
// row gets DefaultSettings.
type Settings struct {
	EmployeeNumber string    `json:"employeeNumber"`
	HasFixedRate   bool      `json:"hasFixedRate"`
	FixedRate      float64   `json:"fixedRate"`
	HasAdminFee    bool      `json:"hasAdminFee"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}
