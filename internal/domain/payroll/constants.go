package payroll

const (
	// LifetimeTaxExemption is consumed once per referee across all saved batches.
	LifetimeTaxExemption = 500.0

	DefaultAdminFeePerGame = 1.0

	WarningUnratedCategory = "unrated_category"
	WarningNegativeNet     = "negative_net"
	WarningLowConfidence   = "low_confidence"

	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)
