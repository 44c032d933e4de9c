package payroll

import "errors"

var (
	ErrBatchNotFound     = errors.New("payroll batch not found")
	ErrEmptyBatch        = errors.New("payroll batch has no referees")
	ErrInvalidDateRange  = errors.New("date range end is before start")
	ErrInvalidSettings   = errors.New("global payroll settings are out of range")
	ErrInvalidRate       = errors.New("category rate must be a non-negative amount with a name")
	ErrRateNotFound      = errors.New("category rate not found")
	ErrUnknownReferee    = errors.New("tally references an unregistered referee")
	ErrUnresolvedName    = errors.New("schedule name has no referee match")
	ErrInvalidAdjustment = errors.New("extra pay and fines must not be negative")
	ErrInvalidTally      = errors.New("game counts must not be negative")
	ErrInvalidBatchName  = errors.New("batch name must not be empty")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
