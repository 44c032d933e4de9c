package matching

import "errors"

var (
	ErrMappingNotFound   = errors.New("match mapping not found")
	ErrEmptyScheduleName = errors.New("schedule name normalizes to empty")
)
