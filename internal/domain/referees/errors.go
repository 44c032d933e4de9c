package referees

import "errors"

var (
	ErrNotFound       = errors.New("referee not found")
	ErrDuplicateKey   = errors.New("employee number already registered")
	ErrInvalidReferee = errors.New("employee number and full name are required")
	ErrInvalidRate    = errors.New("fixed rate must not be negative")
)
