package models

import "errors"

// Repository level errors. Repositories wrap them, callers test with errors.Is.
var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key rejects an insert
	ErrDuplicate = errors.New("duplicate entry")
)
