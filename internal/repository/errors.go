package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStatusConflict is returned when a conditional update finds the row
	// in a different status than expected (compare-and-swap lost).
	ErrStatusConflict = errors.New("status conflict")
)
