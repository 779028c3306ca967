package repository

import "errors"

var (
	// ErrNotFound signals a lookup or update that matched zero rows.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey signals a unique-constraint violation on insert.
	ErrDuplicateKey = errors.New("duplicate key violation")
)
