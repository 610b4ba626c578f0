package db

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrQuotaExceeded is returned by transactional writes that re-check a usage limit.
	ErrQuotaExceeded = errors.New("usage quota exceeded")
	// ErrConflict is returned when a record is not in the state a write expects.
	ErrConflict = errors.New("record state conflict")
)
