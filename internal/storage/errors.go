package storage

import "errors"

var (
	// ErrNotFound means no record matches the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means a decision with the same id is already held.
	// Stored decisions are never replaced.
	ErrDuplicateKey = errors.New("decision id already stored")

	// ErrInvalidInput means the record failed validation before insert.
	ErrInvalidInput = errors.New("record failed validation")
)
