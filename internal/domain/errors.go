package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrUnknownCategory  = errors.New("domain: unknown category")
	ErrCategoryMismatch = errors.New("domain: event does not belong to category")
	ErrUnknownMessage   = errors.New("domain: unknown message")
)
