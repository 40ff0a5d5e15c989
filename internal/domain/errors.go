package domain

import "errors"

// Sentinel errors classified at the transport boundary.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotEntitled         = errors.New("plan not entitled")
	ErrInsufficientCredits = errors.New("insufficient credits")
)
