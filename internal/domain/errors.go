package domain

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle change is not allowed
	// from the invoice's current state.
	ErrInvalidTransition = errors.New("invalid invoice transition")

	// ErrNonFiniteNumeric is returned when an amount or rate is NaN, infinite
	// or negative where a non-negative real is required.
	ErrNonFiniteNumeric = errors.New("value must be a finite non-negative number")
)
