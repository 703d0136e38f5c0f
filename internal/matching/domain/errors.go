package domain

import "errors"

var (
	ErrMatchNotFound = errors.New("match_not_found")
	ErrPairMismatch  = errors.New("invoice_not_in_declaration")
	// ErrConcurrentMatch means another run claimed an item first; rerun to pick up its matches.
	ErrConcurrentMatch = errors.New("concurrent_match")
)
