package service

import "errors"

// Error taxonomy shared by the provisioning core. Callers match with
// errors.Is; services wrap these with context via fmt.Errorf and %w.
var (
	// ErrInvalidSignature is a callback whose signature does not verify.
	// Treated as a failed payment attempt with no state change.
	ErrInvalidSignature = errors.New("invalid gateway signature")

	// ErrNotFound is an unknown transaction, order, account or token
	// reference. No partial effects are left behind.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientSupply means the token pool cannot cover the requested
	// quantity. Fails the specific order, never a partial commit.
	ErrInsufficientSupply = errors.New("insufficient token supply")

	// ErrTokenConflict is an attempted commit of a token to a second order.
	// Hard failure, never silently resolved.
	ErrTokenConflict = errors.New("token already committed to another order")

	// ErrInvalidState rejects an operation illegal for the record's current
	// lifecycle state, e.g. renewing a revoked license.
	ErrInvalidState = errors.New("invalid state")
)
