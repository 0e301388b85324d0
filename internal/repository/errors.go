package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when a created entity collides with a stored one.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrAgentUnavailable is returned when an agent is no longer available at assignment time.
	ErrAgentUnavailable = errors.New("agent not available")

	// ErrStaleState is returned when a conditional update finds the record in another state.
	ErrStaleState = errors.New("record state changed")

	// ErrDuplicateTransaction is returned when an order-bound entry already exists for the same type.
	ErrDuplicateTransaction = errors.New("duplicate ledger transaction")

	// ErrInsufficientBalance is returned when a debit would take the balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrWalletInactive is returned when a debit targets an inactive wallet.
	ErrWalletInactive = errors.New("wallet inactive")
)
