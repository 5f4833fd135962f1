package state

import "errors"

var (
	// ErrRepositoryClosed indicates an operation on a closed repository
	ErrRepositoryClosed = errors.New("repository closed")

	// ErrInsufficientBalance indicates a debit larger than the balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBalanceOverflow indicates a credit that does not fit 256 bits
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrMissingKeyLookup indicates a secure key that cannot be mapped back to its address
	ErrMissingKeyLookup = errors.New("key not found in lookup")
)
