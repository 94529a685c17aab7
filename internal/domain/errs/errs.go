// Package errs holds the error kinds every ledger failure is classified under.
// Domain packages wrap these with their own sentinels so callers can match
// either the specific error or its kind with errors.Is.
package errs

import "errors"

var (
	// ErrValidation: malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientFunds: a debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound: unknown account, recipient or record.
	ErrNotFound = errors.New("not found")
	// ErrPolicyLimit: a policy cap (e.g. active loans) is reached.
	ErrPolicyLimit = errors.New("policy limit reached")
	// ErrConflict: the record changed underneath the caller or already exists.
	ErrConflict = errors.New("conflict")
	// ErrPersistence: the store failed; nothing was committed.
	ErrPersistence = errors.New("persistence unavailable")
)

// Kind returns the error kind err belongs to, or nil when it is unclassified.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrInsufficientFunds, ErrNotFound, ErrPolicyLimit, ErrConflict, ErrPersistence} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
