package account

import "context"

type Repository interface {
	// Create inserts a new account; ErrAlreadyExists on a duplicate user or number.
	Create(ctx context.Context, a *Account) error

	GetByUserID(ctx context.Context, userID string) (*Account, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*Account, error)

	// ForUpdate variants lock the row for the rest of the unit of work.
	GetByUserIDForUpdate(ctx context.Context, userID string) (*Account, error)
	GetByAccountNumberForUpdate(ctx context.Context, accountNumber string) (*Account, error)

	// Save persists a only if its Version still matches the stored one, then
	// bumps Version. ErrStaleVersion otherwise.
	Save(ctx context.Context, a *Account) error
}
