package transaction

import "context"

type Repository interface {
	Create(ctx context.Context, t *Transaction) error

	// GetByID looks a transaction up inside one account's log.
	GetByID(ctx context.Context, accountID, id string) (*Transaction, error)

	// ListByAccount returns the log in insertion order.
	ListByAccount(ctx context.Context, accountID string) ([]Transaction, error)
}
