package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByID(ctx context.Context, accountID, id string) (*Loan, error)
	ListByAccount(ctx context.Context, accountID string) ([]Loan, error)
}
