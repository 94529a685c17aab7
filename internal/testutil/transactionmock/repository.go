package transactionmock

import (
	"context"
	"errors"

	domain "fastpay-ledger/internal/domain/transaction"
)

var _ domain.Repository = (*Repo)(nil)

var errUnimplemented = errors.New("transactionmock: method not implemented")

type Repo struct {
	CreateFn        func(ctx context.Context, t *domain.Transaction) error
	GetByIDFn       func(ctx context.Context, accountID, id string) (*domain.Transaction, error)
	ListByAccountFn func(ctx context.Context, accountID string) ([]domain.Transaction, error)
}

func (m *Repo) Create(ctx context.Context, t *domain.Transaction) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, t)
	}
	return nil
}
func (m *Repo) GetByID(ctx context.Context, accountID, id string) (*domain.Transaction, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, accountID, id)
	}
	return nil, errUnimplemented
}
func (m *Repo) ListByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	if m.ListByAccountFn != nil {
		return m.ListByAccountFn(ctx, accountID)
	}
	return nil, errUnimplemented
}
