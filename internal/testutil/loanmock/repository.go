package loanmock

import (
	"context"
	"errors"

	domain "fastpay-ledger/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

var errUnimplemented = errors.New("loanmock: method not implemented")

type Repo struct {
	CreateFn        func(ctx context.Context, l *domain.Loan) error
	GetByIDFn       func(ctx context.Context, accountID, id string) (*domain.Loan, error)
	ListByAccountFn func(ctx context.Context, accountID string) ([]domain.Loan, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}
func (m *Repo) GetByID(ctx context.Context, accountID, id string) (*domain.Loan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, accountID, id)
	}
	return nil, errUnimplemented
}
func (m *Repo) ListByAccount(ctx context.Context, accountID string) ([]domain.Loan, error) {
	if m.ListByAccountFn != nil {
		return m.ListByAccountFn(ctx, accountID)
	}
	return nil, errUnimplemented
}
