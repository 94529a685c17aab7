package accountmock

import (
	"context"
	"errors"

	domain "fastpay-ledger/internal/domain/account"
)

var _ domain.Repository = (*Repo)(nil)

var errUnimplemented = errors.New("accountmock: method not implemented")

// Repo is a function-backed mock that satisfies domain.Repository.
// Writes default to a nil error, reads to errUnimplemented.
type Repo struct {
	CreateFn                      func(ctx context.Context, a *domain.Account) error
	GetByUserIDFn                 func(ctx context.Context, userID string) (*domain.Account, error)
	GetByAccountNumberFn          func(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetByUserIDForUpdateFn        func(ctx context.Context, userID string) (*domain.Account, error)
	GetByAccountNumberForUpdateFn func(ctx context.Context, accountNumber string) (*domain.Account, error)
	SaveFn                        func(ctx context.Context, a *domain.Account) error
}

func (m *Repo) Create(ctx context.Context, a *domain.Account) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}
func (m *Repo) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	if m.GetByUserIDFn != nil {
		return m.GetByUserIDFn(ctx, userID)
	}
	return nil, errUnimplemented
}
func (m *Repo) GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if m.GetByAccountNumberFn != nil {
		return m.GetByAccountNumberFn(ctx, accountNumber)
	}
	return nil, errUnimplemented
}
func (m *Repo) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.Account, error) {
	if m.GetByUserIDForUpdateFn != nil {
		return m.GetByUserIDForUpdateFn(ctx, userID)
	}
	return nil, errUnimplemented
}
func (m *Repo) GetByAccountNumberForUpdate(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if m.GetByAccountNumberForUpdateFn != nil {
		return m.GetByAccountNumberForUpdateFn(ctx, accountNumber)
	}
	return nil, errUnimplemented
}
func (m *Repo) Save(ctx context.Context, a *domain.Account) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, a)
	}
	return nil
}
