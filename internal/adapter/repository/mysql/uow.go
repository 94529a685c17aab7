package mysql

import (
	"context"

	"fastpay-ledger/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

func (u *GormUoW) Reader() uow.Repos { return reposFor(u.db) }

func reposFor(db *gorm.DB) uow.Repos {
	return uow.Repos{
		Accounts:     &AccountRepository{db: db},
		Transactions: &TransactionRepository{db: db},
		Loans:        &LoanRepository{db: db},
	}
}

var _ uow.UnitOfWork = (*GormUoW)(nil)
