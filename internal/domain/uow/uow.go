package uow

import (
	"context"

	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"
)

// Repos are bound to one unit of work.
type Repos struct {
	Accounts     account.Repository
	Transactions transaction.Repository
	Loans        loan.Repository
}

// UnitOfWork runs fn inside one transactional boundary: every write fn makes
// through r commits together, or none does when fn returns an error.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// Reader returns repositories for reads outside a unit of work.
	Reader() Repos
}
