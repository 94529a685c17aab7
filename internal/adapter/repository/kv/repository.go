package kv

import (
	"context"
	"fmt"
	"time"

	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"
)

// Repositories hand out copies; nothing returned aliases the snapshot.

type AccountRepository struct{ s session }

func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	return r.s.write(ctx, func(s *Snapshot) error {
		for _, cur := range s.Accounts {
			if cur.UserID == a.UserID || cur.AccountNumber == a.AccountNumber || cur.ID == a.ID {
				return account.ErrAlreadyExists
			}
		}
		row := *a
		row.Transactions = []transaction.Transaction{}
		row.Loans = []loan.Loan{}
		s.Accounts = append(s.Accounts, row)
		return nil
	})
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*account.Account, error) {
	return r.find(ctx, func(a *account.Account) bool { return a.UserID == userID })
}

func (r *AccountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*account.Account, error) {
	return r.find(ctx, func(a *account.Account) bool { return a.AccountNumber == accountNumber })
}

// The store is already serialized by the unit of work, so the locking reads
// are plain reads.
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*account.Account, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *AccountRepository) GetByAccountNumberForUpdate(ctx context.Context, accountNumber string) (*account.Account, error) {
	return r.GetByAccountNumber(ctx, accountNumber)
}

func (r *AccountRepository) Save(ctx context.Context, a *account.Account) error {
	return r.s.write(ctx, func(s *Snapshot) error {
		cur := byID(s, a.ID)
		if cur == nil {
			return account.ErrNotFound
		}
		if cur.Version != a.Version {
			return account.ErrStaleVersion
		}
		cur.Name = a.Name
		cur.Phone = a.Phone
		cur.Balance = a.Balance
		cur.DisplayCurrency = a.DisplayCurrency
		cur.Version++
		cur.UpdatedAt = time.Now().UTC()
		a.Version, a.UpdatedAt = cur.Version, cur.UpdatedAt
		return nil
	})
}

func (r *AccountRepository) find(ctx context.Context, match func(a *account.Account) bool) (*account.Account, error) {
	var out *account.Account
	err := r.s.read(ctx, func(s *Snapshot) error {
		for i := range s.Accounts {
			if match(&s.Accounts[i]) {
				row := s.Accounts[i]
				row.Transactions, row.Loans = nil, nil
				out = &row
				return nil
			}
		}
		return account.ErrNotFound
	})
	return out, err
}

type TransactionRepository struct{ s session }

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	return r.s.write(ctx, func(s *Snapshot) error {
		a := byID(s, t.AccountID)
		if a == nil {
			return account.ErrNotFound
		}
		for _, cur := range a.Transactions {
			if cur.ID == t.ID {
				return fmt.Errorf("transaction %s already recorded: %w", t.ID, errs.ErrConflict)
			}
		}
		t.Seq = uint64(len(a.Transactions) + 1)
		a.Transactions = append(a.Transactions, *t)
		return nil
	})
}

func (r *TransactionRepository) GetByID(ctx context.Context, accountID, id string) (*transaction.Transaction, error) {
	var out *transaction.Transaction
	err := r.s.read(ctx, func(s *Snapshot) error {
		a := byID(s, accountID)
		if a == nil {
			return transaction.ErrNotFound
		}
		for i, t := range a.Transactions {
			if t.ID == id {
				t.AccountID, t.Seq = accountID, uint64(i+1)
				out = &t
				return nil
			}
		}
		return transaction.ErrNotFound
	})
	return out, err
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]transaction.Transaction, error) {
	var out []transaction.Transaction
	err := r.s.read(ctx, func(s *Snapshot) error {
		a := byID(s, accountID)
		if a == nil {
			return nil
		}
		out = make([]transaction.Transaction, len(a.Transactions))
		for i, t := range a.Transactions {
			t.AccountID, t.Seq = accountID, uint64(i+1)
			out[i] = t
		}
		return nil
	})
	return out, err
}

type LoanRepository struct{ s session }

func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	return r.s.write(ctx, func(s *Snapshot) error {
		a := byID(s, l.AccountID)
		if a == nil {
			return account.ErrNotFound
		}
		for _, cur := range a.Loans {
			if cur.ID == l.ID {
				return fmt.Errorf("loan %s already recorded: %w", l.ID, errs.ErrConflict)
			}
		}
		l.Seq = uint64(len(a.Loans) + 1)
		a.Loans = append(a.Loans, *l)
		return nil
	})
}

func (r *LoanRepository) GetByID(ctx context.Context, accountID, id string) (*loan.Loan, error) {
	var out *loan.Loan
	err := r.s.read(ctx, func(s *Snapshot) error {
		a := byID(s, accountID)
		if a == nil {
			return loan.ErrNotFound
		}
		for i, l := range a.Loans {
			if l.ID == id {
				l.AccountID, l.Seq = accountID, uint64(i+1)
				out = &l
				return nil
			}
		}
		return loan.ErrNotFound
	})
	return out, err
}

func (r *LoanRepository) ListByAccount(ctx context.Context, accountID string) ([]loan.Loan, error) {
	var out []loan.Loan
	err := r.s.read(ctx, func(s *Snapshot) error {
		a := byID(s, accountID)
		if a == nil {
			return nil
		}
		out = make([]loan.Loan, len(a.Loans))
		for i, l := range a.Loans {
			l.AccountID, l.Seq = accountID, uint64(i+1)
			out[i] = l
		}
		return nil
	})
	return out, err
}

func byID(s *Snapshot, id string) *account.Account {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i]
		}
	}
	return nil
}
