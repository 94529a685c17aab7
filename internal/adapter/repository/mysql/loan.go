package mysql

import (
	"context"
	"errors"
	"fmt"

	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/loan"

	"gorm.io/gorm"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	err := r.db.WithContext(ctx).Create(l).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("loan %s already recorded: %w", l.ID, errs.ErrConflict)
	}
	return err
}

func (r *LoanRepository) GetByID(ctx context.Context, accountID, id string) (*loan.Loan, error) {
	var out loan.Loan
	err := r.db.WithContext(ctx).Where("account_id = ? AND id = ?", accountID, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, loan.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *LoanRepository) ListByAccount(ctx context.Context, accountID string) ([]loan.Loan, error) {
	var out []loan.Loan
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("seq ASC").Find(&out).Error
	return out, err
}
