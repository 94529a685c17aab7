package mysql

import (
	"context"
	"errors"
	"fmt"

	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/transaction"

	"gorm.io/gorm"
)

type TransactionRepository struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("transaction %s already recorded: %w", t.ID, errs.ErrConflict)
	}
	return err
}

func (r *TransactionRepository) GetByID(ctx context.Context, accountID, id string) (*transaction.Transaction, error) {
	var out transaction.Transaction
	err := r.db.WithContext(ctx).Where("account_id = ? AND id = ?", accountID, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, transaction.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]transaction.Transaction, error) {
	var out []transaction.Transaction
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("seq ASC").Find(&out).Error
	return out, err
}
