package mysql

import (
	"context"
	"errors"
	"time"

	"fastpay-ledger/internal/domain/account"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) *AccountRepository { return &AccountRepository{db: db} }

func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return account.ErrAlreadyExists
	}
	return err
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*account.Account, error) {
	return r.first(r.db.WithContext(ctx), "user_id = ?", userID)
}

func (r *AccountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*account.Account, error) {
	return r.first(r.db.WithContext(ctx), "account_number = ?", accountNumber)
}

func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*account.Account, error) {
	return r.first(r.locked(ctx), "user_id = ?", userID)
}

func (r *AccountRepository) GetByAccountNumberForUpdate(ctx context.Context, accountNumber string) (*account.Account, error) {
	return r.first(r.locked(ctx), "account_number = ?", accountNumber)
}

// Save is an optimistic update: the row only changes when the version the
// caller read is still current.
func (r *AccountRepository) Save(ctx context.Context, a *account.Account) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&account.Account{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]any{
			"name":             a.Name,
			"phone":            a.Phone,
			"balance":          a.Balance,
			"display_currency": a.DisplayCurrency,
			"version":          a.Version + 1,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return account.ErrStaleVersion
	}
	a.Version++
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepository) locked(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *AccountRepository) first(q *gorm.DB, cond string, arg any) (*account.Account, error) {
	var out account.Account
	err := q.Where(cond, arg).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
