package account

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency every balance is stored in.
const BaseCurrency = "USD"

var (
	ErrNotFound             = fmt.Errorf("account %w", errs.ErrNotFound)
	ErrRecipientNotFound    = fmt.Errorf("recipient account %w", errs.ErrNotFound)
	ErrAlreadyExists        = fmt.Errorf("account already exists: %w", errs.ErrConflict)
	ErrStaleVersion         = fmt.Errorf("account was modified by another request: %w", errs.ErrConflict)
	ErrInsufficientFunds    = fmt.Errorf("balance too low for this operation: %w", errs.ErrInsufficientFunds)
	ErrInvalidAccountNumber = fmt.Errorf("account number must be exactly 10 digits: %w", errs.ErrValidation)
	ErrInvalidUserID        = fmt.Errorf("user id is required: %w", errs.ErrValidation)
	ErrSameAccount          = fmt.Errorf("cannot transfer to the same account: %w", errs.ErrValidation)
)

var reAccountNumber = regexp.MustCompile(`^[0-9]{10}$`)

// Table: accounts. Transactions and Loans are not columns; they are loaded
// from their own tables (row store) or embedded in the snapshot (KV store).
type Account struct {
	ID              string          `gorm:"column:id;primaryKey;size:32" json:"id"`
	UserID          string          `gorm:"column:user_id;size:64;not null;uniqueIndex:ux_accounts_user_id" json:"user_id"`
	AccountNumber   string          `gorm:"column:account_number;size:10;not null;uniqueIndex:ux_accounts_account_number" json:"account_number"`
	Name            string          `gorm:"column:name;size:128" json:"name"`
	Phone           string          `gorm:"column:phone;size:32" json:"phone,omitempty"`
	Balance         decimal.Decimal `gorm:"column:balance;type:decimal(18,2);not null" json:"balance"`
	Currency        string          `gorm:"column:currency;size:3;not null" json:"currency"`
	DisplayCurrency string          `gorm:"column:display_currency;size:3" json:"display_currency,omitempty"`
	Version         int64           `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`

	Transactions []transaction.Transaction `gorm:"-" json:"transactions"`
	Loans        []loan.Loan               `gorm:"-" json:"loans"`
}

func (Account) TableName() string { return "accounts" }

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// Debit removes amount from the balance; the balance never goes negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// ValidateAccountNumber checks the fixed-length numeric format.
func ValidateAccountNumber(n string) error {
	if !reAccountNumber.MatchString(strings.TrimSpace(n)) {
		return ErrInvalidAccountNumber
	}
	return nil
}

// Profile is the owner-supplied data used when opening an account.
type Profile struct {
	Name     string
	Phone    string
	Currency string
}

// ProfilePatch updates non-ledger fields. Nil fields are left unchanged.
type ProfilePatch struct {
	Name            *string
	Phone           *string
	DisplayCurrency *string
}

// Apply copies the set fields of p onto a.
func (p ProfilePatch) Apply(a *Account) {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		a.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.DisplayCurrency != nil {
		a.DisplayCurrency = strings.ToUpper(strings.TrimSpace(*p.DisplayCurrency))
	}
}
