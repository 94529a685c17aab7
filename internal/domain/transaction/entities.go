package transaction

import (
	"fmt"
	"strings"
	"time"

	"fastpay-ledger/internal/domain/errs"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
	// TypeTransfer is a legacy display classification; it never moves the balance.
	TypeTransfer Type = "transfer"
)

type Category string

const (
	CategoryTransfer Category = "transfer"
	CategoryBillPay  Category = "bill_pay"
	CategoryAirtime  Category = "airtime"
	CategoryLoan     Category = "loan"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryTransfer, CategoryBillPay, CategoryAirtime, CategoryLoan, CategoryOther}

type Status string

const (
	StatusCompleted Status = "completed"
	// pending and failed are reserved for asynchronous settlement.
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

var (
	ErrNotFound          = fmt.Errorf("transaction %w", errs.ErrNotFound)
	ErrNonPositiveAmount = fmt.Errorf("amount must be greater than zero: %w", errs.ErrValidation)
	ErrUnknownCategory   = fmt.Errorf("unknown transaction category: %w", errs.ErrValidation)
	ErrUnknownType       = fmt.Errorf("unknown transaction type: %w", errs.ErrValidation)
)

// Table: transactions. Rows are append-only.
type Transaction struct {
	// Seq is the insertion order inside the store; it is not part of the public record.
	Seq         uint64          `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ID          string          `gorm:"column:id;size:64;not null;uniqueIndex:ux_transactions_account_txn" json:"id"`
	AccountID   string          `gorm:"column:account_id;size:32;not null;uniqueIndex:ux_transactions_account_txn;index" json:"-"`
	Type        Type            `gorm:"column:type;size:16;not null" json:"type"`
	Category    Category        `gorm:"column:category;size:16" json:"category,omitempty"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Description string          `gorm:"column:description;type:text" json:"description"`
	Recipient   string          `gorm:"column:recipient;size:128" json:"recipient,omitempty"`
	Date        time.Time       `gorm:"column:date;not null;index" json:"date"`
	Status      Status          `gorm:"column:status;size:16;not null" json:"status"`
}

func (Transaction) TableName() string { return "transactions" }

// Signed is the amount's effect on the balance.
func (t Transaction) Signed() decimal.Decimal {
	switch t.Type {
	case TypeIncome:
		return t.Amount
	case TypeExpense:
		return t.Amount.Neg()
	}
	return decimal.Zero
}

// EffectiveCategory maps records written without a category to "other".
func (t Transaction) EffectiveCategory() Category {
	if t.Category == "" {
		return CategoryOther
	}
	return t.Category
}

// Net sums the signed amounts of txs.
func Net(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.Signed())
	}
	return sum
}

func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryOther, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeIncome:
		return TypeIncome, nil
	case TypeExpense:
		return TypeExpense, nil
	case TypeTransfer:
		return TypeTransfer, nil
	}
	return "", ErrUnknownType
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return nil
}
