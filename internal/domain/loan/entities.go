package loan

import (
	"fmt"
	"time"

	"fastpay-ledger/internal/domain/errs"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaid      Status = "paid"
	StatusDefaulted Status = "defaulted"
)

var (
	ErrNotFound         = fmt.Errorf("loan %w", errs.ErrNotFound)
	ErrAmountOutOfRange = fmt.Errorf("loan amount is outside the allowed range: %w", errs.ErrValidation)
	ErrInvalidTerm      = fmt.Errorf("loan term must be a positive number of months: %w", errs.ErrValidation)
	ErrActiveLoanLimit  = fmt.Errorf("maximum number of active loans reached: %w", errs.ErrPolicyLimit)
)

// Table: loans
type Loan struct {
	Seq              uint64          `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ID               string          `gorm:"column:id;size:64;not null;uniqueIndex:ux_loans_account_loan" json:"id"`
	AccountID        string          `gorm:"column:account_id;size:32;not null;uniqueIndex:ux_loans_account_loan;index" json:"-"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	InterestRate     decimal.Decimal `gorm:"column:interest_rate;type:decimal(6,4);not null" json:"interest_rate"`
	TermMonths       int             `gorm:"column:term_months;not null" json:"term_months"`
	MonthlyPayment   decimal.Decimal `gorm:"column:monthly_payment;type:decimal(18,2);not null" json:"monthly_payment"`
	RemainingBalance decimal.Decimal `gorm:"column:remaining_balance;type:decimal(18,2);not null" json:"remaining_balance"`
	Status           Status          `gorm:"column:status;size:16;not null;index" json:"status"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	DueDate          time.Time       `gorm:"column:due_date" json:"due_date"`
}

func (Loan) TableName() string { return "loans" }

// CountActive returns how many loans in ls are active.
func CountActive(ls []Loan) int {
	n := 0
	for _, l := range ls {
		if l.Status == StatusActive {
			n++
		}
	}
	return n
}

// Policy is the lending rule set applied by the ledger.
type Policy struct {
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	MaxActive  int
	AnnualRate decimal.Decimal
	// DaysPerMonth converts the term into a due date.
	DaysPerMonth int
}

func DefaultPolicy() Policy {
	return Policy{
		MinAmount:    decimal.NewFromInt(100),
		MaxAmount:    decimal.NewFromInt(10000),
		MaxActive:    2,
		AnnualRate:   decimal.RequireFromString("0.15"),
		DaysPerMonth: 30,
	}
}

// Check validates a request against the policy. activeLoans is the number of
// loans the account already has active.
func (p Policy) Check(amount decimal.Decimal, termMonths, activeLoans int) error {
	if amount.LessThan(p.MinAmount) || amount.GreaterThan(p.MaxAmount) {
		return fmt.Errorf("%w: %s to %s", ErrAmountOutOfRange, p.MinAmount.StringFixed(2), p.MaxAmount.StringFixed(2))
	}
	if termMonths <= 0 {
		return ErrInvalidTerm
	}
	if activeLoans >= p.MaxActive {
		return fmt.Errorf("%w (%d)", ErrActiveLoanLimit, p.MaxActive)
	}
	return nil
}

// DueDate is the date the last installment falls due.
func (p Policy) DueDate(from time.Time, termMonths int) time.Time {
	days := p.DaysPerMonth
	if days <= 0 {
		days = 30
	}
	return from.AddDate(0, 0, termMonths*days)
}
