package kv

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"

	"github.com/shopspring/decimal"
)

// SchemaVersion is the layout written by this build.
const SchemaVersion = 1

// DefaultKey is where the guest ledger lives.
const DefaultKey = "guestAccount"

var (
	ErrUnknownSchema   = fmt.Errorf("stored ledger has an unknown schema: %w", errs.ErrPersistence)
	ErrCorruptSnapshot = fmt.Errorf("stored ledger cannot be decoded: %w", errs.ErrPersistence)
)

// Snapshot is the whole document kept under one key.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	Accounts      []account.Account `json:"accounts"`
}

func emptySnapshot() *Snapshot {
	return &Snapshot{SchemaVersion: SchemaVersion, Accounts: []account.Account{}}
}

// legacyAccount is the unversioned guest record: one account, camelCase
// fields, loan rates in percent.
type legacyAccount struct {
	ID              string          `json:"id"`
	AccountNumber   string          `json:"accountNumber"`
	Name            string          `json:"name"`
	Balance         decimal.Decimal `json:"balance"`
	Currency        string          `json:"currency"`
	DisplayCurrency string          `json:"displayCurrency"`
	Transactions    []struct {
		ID          string          `json:"id"`
		Type        string          `json:"type"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Recipient   string          `json:"recipient"`
		Date        time.Time       `json:"date"`
		Status      string          `json:"status"`
	} `json:"transactions"`
	Loans []struct {
		ID             string          `json:"id"`
		Amount         decimal.Decimal `json:"amount"`
		TermMonths     int             `json:"termMonths"`
		InterestRate   decimal.Decimal `json:"interestRate"`
		MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
		Status         string          `json:"status"`
		DisbursedAt    time.Time       `json:"disbursedAt"`
	} `json:"loans"`
}

// Migrate decodes a stored document of any known layout into the current
// Snapshot. The bool reports whether an upgrade happened. guestUserID owns
// the account of a legacy record.
func Migrate(raw []byte, guestUserID string, policy loan.Policy) (*Snapshot, bool, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if v, ok := probe["schema_version"]; ok {
		var version int
		if err := json.Unmarshal(v, &version); err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
		if version != SchemaVersion {
			return nil, false, fmt.Errorf("%w (%d)", ErrUnknownSchema, version)
		}
		snap := emptySnapshot()
		if err := json.Unmarshal(raw, snap); err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
		return snap, false, nil
	}

	if _, ok := probe["accountNumber"]; !ok {
		return nil, false, ErrUnknownSchema
	}
	if _, ok := probe["balance"]; !ok {
		return nil, false, ErrUnknownSchema
	}
	var old legacyAccount
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	return &Snapshot{SchemaVersion: SchemaVersion, Accounts: []account.Account{upgrade(old, guestUserID, policy)}}, true, nil
}

func upgrade(old legacyAccount, userID string, policy loan.Policy) account.Account {
	a := account.Account{
		ID:              old.ID,
		UserID:          userID,
		AccountNumber:   old.AccountNumber,
		Name:            old.Name,
		Balance:         old.Balance,
		Currency:        account.BaseCurrency,
		DisplayCurrency: strings.ToUpper(old.DisplayCurrency),
		Transactions:    make([]transaction.Transaction, 0, len(old.Transactions)),
		Loans:           make([]loan.Loan, 0, len(old.Loans)),
	}
	if a.DisplayCurrency == "" {
		a.DisplayCurrency = strings.ToUpper(old.Currency)
	}

	hundred := decimal.NewFromInt(100)
	for _, t := range old.Transactions {
		status := transaction.Status(t.Status)
		if status == "" {
			status = transaction.StatusCompleted
		}
		a.Transactions = append(a.Transactions, transaction.Transaction{
			ID:          t.ID,
			Type:        transaction.Type(t.Type),
			Category:    transaction.Category(t.Category),
			Amount:      t.Amount.Abs(),
			Description: t.Description,
			Recipient:   t.Recipient,
			Date:        t.Date,
			Status:      status,
		})
		if a.CreatedAt.IsZero() || t.Date.Before(a.CreatedAt) {
			a.CreatedAt = t.Date
		}
	}
	for _, l := range old.Loans {
		rate := l.InterestRate
		if rate.GreaterThan(decimal.NewFromInt(1)) {
			rate = rate.Div(hundred)
		}
		a.Loans = append(a.Loans, loan.Loan{
			ID:               l.ID,
			Amount:           l.Amount,
			InterestRate:     rate,
			TermMonths:       l.TermMonths,
			MonthlyPayment:   l.MonthlyPayment.Round(2),
			RemainingBalance: l.Amount,
			Status:           loan.Status(l.Status),
			CreatedAt:        l.DisbursedAt,
			DueDate:          policy.DueDate(l.DisbursedAt, l.TermMonths),
		})
	}
	a.UpdatedAt = a.CreatedAt
	return a
}
