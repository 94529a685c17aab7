package ledger

import (
	"fmt"

	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountPrecision     = fmt.Errorf("amount must have at most two decimal places: %w", errs.ErrValidation)
	ErrNegativeOpening     = fmt.Errorf("opening balance cannot be negative: %w", errs.ErrValidation)
	ErrUnsupportedCurrency = fmt.Errorf("unsupported currency: %w", errs.ErrValidation)
	ErrEmptyName           = fmt.Errorf("name cannot be empty: %w", errs.ErrValidation)
	ErrNotificationsOff    = fmt.Errorf("account change notifications are not configured: %w", errs.ErrValidation)
)

type OpenAccountInput struct {
	Name           string
	Phone          string
	Currency       string
	OpeningBalance decimal.Decimal
}

// MutationInput describes a single-account deposit or withdrawal.
// RequestID, when set, makes the call safe to retry.
type MutationInput struct {
	Amount      decimal.Decimal
	Description string
	Category    string
	Recipient   string
	RequestID   string
}

type TransferInput struct {
	RecipientAccountNumber string
	Amount                 decimal.Decimal
	Description            string
	RequestID              string
}

type TransferResult struct {
	TransferID           string                   `json:"transfer_id"`
	SenderTransaction    *transaction.Transaction `json:"sender_transaction"`
	RecipientTransaction *transaction.Transaction `json:"recipient_transaction"`
	SenderBalance        decimal.Decimal          `json:"sender_balance"`
	RecipientBalance     decimal.Decimal          `json:"-"`
	// Replayed is set when the transfer had already been applied.
	Replayed bool `json:"replayed"`
}

type LoanInput struct {
	Amount     decimal.Decimal
	TermMonths int
	RequestID  string
}

// AccountView is an account with its transactions newest first and its loans.
type AccountView struct {
	*account.Account
	Transactions []transaction.Transaction `json:"transactions"`
	Loans        []loan.Loan               `json:"loans"`
}
