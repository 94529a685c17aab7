package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindOpened      Kind = "opened"
	KindProfile     Kind = "profile"
	KindDeposit     Kind = "deposit"
	KindWithdrawal  Kind = "withdrawal"
	KindTransferOut Kind = "transfer_out"
	KindTransferIn  Kind = "transfer_in"
	KindLoan        Kind = "loan"
)

// AccountChanged is published after a unit of work touching the account commits.
type AccountChanged struct {
	UserID        string          `json:"user_id"`
	AccountID     string          `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Kind          Kind            `json:"kind"`
	Balance       decimal.Decimal `json:"balance"`
	Version       int64           `json:"version"`
	TransactionID string          `json:"transaction_id,omitempty"`
	At            time.Time       `json:"at"`
}
