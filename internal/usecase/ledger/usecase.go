package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/currency"
	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/events"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"
	"fastpay-ledger/internal/domain/uow"
	"fastpay-ledger/pkg/id"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OpeningDescription labels the transaction that books an opening balance.
const OpeningDescription = "Initial demo balance"

const accountNumberAttempts = 5

// Usecase is the ledger engine. Every mutation runs in one unit of work so a
// balance change and its transaction record commit together.
type Usecase struct {
	uow      uow.UnitOfWork
	now      func() time.Time
	ids      IDs
	latency  Latency
	notifier Notifier
	policy   loan.Policy
	log      *zap.Logger
}

func NewUsecase(tx uow.UnitOfWork, opts ...Option) *Usecase {
	u := &Usecase{
		uow:     tx,
		now:     func() time.Time { return time.Now().UTC() },
		ids:     defaultIDs(),
		latency: NoLatency{},
		policy:  loan.DefaultPolicy(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Usecase) Policy() loan.Policy { return u.policy }

func (u *Usecase) OpenAccount(ctx context.Context, userID string, in OpenAccountInput) (*AccountView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, account.ErrInvalidUserID
	}
	display := currency.Normalize(in.Currency)
	if display != "" && !currency.IsSupported(display) {
		return nil, ErrUnsupportedCurrency
	}
	if in.OpeningBalance.IsNegative() {
		return nil, ErrNegativeOpening
	}
	if err := checkPrecision(in.OpeningBalance); err != nil {
		return nil, err
	}
	if err := u.latency.Wait(ctx); err != nil {
		return nil, err
	}

	now := u.now()
	a := &account.Account{
		ID:              u.ids.AccountID(),
		UserID:          userID,
		Name:            strings.TrimSpace(in.Name),
		Phone:           strings.TrimSpace(in.Phone),
		Balance:         decimal.Zero,
		Currency:        account.BaseCurrency,
		DisplayCurrency: display,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	var opening *transaction.Transaction

	err := u.within(ctx, func(r uow.Repos) error {
		if _, err := r.Accounts.GetByUserID(ctx, userID); err == nil {
			return account.ErrAlreadyExists
		} else if !errors.Is(err, account.ErrNotFound) {
			return err
		}
		number, err := u.freeAccountNumber(ctx, r)
		if err != nil {
			return err
		}
		a.AccountNumber = number

		if in.OpeningBalance.IsPositive() {
			opening = &transaction.Transaction{
				ID:          u.ids.Record(),
				AccountID:   a.ID,
				Type:        transaction.TypeIncome,
				Category:    transaction.CategoryOther,
				Amount:      in.OpeningBalance,
				Description: OpeningDescription,
				Date:        now,
				Status:      transaction.StatusCompleted,
			}
			a.Credit(in.OpeningBalance)
		}
		if err := r.Accounts.Create(ctx, a); err != nil {
			return err
		}
		if opening != nil {
			return r.Transactions.Create(ctx, opening)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.publish(ctx, a, events.KindOpened, "")
	view := &AccountView{Account: a, Transactions: []transaction.Transaction{}, Loans: []loan.Loan{}}
	if opening != nil {
		view.Transactions = append(view.Transactions, *opening)
	}
	return view, nil
}

func (u *Usecase) freeAccountNumber(ctx context.Context, r uow.Repos) (string, error) {
	for i := 0; i < accountNumberAttempts; i++ {
		n := u.ids.AccountNumber()
		_, err := r.Accounts.GetByAccountNumber(ctx, n)
		if errors.Is(err, account.ErrNotFound) {
			return n, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free account number after %d attempts: %w", accountNumberAttempts, errs.ErrConflict)
}

func (u *Usecase) GetAccount(ctx context.Context, userID string) (*AccountView, error) {
	r := u.uow.Reader()
	a, err := r.Accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, u.classify(err)
	}
	txs, err := r.Transactions.ListByAccount(ctx, a.ID)
	if err != nil {
		return nil, u.classify(err)
	}
	loans, err := r.Loans.ListByAccount(ctx, a.ID)
	if err != nil {
		return nil, u.classify(err)
	}
	if loans == nil {
		loans = []loan.Loan{}
	}
	return &AccountView{Account: a, Transactions: transaction.NewestFirst(txs), Loans: loans}, nil
}

// EnsureAccount returns the caller's account, opening it with in when absent.
func (u *Usecase) EnsureAccount(ctx context.Context, userID string, in OpenAccountInput) (*AccountView, error) {
	view, err := u.GetAccount(ctx, userID)
	if !errors.Is(err, account.ErrNotFound) {
		return view, err
	}
	view, err = u.OpenAccount(ctx, userID, in)
	if errors.Is(err, account.ErrAlreadyExists) {
		// opened concurrently
		return u.GetAccount(ctx, userID)
	}
	return view, err
}

// UpdateProfile changes non-ledger fields only.
func (u *Usecase) UpdateProfile(ctx context.Context, userID string, patch account.ProfilePatch) (*account.Account, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, ErrEmptyName
	}
	if patch.DisplayCurrency != nil && !currency.IsSupported(*patch.DisplayCurrency) {
		return nil, ErrUnsupportedCurrency
	}
	var out *account.Account
	err := u.within(ctx, func(r uow.Repos) error {
		a, err := r.Accounts.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		patch.Apply(a)
		a.UpdatedAt = u.now()
		if err := r.Accounts.Save(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.publish(ctx, out, events.KindProfile, "")
	return out, nil
}

// Deposit credits the account and records an income transaction.
func (u *Usecase) Deposit(ctx context.Context, userID string, in MutationInput) (*transaction.Transaction, error) {
	return u.book(ctx, userID, transaction.TypeIncome, in)
}

// Withdraw debits the account; the balance may not go below zero.
func (u *Usecase) Withdraw(ctx context.Context, userID string, in MutationInput) (*transaction.Transaction, error) {
	return u.book(ctx, userID, transaction.TypeExpense, in)
}

func (u *Usecase) PayBill(ctx context.Context, userID string, in MutationInput) (*transaction.Transaction, error) {
	in.Category = string(transaction.CategoryBillPay)
	return u.Withdraw(ctx, userID, in)
}

func (u *Usecase) BuyAirtime(ctx context.Context, userID string, in MutationInput) (*transaction.Transaction, error) {
	in.Category = string(transaction.CategoryAirtime)
	return u.Withdraw(ctx, userID, in)
}

func (u *Usecase) book(ctx context.Context, userID string, typ transaction.Type, in MutationInput) (*transaction.Transaction, error) {
	if err := validAmount(in.Amount); err != nil {
		return nil, err
	}
	cat, err := transaction.ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	if err := u.latency.Wait(ctx); err != nil {
		return nil, err
	}

	txID := u.recordID(userID, string(typ), in.RequestID)
	var (
		out      *transaction.Transaction
		acct     *account.Account
		replayed bool
	)
	err = u.within(ctx, func(r uow.Repos) error {
		a, err := r.Accounts.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if in.RequestID != "" {
			prev, err := r.Transactions.GetByID(ctx, a.ID, txID)
			if err == nil {
				out, replayed = prev, true
				return nil
			}
			if !errors.Is(err, transaction.ErrNotFound) {
				return err
			}
		}

		if typ == transaction.TypeIncome {
			a.Credit(in.Amount)
		} else if err := a.Debit(in.Amount); err != nil {
			return err
		}
		t := &transaction.Transaction{
			ID:          txID,
			AccountID:   a.ID,
			Type:        typ,
			Category:    cat,
			Amount:      in.Amount,
			Description: strings.TrimSpace(in.Description),
			Recipient:   strings.TrimSpace(in.Recipient),
			Date:        u.now(),
			Status:      transaction.StatusCompleted,
		}
		if err := r.Transactions.Create(ctx, t); err != nil {
			return err
		}
		if err := r.Accounts.Save(ctx, a); err != nil {
			return err
		}
		out, acct = t, a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		kind := events.KindDeposit
		if typ == transaction.TypeExpense {
			kind = events.KindWithdrawal
		}
		u.publish(ctx, acct, kind, out.ID)
	}
	return out, nil
}

// Transfer moves funds to another account in a single unit of work. Rows are
// locked in account-number order so opposite transfers cannot deadlock.
func (u *Usecase) Transfer(ctx context.Context, userID string, in TransferInput) (*TransferResult, error) {
	to := strings.TrimSpace(in.RecipientAccountNumber)
	if err := account.ValidateAccountNumber(to); err != nil {
		return nil, err
	}
	if err := validAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := u.latency.Wait(ctx); err != nil {
		return nil, err
	}

	transferID := u.recordID(userID, "transfer", in.RequestID)
	var (
		res               *TransferResult
		sender, recipient *account.Account
	)
	err := u.within(ctx, func(r uow.Repos) error {
		self, err := r.Accounts.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if self.AccountNumber == to {
			return account.ErrSameAccount
		}

		first, second := self.AccountNumber, to
		if second < first {
			first, second = second, first
		}
		locked := map[string]*account.Account{}
		for _, n := range []string{first, second} {
			a, err := r.Accounts.GetByAccountNumberForUpdate(ctx, n)
			if errors.Is(err, account.ErrNotFound) && n == to {
				return account.ErrRecipientNotFound
			}
			if err != nil {
				return err
			}
			locked[n] = a
		}
		sender, recipient = locked[self.AccountNumber], locked[to]

		outID, inID := transferID+"_out", transferID+"_in"
		if in.RequestID != "" {
			prevOut, err := r.Transactions.GetByID(ctx, sender.ID, outID)
			if err == nil {
				prevIn, err := r.Transactions.GetByID(ctx, recipient.ID, inID)
				if err != nil {
					return err
				}
				res = &TransferResult{
					TransferID:           transferID,
					SenderTransaction:    prevOut,
					RecipientTransaction: prevIn,
					SenderBalance:        sender.Balance,
					RecipientBalance:     recipient.Balance,
					Replayed:             true,
				}
				return nil
			}
			if !errors.Is(err, transaction.ErrNotFound) {
				return err
			}
		}

		if err := sender.Debit(in.Amount); err != nil {
			return err
		}
		recipient.Credit(in.Amount)

		now := u.now()
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			desc = "Transfer to " + recipient.AccountNumber
		}
		outTx := &transaction.Transaction{
			ID:          outID,
			AccountID:   sender.ID,
			Type:        transaction.TypeExpense,
			Category:    transaction.CategoryTransfer,
			Amount:      in.Amount,
			Description: desc,
			Recipient:   recipient.AccountNumber,
			Date:        now,
			Status:      transaction.StatusCompleted,
		}
		inTx := &transaction.Transaction{
			ID:          inID,
			AccountID:   recipient.ID,
			Type:        transaction.TypeIncome,
			Category:    transaction.CategoryTransfer,
			Amount:      in.Amount,
			Description: "Transfer from " + sender.AccountNumber,
			Recipient:   sender.AccountNumber,
			Date:        now,
			Status:      transaction.StatusCompleted,
		}
		for _, t := range []*transaction.Transaction{outTx, inTx} {
			if err := r.Transactions.Create(ctx, t); err != nil {
				return err
			}
		}
		for _, a := range []*account.Account{sender, recipient} {
			if err := r.Accounts.Save(ctx, a); err != nil {
				return err
			}
		}
		res = &TransferResult{
			TransferID:           transferID,
			SenderTransaction:    outTx,
			RecipientTransaction: inTx,
			SenderBalance:        sender.Balance,
			RecipientBalance:     recipient.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Replayed {
		u.publish(ctx, sender, events.KindTransferOut, res.SenderTransaction.ID)
		u.publish(ctx, recipient, events.KindTransferIn, res.RecipientTransaction.ID)
	}
	return res, nil
}

// QuoteLoan previews the repayment schedule without touching any account.
func (u *Usecase) QuoteLoan(amount decimal.Decimal, termMonths int) (loan.Quote, error) {
	if err := checkPrecision(amount); err != nil {
		return loan.Quote{}, err
	}
	if err := u.policy.Check(amount, termMonths, 0); err != nil {
		return loan.Quote{}, err
	}
	return loan.Amortize(amount, u.policy.AnnualRate, termMonths)
}

// RequestLoan creates an active loan and disburses its principal.
func (u *Usecase) RequestLoan(ctx context.Context, userID string, in LoanInput) (*loan.Loan, error) {
	if err := checkPrecision(in.Amount); err != nil {
		return nil, err
	}
	if err := u.policy.Check(in.Amount, in.TermMonths, 0); err != nil {
		return nil, err
	}
	quote, err := loan.Amortize(in.Amount, u.policy.AnnualRate, in.TermMonths)
	if err != nil {
		return nil, err
	}
	if err := u.latency.Wait(ctx); err != nil {
		return nil, err
	}

	loanID := u.recordID(userID, "loan", in.RequestID)
	var (
		out      *loan.Loan
		acct     *account.Account
		replayed bool
	)
	err = u.within(ctx, func(r uow.Repos) error {
		a, err := r.Accounts.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if in.RequestID != "" {
			prev, err := r.Loans.GetByID(ctx, a.ID, loanID)
			if err == nil {
				out, replayed = prev, true
				return nil
			}
			if !errors.Is(err, loan.ErrNotFound) {
				return err
			}
		}

		existing, err := r.Loans.ListByAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		if err := u.policy.Check(in.Amount, in.TermMonths, loan.CountActive(existing)); err != nil {
			return err
		}

		now := u.now()
		l := &loan.Loan{
			ID:               loanID,
			AccountID:        a.ID,
			Amount:           in.Amount,
			InterestRate:     u.policy.AnnualRate,
			TermMonths:       in.TermMonths,
			MonthlyPayment:   quote.MonthlyPayment,
			RemainingBalance: in.Amount,
			Status:           loan.StatusActive,
			CreatedAt:        now,
			DueDate:          u.policy.DueDate(now, in.TermMonths),
		}
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		a.Credit(in.Amount)
		if err := r.Transactions.Create(ctx, &transaction.Transaction{
			ID:          loanID + "_disbursement",
			AccountID:   a.ID,
			Type:        transaction.TypeIncome,
			Category:    transaction.CategoryLoan,
			Amount:      in.Amount,
			Description: fmt.Sprintf("Loan disbursement (%d months)", in.TermMonths),
			Date:        now,
			Status:      transaction.StatusCompleted,
		}); err != nil {
			return err
		}
		if err := r.Accounts.Save(ctx, a); err != nil {
			return err
		}
		out, acct = l, a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		u.publish(ctx, acct, events.KindLoan, out.ID+"_disbursement")
	}
	return out, nil
}

func (u *Usecase) ListLoans(ctx context.Context, userID string) ([]loan.Loan, error) {
	r := u.uow.Reader()
	a, err := r.Accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, u.classify(err)
	}
	ls, err := r.Loans.ListByAccount(ctx, a.ID)
	if err != nil {
		return nil, u.classify(err)
	}
	return ls, nil
}

// ListTransactions returns the newest limit transactions; limit <= 0 means all.
func (u *Usecase) ListTransactions(ctx context.Context, userID string, limit int) ([]transaction.Transaction, error) {
	txs, err := u.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return transaction.Recent(txs, limit), nil
}

func (u *Usecase) SearchTransactions(ctx context.Context, userID string, f transaction.Filter) ([]transaction.Transaction, error) {
	txs, err := u.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.Now.IsZero() {
		f.Now = u.now()
	}
	return transaction.Apply(txs, f), nil
}

func (u *Usecase) Summarize(ctx context.Context, userID string, w transaction.Window) (transaction.Summary, error) {
	if err := w.Validate(); err != nil {
		return transaction.Summary{}, err
	}
	txs, err := u.transactions(ctx, userID)
	if err != nil {
		return transaction.Summary{}, err
	}
	return transaction.Summarize(txs, w), nil
}

// Subscribe streams change events for the caller's account until ctx ends.
func (u *Usecase) Subscribe(ctx context.Context, userID string) (<-chan events.AccountChanged, error) {
	if u.notifier == nil {
		return nil, ErrNotificationsOff
	}
	if _, err := u.uow.Reader().Accounts.GetByUserID(ctx, userID); err != nil {
		return nil, u.classify(err)
	}
	return u.notifier.Subscribe(ctx, userID)
}

// Now is the engine's clock.
func (u *Usecase) Now() time.Time { return u.now() }

func (u *Usecase) transactions(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	r := u.uow.Reader()
	a, err := r.Accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, u.classify(err)
	}
	txs, err := r.Transactions.ListByAccount(ctx, a.ID)
	if err != nil {
		return nil, u.classify(err)
	}
	return txs, nil
}

// within runs fn in a unit of work. Store failures come back as ErrPersistence:
// nothing was committed and the call may be retried.
func (u *Usecase) within(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.classify(u.uow.WithinTx(ctx, fn))
}

func (u *Usecase) classify(err error) error {
	if err == nil || errs.Kind(err) != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	u.log.Error("ledger store failure", zap.Error(err))
	return fmt.Errorf("%w: %w", errs.ErrPersistence, err)
}

// recordID is deterministic for a given request key so retries land on the
// record the first attempt wrote.
func (u *Usecase) recordID(userID, scope, requestID string) string {
	if requestID == "" {
		return u.ids.Record()
	}
	return id.FromKey(userID+"/"+scope, requestID)
}

func (u *Usecase) publish(ctx context.Context, a *account.Account, kind events.Kind, txID string) {
	if u.notifier == nil || a == nil {
		return
	}
	ev := events.AccountChanged{
		UserID:        a.UserID,
		AccountID:     a.ID,
		AccountNumber: a.AccountNumber,
		Kind:          kind,
		Balance:       a.Balance,
		Version:       a.Version,
		TransactionID: txID,
		At:            u.now(),
	}
	if err := u.notifier.Publish(context.WithoutCancel(ctx), ev); err != nil {
		u.log.Warn("publish account change", zap.String("user_id", a.UserID), zap.Error(err))
	}
}

func validAmount(amount decimal.Decimal) error {
	if err := transaction.ValidateAmount(amount); err != nil {
		return err
	}
	return checkPrecision(amount)
}

func checkPrecision(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return ErrAmountPrecision
	}
	return nil
}
