package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/errs"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"
	"fastpay-ledger/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB creates an in-memory sqlite DB with the ledger schema. One
// connection only: every new sqlite connection would see its own empty DB.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&account.Account{}, &transaction.Transaction{}, &loan.Loan{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func makeAccount(userID string) *account.Account {
	now := time.Now().UTC()
	return &account.Account{
		ID:            id.NewID32(),
		UserID:        userID,
		AccountNumber: id.NewAccountNumber(),
		Name:          "Ada",
		Balance:       decimal.NewFromInt(500),
		Currency:      account.BaseCurrency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestAccount_CreateAndLookup(t *testing.T) {
	db := openTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	a := makeAccount("user-1")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if got.AccountNumber != a.AccountNumber || !got.Balance.Equal(a.Balance) {
		t.Fatalf("unexpected account: %+v", got)
	}

	got, err = repo.GetByAccountNumberForUpdate(ctx, a.AccountNumber)
	if err != nil {
		t.Fatalf("GetByAccountNumberForUpdate: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("want id %s, got %s", a.ID, got.ID)
	}

	if _, err := repo.GetByAccountNumber(ctx, "0000000000"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestAccount_CreateDuplicateUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, makeAccount("dup")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, makeAccount("dup"))
	if !errors.Is(err, account.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestAccount_SaveChecksVersion(t *testing.T) {
	db := openTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	a := makeAccount("user-v")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := repo.GetByUserID(ctx, "user-v")
	second, _ := repo.GetByUserID(ctx, "user-v")

	first.Credit(decimal.NewFromInt(25))
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("want version 1, got %d", first.Version)
	}

	second.Credit(decimal.NewFromInt(99))
	if err := repo.Save(ctx, second); !errors.Is(err, account.ErrStaleVersion) {
		t.Fatalf("want ErrStaleVersion, got %v", err)
	}

	got, _ := repo.GetByUserID(ctx, "user-v")
	if !got.Balance.Equal(decimal.NewFromInt(525)) {
		t.Fatalf("want balance 525, got %s", got.Balance)
	}
}

func TestTransaction_CreateListAndDuplicate(t *testing.T) {
	db := openTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, amt := range []int64{10, 20, 30} {
		tx := &transaction.Transaction{
			ID:        id.NewTxnID(),
			AccountID: "acc-1",
			Type:      transaction.TypeIncome,
			Category:  transaction.CategoryOther,
			Amount:    decimal.NewFromInt(amt),
			Date:      base.Add(time.Duration(i) * time.Hour),
			Status:    transaction.StatusCompleted,
		}
		if err := repo.Create(ctx, tx); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if tx.Seq == 0 {
			t.Fatalf("Create did not set seq")
		}
	}

	list, err := repo.ListByAccount(ctx, "acc-1")
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(list) != 3 || !list[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected list: %+v", list)
	}

	got, err := repo.GetByID(ctx, "acc-1", list[1].ID)
	if err != nil || got.Seq != list[1].Seq {
		t.Fatalf("GetByID: %v %+v", err, got)
	}
	if _, err := repo.GetByID(ctx, "acc-2", list[1].ID); !errors.Is(err, transaction.ErrNotFound) {
		t.Fatalf("want ErrNotFound across accounts, got %v", err)
	}

	dup := list[0]
	dup.Seq = 0
	if err := repo.Create(ctx, &dup); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict on duplicate id, got %v", err)
	}
}

func TestLoan_CreateAndList(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	l := &loan.Loan{
		ID:               id.NewTxnID(),
		AccountID:        "acc-1",
		Amount:           decimal.NewFromInt(1000),
		InterestRate:     decimal.RequireFromString("0.15"),
		TermMonths:       12,
		MonthlyPayment:   decimal.RequireFromString("90.26"),
		RemainingBalance: decimal.NewFromInt(1000),
		Status:           loan.StatusActive,
		CreatedAt:        now,
		DueDate:          now.AddDate(0, 0, 360),
	}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := repo.ListByAccount(ctx, "acc-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByAccount: %v %d", err, len(list))
	}
	if !list[0].MonthlyPayment.Equal(decimal.RequireFromString("90.26")) {
		t.Fatalf("monthly payment: %s", list[0].MonthlyPayment)
	}
	if _, err := repo.GetByID(ctx, "acc-1", "missing"); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
