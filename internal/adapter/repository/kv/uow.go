package kv

import (
	"context"
	"encoding/json"
	"sync"

	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/uow"

	"go.uber.org/zap"
)

// session gives repositories access to a snapshot. Inside a unit of work both
// calls see the same in-flight copy.
type session interface {
	read(ctx context.Context, fn func(s *Snapshot) error) error
	write(ctx context.Context, fn func(s *Snapshot) error) error
}

// UoW keeps the ledger as one document in a Store. Writers are serialized;
// each unit of work edits a decoded copy and stores it back with a single Set
// only when fn succeeds.
type UoW struct {
	mu     sync.Mutex
	store  Store
	key    string
	userID string
	policy loan.Policy
	log    *zap.Logger
}

func NewUoW(store Store, key, guestUserID string, policy loan.Policy, log *zap.Logger) *UoW {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UoW{store: store, key: key, userID: guestUserID, policy: policy, log: log}
}

func (u *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.write(ctx, func(s *Snapshot) error {
		return fn(reposFor(txSession{snap: s}))
	})
}

func (u *UoW) Reader() uow.Repos { return reposFor(u) }

// Upgrade rewrites a legacy document in the current layout. It is a no-op
// when the key is empty or already current.
func (u *UoW) Upgrade(ctx context.Context) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	raw, ok, err := u.store.Get(ctx, u.key)
	if err != nil || !ok {
		return false, err
	}
	snap, migrated, err := Migrate(raw, u.userID, u.policy)
	if err != nil || !migrated {
		return false, err
	}
	if err := u.save(ctx, snap); err != nil {
		return false, err
	}
	u.log.Info("guest ledger upgraded", zap.String("key", u.key), zap.Int("schema_version", SchemaVersion))
	return true, nil
}

// Reset drops the stored ledger.
func (u *UoW) Reset(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.store.Remove(ctx, u.key)
}

func (u *UoW) read(ctx context.Context, fn func(s *Snapshot) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	snap, err := u.load(ctx)
	if err != nil {
		return err
	}
	return fn(snap)
}

func (u *UoW) write(ctx context.Context, fn func(s *Snapshot) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	snap, err := u.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	return u.save(ctx, snap)
}

func (u *UoW) load(ctx context.Context) (*Snapshot, error) {
	raw, ok, err := u.store.Get(ctx, u.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptySnapshot(), nil
	}
	snap, _, err := Migrate(raw, u.userID, u.policy)
	return snap, err
}

func (u *UoW) save(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return u.store.Set(ctx, u.key, raw)
}

type txSession struct{ snap *Snapshot }

func (t txSession) read(_ context.Context, fn func(s *Snapshot) error) error  { return fn(t.snap) }
func (t txSession) write(_ context.Context, fn func(s *Snapshot) error) error { return fn(t.snap) }

func reposFor(s session) uow.Repos {
	return uow.Repos{
		Accounts:     &AccountRepository{s: s},
		Transactions: &TransactionRepository{s: s},
		Loans:        &LoanRepository{s: s},
	}
}

var _ uow.UnitOfWork = (*UoW)(nil)
