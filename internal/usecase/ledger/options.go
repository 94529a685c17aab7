package ledger

import (
	"context"
	"time"

	"fastpay-ledger/internal/domain/events"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/pkg/id"

	"go.uber.org/zap"
)

// Notifier fans committed account changes out to subscribers.
type Notifier interface {
	Publish(ctx context.Context, ev events.AccountChanged) error
	Subscribe(ctx context.Context, userID string) (<-chan events.AccountChanged, error)
}

// Latency is waited on before a mutation starts. Cancelling ctx aborts the
// mutation; once the unit of work has begun the wait no longer applies.
type Latency interface {
	Wait(ctx context.Context) error
}

type NoLatency struct{}

func (NoLatency) Wait(ctx context.Context) error { return ctx.Err() }

// FixedLatency delays every mutation by d.
type FixedLatency time.Duration

func (d FixedLatency) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IDs generates identifiers for new records.
type IDs struct {
	AccountID     func() string
	AccountNumber func() string
	Record        func() string
}

func defaultIDs() IDs {
	return IDs{AccountID: id.NewID32, AccountNumber: id.NewAccountNumber, Record: id.NewTxnID}
}

type Option func(*Usecase)

func WithClock(now func() time.Time) Option { return func(u *Usecase) { u.now = now } }

func WithIDs(ids IDs) Option {
	return func(u *Usecase) {
		if ids.AccountID != nil {
			u.ids.AccountID = ids.AccountID
		}
		if ids.AccountNumber != nil {
			u.ids.AccountNumber = ids.AccountNumber
		}
		if ids.Record != nil {
			u.ids.Record = ids.Record
		}
	}
}

func WithLatency(l Latency) Option { return func(u *Usecase) { u.latency = l } }

func WithNotifier(n Notifier) Option { return func(u *Usecase) { u.notifier = n } }

func WithPolicy(p loan.Policy) Option { return func(u *Usecase) { u.policy = p } }

func WithLogger(l *zap.Logger) Option { return func(u *Usecase) { u.log = l } }
