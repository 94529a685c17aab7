package currency

import (
	"context"
	"fmt"
	"time"

	"fastpay-ledger/internal/domain/currency"
	"fastpay-ledger/internal/domain/errs"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultTTL is how long a fetched table is served from cache.
const DefaultTTL = time.Hour

const (
	OriginCache    = "cache"
	OriginFallback = "fallback"
)

var (
	ErrMissingCode     = fmt.Errorf("currency code is required: %w", errs.ErrValidation)
	ErrUnsupportedCode = fmt.Errorf("unsupported currency code: %w", errs.ErrValidation)
)

type Cache interface {
	Get(ctx context.Context, base string) (currency.Rates, bool, error)
	Set(ctx context.Context, r currency.Rates, ttl time.Duration) error
}

// Named sources show up by name in logs and responses.
type Named interface{ Name() string }

type RatesResult struct {
	currency.Rates
	Origin string `json:"origin"`
}

type Conversion struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Converted decimal.Decimal `json:"converted"`
	Formatted string          `json:"formatted"`
}

// Usecase serves rate tables. It never fails: when the cache and every source
// miss, the static fallback table is returned.
type Usecase struct {
	cache    Cache
	sources  []currency.Source
	fallback currency.Rates
	ttl      time.Duration
	log      *zap.Logger
}

type Option func(*Usecase)

func WithFallback(r currency.Rates) Option { return func(u *Usecase) { u.fallback = r } }
func WithTTL(ttl time.Duration) Option     { return func(u *Usecase) { u.ttl = ttl } }
func WithLogger(l *zap.Logger) Option      { return func(u *Usecase) { u.log = l } }

func NewUsecase(cache Cache, sources []currency.Source, opts ...Option) *Usecase {
	u := &Usecase{
		cache:    cache,
		sources:  sources,
		fallback: currency.Fallback(),
		ttl:      DefaultTTL,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Usecase) Rates(ctx context.Context, base string) RatesResult {
	base = currency.Normalize(base)
	if base == "" {
		base = "USD"
	}

	if u.cache != nil {
		r, ok, err := u.cache.Get(ctx, base)
		if err != nil {
			u.log.Warn("rate cache read", zap.String("base", base), zap.Error(err))
		}
		if ok {
			return RatesResult{Rates: r, Origin: OriginCache}
		}
	}

	for _, src := range u.sources {
		r, err := src.Fetch(ctx, base)
		if err != nil {
			u.log.Warn("rate source failed", zap.String("source", nameOf(src)), zap.String("base", base), zap.Error(err))
			continue
		}
		if u.cache != nil {
			if err := u.cache.Set(ctx, r, u.ttl); err != nil {
				u.log.Warn("rate cache write", zap.String("base", base), zap.Error(err))
			}
		}
		return RatesResult{Rates: r, Origin: nameOf(src)}
	}

	u.log.Warn("all rate sources failed, serving fallback table", zap.String("base", base))
	return RatesResult{Rates: rebase(u.fallback, base), Origin: OriginFallback}
}

// Convert converts through the USD table. Both codes must be in the catalogue.
func (u *Usecase) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (Conversion, error) {
	from, to = currency.Normalize(from), currency.Normalize(to)
	if from == "" || to == "" {
		return Conversion{}, ErrMissingCode
	}
	for _, code := range []string{from, to} {
		if !currency.IsSupported(code) {
			return Conversion{}, fmt.Errorf("%w: %s", ErrUnsupportedCode, code)
		}
	}
	out := Conversion{Amount: amount, From: from, To: to}
	if from == to {
		out.Rate, out.Converted = decimal.NewFromInt(1), amount
		out.Formatted = currency.Format(amount, to)
		return out, nil
	}

	r := u.Rates(ctx, "USD").Rates
	out.Converted = currency.Convert(amount, from, to, r)
	out.Rate = decimal.NewFromFloat(r.Rate(to)).Div(decimal.NewFromFloat(r.Rate(from))).Round(4)
	out.Formatted = currency.Format(out.Converted, to)
	return out, nil
}

// rebase re-expresses a table in terms of base. Unknown bases stay as they are.
func rebase(r currency.Rates, base string) currency.Rates {
	if r.Base == base {
		return r
	}
	pivot, ok := r.Values[base]
	if !ok || pivot <= 0 {
		return r
	}
	values := make(map[string]float64, len(r.Values))
	for code, v := range r.Values {
		values[code] = v / pivot
	}
	return currency.Rates{Base: base, Values: values}
}

func nameOf(src currency.Source) string {
	if n, ok := src.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", src)
}
