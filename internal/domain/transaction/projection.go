package transaction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fastpay-ledger/internal/domain/errs"

	"github.com/shopspring/decimal"
)

// MaxWindowDays bounds the daily series a summary may produce.
const MaxWindowDays = 366

var ErrInvalidWindow = fmt.Errorf("summary window must start before it ends and span at most %d days: %w", MaxWindowDays, errs.ErrValidation)

// NewestFirst returns a copy of txs ordered by date, newest first. Records
// sharing a timestamp come out in reverse insertion order.
func NewestFirst(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i := range txs {
		out[len(txs)-1-i] = txs[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Recent returns at most limit transactions, newest first. limit <= 0 means all.
func Recent(txs []Transaction, limit int) []Transaction {
	out := NewestFirst(txs)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Range is a relative date window ending now.
type Range string

const (
	RangeAll Range = "all"
	Range7d  Range = "7d"
	Range30d Range = "30d"
	Range90d Range = "90d"
)

func ParseRange(s string) (Range, error) {
	switch Range(strings.ToLower(strings.TrimSpace(s))) {
	case "", RangeAll:
		return RangeAll, nil
	case Range7d:
		return Range7d, nil
	case Range30d:
		return Range30d, nil
	case Range90d:
		return Range90d, nil
	}
	return "", fmt.Errorf("range %q is not one of 7d, 30d, 90d, all: %w", s, errs.ErrValidation)
}

// Days is the window length; 0 for RangeAll.
func (r Range) Days() int {
	switch r {
	case Range7d:
		return 7
	case Range30d:
		return 30
	case Range90d:
		return 90
	}
	return 0
}

// Filter is the transaction search predicate set. Zero values match everything.
type Filter struct {
	Query     string
	Type      Type
	Category  Category
	Range     Range
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	// Now anchors Range; required when Range is set.
	Now time.Time
}

func (f Filter) Match(t Transaction) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(t.Description), q) &&
			!strings.Contains(strings.ToLower(t.Recipient), q) &&
			!strings.Contains(t.Amount.String(), q) &&
			!strings.Contains(string(t.EffectiveCategory()), q) {
			return false
		}
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && t.EffectiveCategory() != f.Category {
		return false
	}
	if days := f.Range.Days(); days > 0 {
		start := f.Now.Add(-time.Duration(days) * 24 * time.Hour)
		if t.Date.Before(start) {
			return false
		}
	}
	if f.MinAmount != nil && t.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && t.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}

// Apply filters txs and returns the matches newest first.
func Apply(txs []Transaction, f Filter) []Transaction {
	matched := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Match(t) {
			matched = append(matched, t)
		}
	}
	return NewestFirst(matched)
}

type CategoryTotals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Count   int             `json:"count"`
}

type DailyPoint struct {
	Date    string          `json:"date"` // YYYY-MM-DD in the window's location
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type Summary struct {
	Since       time.Time                   `json:"since"`
	Until       time.Time                   `json:"until"`
	Income      decimal.Decimal             `json:"income"`
	Expense     decimal.Decimal             `json:"expense"`
	Net         decimal.Decimal             `json:"net"`
	Count       int                         `json:"count"`
	ByCategory  map[Category]CategoryTotals `json:"by_category"`
	Daily       []DailyPoint                `json:"daily"`
	TopCategory Category                    `json:"top_category,omitempty"`
}

// Window selects transactions dated at or after Since. The daily series covers
// every calendar day from Since to Until in Location.
type Window struct {
	Since    time.Time
	Until    time.Time
	Location *time.Location
}

// DaysWindow covers the last n calendar days including today, starting at
// local midnight.
func DaysWindow(n int, now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()-(n-1), 0, 0, 0, 0, loc)
	return Window{Since: start, Until: now, Location: loc}
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w Window) days() []string {
	loc := w.loc()
	s, u := w.Since.In(loc), w.Until.In(loc)
	first := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	last := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, loc)
	var out []string
	for d := 0; ; d++ {
		day := time.Date(first.Year(), first.Month(), first.Day()+d, 0, 0, 0, 0, loc)
		if day.After(last) {
			break
		}
		out = append(out, day.Format(time.DateOnly))
	}
	return out
}

func (w Window) Validate() error {
	if w.Since.IsZero() || w.Until.Before(w.Since) {
		return ErrInvalidWindow
	}
	if w.Until.Sub(w.Since) > time.Duration(MaxWindowDays)*24*time.Hour {
		return ErrInvalidWindow
	}
	return nil
}

// Summarize aggregates txs over w. It does not modify txs.
func Summarize(txs []Transaction, w Window) Summary {
	s := Summary{
		Since:      w.Since,
		Until:      w.Until,
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		ByCategory: make(map[Category]CategoryTotals),
	}

	days := w.days()
	idx := make(map[string]int, len(days))
	s.Daily = make([]DailyPoint, len(days))
	for i, d := range days {
		idx[d] = i
		s.Daily[i] = DailyPoint{Date: d, Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero}
	}

	loc := w.loc()
	for _, t := range txs {
		if t.Date.Before(w.Since) {
			continue
		}
		s.Count++
		cat := t.EffectiveCategory()
		ct, ok := s.ByCategory[cat]
		if !ok {
			ct = CategoryTotals{Income: decimal.Zero, Expense: decimal.Zero}
		}
		ct.Count++

		i, inSeries := idx[t.Date.In(loc).Format(time.DateOnly)]
		switch t.Type {
		case TypeIncome:
			s.Income = s.Income.Add(t.Amount)
			ct.Income = ct.Income.Add(t.Amount)
			if inSeries {
				s.Daily[i].Income = s.Daily[i].Income.Add(t.Amount)
			}
		case TypeExpense:
			s.Expense = s.Expense.Add(t.Amount)
			ct.Expense = ct.Expense.Add(t.Amount)
			if inSeries {
				s.Daily[i].Expense = s.Daily[i].Expense.Add(t.Amount)
			}
		}
		s.ByCategory[cat] = ct
	}

	s.Net = s.Income.Sub(s.Expense)
	for i := range s.Daily {
		s.Daily[i].Net = s.Daily[i].Income.Sub(s.Daily[i].Expense)
	}

	top := 0
	for _, c := range Categories {
		if ct, ok := s.ByCategory[c]; ok && ct.Count > top {
			top, s.TopCategory = ct.Count, c
		}
	}
	return s
}
