package transaction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

func tx(id string, typ Type, cat Category, amount int64, at time.Time) Transaction {
	return Transaction{
		ID: id, Type: typ, Category: cat, Amount: decimal.NewFromInt(amount),
		Description: "txn " + id, Date: at, Status: StatusCompleted,
	}
}

func ids(txs []Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func TestNewestFirst_OrdersByDateThenReverseInsertion(t *testing.T) {
	log := []Transaction{
		tx("a", TypeIncome, CategoryOther, 10, base.Add(-2*time.Hour)),
		tx("b", TypeIncome, CategoryOther, 10, base),
		tx("c", TypeExpense, CategoryOther, 5, base),
		tx("d", TypeExpense, CategoryOther, 5, base.Add(-time.Hour)),
	}

	assert.Equal(t, []string{"c", "b", "d", "a"}, ids(NewestFirst(log)))
	// input untouched
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(log))
}

func TestRecent_Limit(t *testing.T) {
	log := []Transaction{
		tx("a", TypeIncome, CategoryOther, 1, base.Add(-3*time.Hour)),
		tx("b", TypeIncome, CategoryOther, 1, base.Add(-2*time.Hour)),
		tx("c", TypeIncome, CategoryOther, 1, base.Add(-1*time.Hour)),
	}
	assert.Equal(t, []string{"c", "b"}, ids(Recent(log, 2)))
	assert.Equal(t, []string{"c", "b", "a"}, ids(Recent(log, 0)))
	assert.Equal(t, []string{"c", "b", "a"}, ids(Recent(log, 10)))
}

func TestFilter_Predicates(t *testing.T) {
	log := []Transaction{
		{ID: "salary", Type: TypeIncome, Category: CategoryOther, Amount: decimal.NewFromInt(2500), Description: "Monthly Salary", Date: base.Add(-40 * 24 * time.Hour)},
		{ID: "power", Type: TypeExpense, Category: CategoryBillPay, Amount: decimal.RequireFromString("120.50"), Description: "Electricity", Date: base.Add(-3 * 24 * time.Hour)},
		{ID: "mtn", Type: TypeExpense, Category: CategoryAirtime, Amount: decimal.NewFromInt(10), Description: "Airtime top-up", Recipient: "08031234567", Date: base.Add(-1 * time.Hour)},
		{ID: "xfer", Type: TypeExpense, Category: CategoryTransfer, Amount: decimal.NewFromInt(300), Description: "Rent", Recipient: "2647634099", Date: base.Add(-10 * 24 * time.Hour)},
		{ID: "legacy", Type: TypeIncome, Amount: decimal.NewFromInt(1000), Description: "Initial demo balance", Date: base.Add(-100 * 24 * time.Hour)},
	}

	t.Run("query matches description case-insensitively", func(t *testing.T) {
		assert.Equal(t, []string{"salary"}, ids(Apply(log, Filter{Query: "SALARY"})))
	})
	t.Run("query matches recipient", func(t *testing.T) {
		assert.Equal(t, []string{"xfer"}, ids(Apply(log, Filter{Query: "2647634"})))
	})
	t.Run("query matches amount string", func(t *testing.T) {
		assert.Equal(t, []string{"power"}, ids(Apply(log, Filter{Query: "120.5"})))
	})
	t.Run("query matches category", func(t *testing.T) {
		assert.Equal(t, []string{"power"}, ids(Apply(log, Filter{Query: "bill"})))
	})
	t.Run("uncategorized counts as other", func(t *testing.T) {
		assert.Equal(t, []string{"salary", "legacy"}, ids(Apply(log, Filter{Category: CategoryOther})))
	})
	t.Run("type", func(t *testing.T) {
		assert.Equal(t, []string{"mtn", "power", "xfer"}, ids(Apply(log, Filter{Type: TypeExpense})))
	})
	t.Run("relative range", func(t *testing.T) {
		assert.Equal(t, []string{"mtn", "power"}, ids(Apply(log, Filter{Range: Range7d, Now: base})))
		assert.Equal(t, []string{"mtn", "power", "xfer"}, ids(Apply(log, Filter{Range: Range30d, Now: base})))
		assert.Len(t, Apply(log, Filter{Range: RangeAll, Now: base}), 5)
	})
	t.Run("amount range is inclusive", func(t *testing.T) {
		min, max := decimal.NewFromInt(10), decimal.NewFromInt(300)
		assert.Equal(t, []string{"mtn", "power", "xfer"}, ids(Apply(log, Filter{MinAmount: &min, MaxAmount: &max})))
		assert.Equal(t, []string{"mtn", "power", "xfer", "salary", "legacy"}, ids(Apply(log, Filter{MinAmount: &min})))
	})
	t.Run("combined", func(t *testing.T) {
		min := decimal.NewFromInt(100)
		assert.Equal(t, []string{"power"}, ids(Apply(log, Filter{Type: TypeExpense, Range: Range7d, Now: base, MinAmount: &min})))
	})
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("30D")
	require.NoError(t, err)
	assert.Equal(t, 30, r.Days())

	r, err = ParseRange("")
	require.NoError(t, err)
	assert.Equal(t, RangeAll, r)

	_, err = ParseRange("1y")
	assert.Error(t, err)
}

func TestSummarize_BoundaryInclusive(t *testing.T) {
	since := base.Add(-24 * time.Hour)
	log := []Transaction{
		tx("at", TypeIncome, CategoryOther, 100, since),
		tx("before", TypeIncome, CategoryOther, 999, since.Add(-time.Millisecond)),
	}
	s := Summarize(log, Window{Since: since, Until: base})

	assert.Equal(t, 1, s.Count)
	assert.True(t, s.Income.Equal(decimal.NewFromInt(100)), s.Income.String())
}

func TestSummarize_TotalsCategoriesAndSeries(t *testing.T) {
	now := time.Date(2025, 9, 10, 15, 0, 0, 0, time.UTC)
	w := DaysWindow(7, now, time.UTC)
	require.Equal(t, time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC), w.Since)

	log := []Transaction{
		tx("old", TypeIncome, CategoryOther, 5000, w.Since.Add(-time.Second)),
		tx("loan", TypeIncome, CategoryLoan, 1000, time.Date(2025, 9, 5, 9, 0, 0, 0, time.UTC)),
		tx("bill", TypeExpense, CategoryBillPay, 200, time.Date(2025, 9, 5, 23, 59, 0, 0, time.UTC)),
		tx("air", TypeExpense, CategoryAirtime, 20, time.Date(2025, 9, 6, 0, 1, 0, 0, time.UTC)),
		tx("air2", TypeExpense, CategoryAirtime, 30, time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)),
		tx("legacy", TypeTransfer, CategoryTransfer, 70, time.Date(2025, 9, 8, 8, 0, 0, 0, time.UTC)),
	}
	s := Summarize(log, w)

	assert.Equal(t, 5, s.Count)
	assert.True(t, s.Income.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.Expense.Equal(decimal.NewFromInt(250)))
	assert.True(t, s.Net.Equal(decimal.NewFromInt(750)))

	assert.Equal(t, 2, s.ByCategory[CategoryAirtime].Count)
	assert.True(t, s.ByCategory[CategoryAirtime].Expense.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.ByCategory[CategoryLoan].Income.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 1, s.ByCategory[CategoryTransfer].Count)
	assert.Equal(t, CategoryAirtime, s.TopCategory)

	require.Len(t, s.Daily, 7)
	assert.Equal(t, "2025-09-04", s.Daily[0].Date)
	assert.Equal(t, "2025-09-10", s.Daily[6].Date)
	assert.True(t, s.Daily[0].Net.IsZero())
	// 23:59 and 00:01 are under 24h apart but fall on different calendar days
	assert.True(t, s.Daily[1].Income.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.Daily[1].Expense.Equal(decimal.NewFromInt(200)))
	assert.True(t, s.Daily[2].Expense.Equal(decimal.NewFromInt(20)))
	assert.True(t, s.Daily[6].Net.Equal(decimal.NewFromInt(-30)))
}

func TestSummarize_BucketsInWindowLocation(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, lagos)
	w := DaysWindow(2, now, lagos)
	// 23:30 UTC on the 9th is 00:30 on the 10th in WAT
	log := []Transaction{tx("late", TypeIncome, CategoryOther, 10, time.Date(2025, 9, 9, 23, 30, 0, 0, time.UTC))}

	s := Summarize(log, w)
	require.Len(t, s.Daily, 2)
	assert.True(t, s.Daily[0].Income.IsZero())
	assert.True(t, s.Daily[1].Income.Equal(decimal.NewFromInt(10)))
}

func TestSummarize_PureOverSameLog(t *testing.T) {
	log := []Transaction{
		tx("a", TypeIncome, CategoryOther, 10, base.Add(-time.Hour)),
		tx("b", TypeExpense, CategoryBillPay, 4, base),
	}
	w := DaysWindow(30, base, time.UTC)
	assert.Equal(t, Summarize(log, w), Summarize(log, w))
	assert.Equal(t, Recent(log, 1), Recent(log, 1))
}

func TestWindow_Validate(t *testing.T) {
	assert.NoError(t, DaysWindow(90, base, nil).Validate())
	assert.Error(t, Window{Since: base, Until: base.Add(-time.Hour)}.Validate())
	assert.Error(t, Window{Since: base.Add(-400 * 24 * time.Hour), Until: base}.Validate())
	assert.Error(t, Window{Until: base}.Validate())
}

func TestNetAndSigned(t *testing.T) {
	log := []Transaction{
		tx("in", TypeIncome, CategoryOther, 100, base),
		tx("out", TypeExpense, CategoryOther, 30, base),
		tx("legacy", TypeTransfer, CategoryTransfer, 1000, base),
	}
	assert.True(t, Net(log).Equal(decimal.NewFromInt(70)))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryOther, c)

	c, err = ParseCategory("Bill_Pay")
	require.NoError(t, err)
	assert.Equal(t, CategoryBillPay, c)

	_, err = ParseCategory("groceries")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
