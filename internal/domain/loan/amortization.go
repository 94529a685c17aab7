package loan

import (
	"math"

	"github.com/shopspring/decimal"
)

// Quote is the fixed-payment schedule of a loan.
type Quote struct {
	Principal      decimal.Decimal `json:"principal"`
	AnnualRate     decimal.Decimal `json:"annual_rate"`
	TermMonths     int             `json:"term_months"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayment   decimal.Decimal `json:"total_payment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
}

// Amortize computes the fixed monthly payment
//
//	P * i * (1+i)^n / ((1+i)^n - 1),  i = annualRate/12
//
// rounded to cents. A zero rate degenerates to P/n. Once (1+i)^n no longer
// fits in a float64 the payment is its limit P*i.
func Amortize(principal, annualRate decimal.Decimal, termMonths int) (Quote, error) {
	if termMonths <= 0 {
		return Quote{}, ErrInvalidTerm
	}
	n := decimal.NewFromInt(int64(termMonths))

	var monthly decimal.Decimal
	if annualRate.IsZero() {
		monthly = principal.Div(n).Round(2)
	} else {
		p := principal.InexactFloat64()
		i := annualRate.InexactFloat64() / 12
		f := math.Pow(1+i, float64(termMonths))
		m := p * i
		if !math.IsInf(f, 1) {
			m = m * f / (f - 1)
		}
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return Quote{}, ErrInvalidTerm
		}
		monthly = decimal.NewFromFloat(m).Round(2)
	}

	total := monthly.Mul(n)
	return Quote{
		Principal:      principal,
		AnnualRate:     annualRate,
		TermMonths:     termMonths,
		MonthlyPayment: monthly,
		TotalPayment:   total,
		TotalInterest:  total.Sub(principal),
	}, nil
}
