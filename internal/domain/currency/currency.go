// Package currency converts display amounts between currencies. Nothing here
// touches ledger state; balances are always stored in the account's base currency.
package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rates maps a currency code to its value per one unit of Base.
type Rates struct {
	Base   string             `json:"base"`
	Values map[string]float64 `json:"rates"`
}

// Source fetches a rate table for base.
type Source interface {
	Fetch(ctx context.Context, base string) (Rates, error)
}

// Info describes a supported currency.
type Info struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

var Supported = []Info{
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
	{Code: "GBP", Name: "British Pound", Symbol: "£"},
	{Code: "NGN", Name: "Nigerian Naira", Symbol: "₦"},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$"},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF"},
	{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥"},
	{Code: "INR", Name: "Indian Rupee", Symbol: "₹"},
}

// Fallback is served whenever no rate source answers. Values are per USD.
func Fallback() Rates {
	return Rates{Base: "USD", Values: map[string]float64{
		"USD": 1,
		"EUR": 0.85,
		"GBP": 0.73,
		"NGN": 1650,
		"CAD": 1.35,
		"AUD": 1.45,
		"JPY": 150,
		"CHF": 0.88,
		"CNY": 7.2,
		"INR": 83,
	}}
}

// Normalize upper-cases and trims a currency code.
func Normalize(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// IsSupported reports whether code is in the catalogue.
func IsSupported(code string) bool {
	code = Normalize(code)
	for _, c := range Supported {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Rate returns the value of code per unit of r.Base; unknown codes count as 1.
func (r Rates) Rate(code string) float64 {
	if v, ok := r.Values[Normalize(code)]; ok && v > 0 {
		return v
	}
	return 1
}

// Convert moves amount from one currency to another through the table's pivot,
// rounded to cents. Same currency returns amount unchanged.
func Convert(amount decimal.Decimal, from, to string, r Rates) decimal.Decimal {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return amount
	}
	factor := decimal.NewFromFloat(r.Rate(to)).Div(decimal.NewFromFloat(r.Rate(from)))
	return amount.Mul(factor).Round(2)
}

// Symbol returns the display symbol for code, or the code itself.
func Symbol(code string) string {
	code = Normalize(code)
	for _, c := range Supported {
		if c.Code == code {
			return c.Symbol
		}
	}
	return code
}

// Format renders amount with its currency symbol and thousands separators,
// e.g. "₦1,650,000.00".
func Format(amount decimal.Decimal, code string) string {
	s := amount.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s%s%s%s", sign, Symbol(code), b.String(), frac)
}
