package http

import (
	"github.com/labstack/echo/v4"
)

// Routes bundles the handlers mounted by Register.
type Routes struct {
	Health   *Handler
	Accounts *AccountHandler
	Loans    *LoanHandler
	Currency *CurrencyHandler
}

// Register mounts every route on e. mutating wraps the account routes (the
// idempotency middleware passes reads straight through).
func Register(e *echo.Echo, r Routes, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", r.Health.Health)

	accounts := e.Group("/accounts", append([]echo.MiddlewareFunc{RequireUser}, mutating...)...)
	accounts.POST("", r.Accounts.Open)
	accounts.GET("/me", r.Accounts.Me)
	accounts.PATCH("/me", r.Accounts.UpdateProfile)
	accounts.POST("/me/deposits", r.Accounts.Deposit)
	accounts.POST("/me/withdrawals", r.Accounts.Withdraw)
	accounts.POST("/me/transfers", r.Accounts.Transfer)
	accounts.POST("/me/loans", r.Accounts.RequestLoan)
	accounts.GET("/me/loans", r.Accounts.ListLoans)
	accounts.GET("/me/transactions", r.Accounts.Transactions)
	accounts.GET("/me/summary", r.Accounts.Summary)
	accounts.GET("/me/events", r.Accounts.Events)

	e.GET("/loans/quote", r.Loans.Quote)
	e.GET("/loans/policy", r.Loans.Policy)

	e.GET("/currency/rates", r.Currency.Rates)
	e.GET("/currency/convert", r.Currency.Convert)
}
