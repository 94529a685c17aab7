package http

import (
	"net/http"
	"strconv"

	"fastpay-ledger/internal/usecase/ledger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LoanHandler struct {
	uc  *ledger.Usecase
	log *zap.Logger
}

func NewLoanHandler(uc *ledger.Usecase, log *zap.Logger) *LoanHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanHandler{uc: uc, log: log}
}

// GET /loans/quote?amount=&term=
func (h *LoanHandler) Quote(c echo.Context) error {
	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil {
		return badRequest(c, "amount must be a decimal number")
	}
	term, err := strconv.Atoi(c.QueryParam("term"))
	if err != nil {
		return badRequest(c, "term must be a whole number of months")
	}
	q, err := h.uc.QuoteLoan(amount, term)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, q)
}

// GET /loans/policy
func (h *LoanHandler) Policy(c echo.Context) error {
	p := h.uc.Policy()
	return c.JSON(http.StatusOK, map[string]any{
		"min_amount":  p.MinAmount,
		"max_amount":  p.MaxAmount,
		"max_active":  p.MaxActive,
		"annual_rate": p.AnnualRate,
	})
}
