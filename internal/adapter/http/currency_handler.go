package http

import (
	"net/http"

	"fastpay-ledger/internal/domain/currency"
	currencyuc "fastpay-ledger/internal/usecase/currency"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CurrencyHandler struct {
	uc  *currencyuc.Usecase
	log *zap.Logger
}

func NewCurrencyHandler(uc *currencyuc.Usecase, log *zap.Logger) *CurrencyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CurrencyHandler{uc: uc, log: log}
}

// GET /currency/rates?base=USD. Always answers; origin tells where the table came from.
func (h *CurrencyHandler) Rates(c echo.Context) error {
	base := currency.Normalize(c.QueryParam("base"))
	if base == "" {
		base = "USD"
	}
	if !currency.IsSupported(base) {
		return badRequest(c, "base must be a supported currency code")
	}
	res := h.uc.Rates(c.Request().Context(), base)
	return c.JSON(http.StatusOK, map[string]any{
		"base":      res.Rates.Base,
		"rates":     res.Rates.Values,
		"origin":    res.Origin,
		"supported": currency.Supported,
	})
}

// GET /currency/convert?amount=&from=&to=
func (h *CurrencyHandler) Convert(c echo.Context) error {
	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil {
		return badRequest(c, "amount must be a decimal number")
	}
	from, to := currency.Normalize(c.QueryParam("from")), currency.Normalize(c.QueryParam("to"))
	for _, code := range []string{from, to} {
		if code != "" && !currency.IsSupported(code) {
			return badRequest(c, "unsupported currency "+code)
		}
	}
	out, err := h.uc.Convert(c.Request().Context(), amount, from, to)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}
