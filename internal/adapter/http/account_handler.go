package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fastpay-ledger/internal/adapter/middleware"
	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/transaction"
	"fastpay-ledger/internal/usecase/ledger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const userIDKey = "ax.user_id"

// heartbeat keeps idle event streams open through proxies.
const heartbeat = 25 * time.Second

// AccountHandler serves the caller's own account. The caller is identified by
// the Ax-User-Id header.
type AccountHandler struct {
	uc       *ledger.Usecase
	defaults ledger.OpenAccountInput
	log      *zap.Logger
}

// NewAccountHandler builds the handler. defaults is used when GET /accounts/me
// finds no account and opens one.
func NewAccountHandler(uc *ledger.Usecase, defaults ledger.OpenAccountInput, log *zap.Logger) *AccountHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountHandler{uc: uc, defaults: defaults, log: log}
}

// RequireUser rejects requests without a usable Ax-User-Id.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid := strings.TrimSpace(c.Request().Header.Get(middleware.HeaderUserID))
		if uid == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing " + middleware.HeaderUserID, Code: "unauthenticated"})
		}
		if !middleware.ValidUserID(uid) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid " + middleware.HeaderUserID, Code: "unauthenticated"})
		}
		c.Set(userIDKey, uid)
		return next(c)
	}
}

func userID(c echo.Context) string {
	if v, ok := c.Get(userIDKey).(string); ok {
		return v
	}
	return strings.TrimSpace(c.Request().Header.Get(middleware.HeaderUserID))
}

type OpenAccountRequest struct {
	Name           string          `json:"name" validate:"required,max=128"`
	Phone          string          `json:"phone" validate:"omitempty,max=32"`
	Currency       string          `json:"currency" validate:"omitempty,ccy"`
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"gte=0,dec2"`
}

type ProfileRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=128"`
	Phone           *string `json:"phone" validate:"omitempty,max=32"`
	DisplayCurrency *string `json:"display_currency" validate:"omitempty,ccy"`
}

type DepositRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	Description string          `json:"description" validate:"max=255"`
	Category    string          `json:"category" validate:"omitempty,oneof=transfer bill_pay airtime loan other"`
}

type WithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	Description string          `json:"description" validate:"max=255"`
	Category    string          `json:"category" validate:"omitempty,oneof=bill_pay airtime other"`
	Recipient   string          `json:"recipient" validate:"max=128"`
}

type TransferRequest struct {
	RecipientAccountNumber string          `json:"recipient_account_number" validate:"required,acctno"`
	Amount                 decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	Description            string          `json:"description" validate:"max=255"`
}

type LoanRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
	TermMonths int             `json:"term_months" validate:"required,gt=0,lte=360"`
}

// bindValid binds the JSON body into req and validates it, writing the 400/422
// response itself. ok is false when a response was written.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, badRequest(c, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return false, invalidBody(c, err)
	}
	return true, nil
}

// POST /accounts
func (h *AccountHandler) Open(c echo.Context) error {
	var req OpenAccountRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	view, err := h.uc.OpenAccount(c.Request().Context(), userID(c), ledger.OpenAccountInput{
		Name:           req.Name,
		Phone:          req.Phone,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// GET /accounts/me
func (h *AccountHandler) Me(c echo.Context) error {
	view, err := h.uc.EnsureAccount(c.Request().Context(), userID(c), h.defaults)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// PATCH /accounts/me
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	var req ProfileRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	a, err := h.uc.UpdateProfile(c.Request().Context(), userID(c), account.ProfilePatch{
		Name:            req.Name,
		Phone:           req.Phone,
		DisplayCurrency: req.DisplayCurrency,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// POST /accounts/me/deposits
func (h *AccountHandler) Deposit(c echo.Context) error {
	var req DepositRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	tx, err := h.uc.Deposit(c.Request().Context(), userID(c), ledger.MutationInput{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		RequestID:   middleware.RequestID(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, tx)
}

// POST /accounts/me/withdrawals. The category picks the operation: bill
// payments and airtime have their own defaults.
func (h *AccountHandler) Withdraw(c echo.Context) error {
	var req WithdrawalRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	in := ledger.MutationInput{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Recipient:   req.Recipient,
		RequestID:   middleware.RequestID(c),
	}
	ctx, uid := c.Request().Context(), userID(c)

	var (
		tx  *transaction.Transaction
		err error
	)
	switch transaction.Category(req.Category) {
	case transaction.CategoryBillPay:
		tx, err = h.uc.PayBill(ctx, uid, in)
	case transaction.CategoryAirtime:
		tx, err = h.uc.BuyAirtime(ctx, uid, in)
	default:
		tx, err = h.uc.Withdraw(ctx, uid, in)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, tx)
}

// POST /accounts/me/transfers
func (h *AccountHandler) Transfer(c echo.Context) error {
	var req TransferRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.uc.Transfer(c.Request().Context(), userID(c), ledger.TransferInput{
		RecipientAccountNumber: req.RecipientAccountNumber,
		Amount:                 req.Amount,
		Description:            req.Description,
		RequestID:              middleware.RequestID(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

// POST /accounts/me/loans
func (h *AccountHandler) RequestLoan(c echo.Context) error {
	var req LoanRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	l, err := h.uc.RequestLoan(c.Request().Context(), userID(c), ledger.LoanInput{
		Amount:     req.Amount,
		TermMonths: req.TermMonths,
		RequestID:  middleware.RequestID(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, l)
}

// GET /accounts/me/loans
func (h *AccountHandler) ListLoans(c echo.Context) error {
	ls, err := h.uc.ListLoans(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loans": ls})
}

// GET /accounts/me/transactions
// Query: limit, q, type, category, range (7d|30d|90d|all), min, max.
func (h *AccountHandler) Transactions(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, "limit must be a non-negative integer")
		}
		limit = n
	}
	f, filtered, err := h.filterFromQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, uid := c.Request().Context(), userID(c)
	var txs []transaction.Transaction
	if filtered {
		txs, err = h.uc.SearchTransactions(ctx, uid, f)
		if err == nil && limit > 0 && limit < len(txs) {
			txs = txs[:limit]
		}
	} else {
		txs, err = h.uc.ListTransactions(ctx, uid, limit)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"transactions": txs, "count": len(txs)})
}

func (h *AccountHandler) filterFromQuery(c echo.Context) (transaction.Filter, bool, error) {
	var f transaction.Filter
	q := c.QueryParams()
	filtered := false
	for _, k := range []string{"q", "type", "category", "range", "min", "max"} {
		if q.Get(k) != "" {
			filtered = true
		}
	}
	if !filtered {
		return f, false, nil
	}

	f.Query = q.Get("q")
	if raw := q.Get("type"); raw != "" {
		t, err := transaction.ParseType(raw)
		if err != nil {
			return f, true, err
		}
		f.Type = t
	}
	if raw := q.Get("category"); raw != "" {
		cat, err := transaction.ParseCategory(raw)
		if err != nil {
			return f, true, err
		}
		f.Category = cat
	}
	r, err := transaction.ParseRange(q.Get("range"))
	if err != nil {
		return f, true, err
	}
	f.Range = r
	f.Now = h.uc.Now()
	for _, p := range []struct {
		key string
		dst **decimal.Decimal
	}{{"min", &f.MinAmount}, {"max", &f.MaxAmount}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, true, fmt.Errorf("%s must be a decimal amount", p.key)
		}
		*p.dst = &d
	}
	return f, true, nil
}

// GET /accounts/me/summary?range=7d|30d|90d&tz=Area/City
func (h *AccountHandler) Summary(c echo.Context) error {
	raw := c.QueryParam("range")
	if raw == "" {
		raw = string(transaction.Range30d)
	}
	r, err := transaction.ParseRange(raw)
	if err != nil || r.Days() == 0 {
		return badRequest(c, "range must be one of 7d, 30d, 90d")
	}
	loc := time.UTC
	if tz := c.QueryParam("tz"); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return badRequest(c, "tz must be an IANA time zone name")
		}
	}
	s, err := h.uc.Summarize(c.Request().Context(), userID(c), transaction.DaysWindow(r.Days(), h.uc.Now(), loc))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// GET /accounts/me/events streams account changes as server-sent events.
func (h *AccountHandler) Events(c echo.Context) error {
	ctx := c.Request().Context()
	ch, err := h.uc.Subscribe(ctx, userID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	tick := time.NewTicker(heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("encode account event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, raw); err != nil {
				return nil
			}
			w.Flush()
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
