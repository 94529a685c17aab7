package http

import (
	"bufio"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"fastpay-ledger/internal/adapter/middleware"
	"fastpay-ledger/internal/adapter/repository/kv"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/infrastructure/cache"
	eventsinfra "fastpay-ledger/internal/infrastructure/events"
	"fastpay-ledger/internal/infrastructure/kvstore"
	currencyuc "fastpay-ledger/internal/usecase/currency"
	"fastpay-ledger/internal/usecase/ledger"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	e  *echo.Echo
	uc *ledger.Usecase
}

func newFixture(t *testing.T, mutating ...echo.MiddlewareFunc) *fixture {
	t.Helper()
	uc := ledger.NewUsecase(
		kv.NewUoW(kvstore.NewMemory(), "", "guest", loan.DefaultPolicy(), nil),
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithNotifier(eventsinfra.NewBroker(8)),
	)
	rates := currencyuc.NewUsecase(cache.NewMemoryRates(time.Now), nil)

	e := echo.New()
	e.Validator = NewValidator()
	Register(e, Routes{
		Health:   NewHandler(),
		Accounts: NewAccountHandler(uc, ledger.OpenAccountInput{Name: "Guest", OpeningBalance: decimal.NewFromInt(1000)}, nil),
		Loans:    NewLoanHandler(uc, nil),
		Currency: NewCurrencyHandler(rates, nil),
	}, mutating...)
	return &fixture{e: e, uc: uc}
}

func (f *fixture) do(method, path, user, body string, headers ...string) *httptest.ResponseRecorder {
	var req *stdhttp.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) open(t *testing.T, user, opening string) map[string]any {
	t.Helper()
	rec := f.do(stdhttp.MethodPost, "/accounts", user, `{"name":"`+user+`","opening_balance":`+opening+`}`)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func dec(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected decimal string, got %T", v)
	return decimal.RequireFromString(s)
}

func balance(t *testing.T, f *fixture, user string) decimal.Decimal {
	t.Helper()
	rec := f.do(stdhttp.MethodGet, "/accounts/me", user, "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	return dec(t, decode(t, rec)["balance"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(stdhttp.MethodGet, "/health", "", "")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAccounts_RequireUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(stdhttp.MethodGet, "/accounts/me", "", "")
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = f.do(stdhttp.MethodGet, "/accounts/me", "bad user!", "")
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
}

func TestAccounts_MeOpensWithDefaults(t *testing.T) {
	f := newFixture(t)

	rec := f.do(stdhttp.MethodGet, "/accounts/me", "u-1", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	m := decode(t, rec)
	assert.Equal(t, "Guest", m["name"])
	assert.True(t, dec(t, m["balance"]).Equal(decimal.NewFromInt(1000)))
	assert.Len(t, m["account_number"], 10)

	// second call returns the same account
	again := decode(t, f.do(stdhttp.MethodGet, "/accounts/me", "u-1", ""))
	assert.Equal(t, m["account_number"], again["account_number"])
}

func TestAccounts_OpenTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "0")

	rec := f.do(stdhttp.MethodPost, "/accounts", "u-1", `{"name":"again"}`)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode(t, rec)["code"])
}

func TestAccounts_DepositAndWithdrawals(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "100")

	rec := f.do(stdhttp.MethodPost, "/accounts/me/deposits", "u-1", `{"amount":"50.25","description":"salary"}`)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "income", decode(t, rec)["type"])

	rec = f.do(stdhttp.MethodPost, "/accounts/me/withdrawals", "u-1", `{"amount":500}`)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_funds", decode(t, rec)["code"])

	rec = f.do(stdhttp.MethodPost, "/accounts/me/withdrawals", "u-1", `{"amount":20,"category":"bill_pay","recipient":"Power Co"}`)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	tx := decode(t, rec)
	assert.Equal(t, "expense", tx["type"])
	assert.Equal(t, "bill_pay", tx["category"])

	assert.True(t, balance(t, f, "u-1").Equal(decimal.RequireFromString("130.25")))
}

func TestAccounts_BodyValidation(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "100")

	rec := f.do(stdhttp.MethodPost, "/accounts/me/deposits", "u-1", `{"amount":0}`)
	require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, containsFieldMsg(resp.Details, "amount", "greater than 0"), "%+v", resp.Details)

	rec = f.do(stdhttp.MethodPost, "/accounts/me/deposits", "u-1", `{"amount":1.234}`)
	require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, containsFieldMsg(resp.Details, "amount", "at most 2 decimal places"), "%+v", resp.Details)

	rec = f.do(stdhttp.MethodPost, "/accounts/me/withdrawals", "u-1", `{"amount":1,"category":"loan"}`)
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)

	rec = f.do(stdhttp.MethodPost, "/accounts/me/deposits", "u-1", `{"amount":`)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	assert.True(t, balance(t, f, "u-1").Equal(decimal.NewFromInt(100)))
}

func TestAccounts_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "0")

	rec := f.do(stdhttp.MethodPatch, "/accounts/me", "u-1", `{"name":"Ada","display_currency":"eur"}`)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	m := decode(t, rec)
	assert.Equal(t, "Ada", m["name"])
	assert.Equal(t, "EUR", m["display_currency"])

	rec = f.do(stdhttp.MethodPatch, "/accounts/me", "u-1", `{"display_currency":"XYZ"}`)
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
}

func TestAccounts_Transfer(t *testing.T) {
	f := newFixture(t)
	f.open(t, "alice", "100")
	bob := f.open(t, "bob", "0")

	rec := f.do(stdhttp.MethodPost, "/accounts/me/transfers", "alice",
		`{"recipient_account_number":"`+bob["account_number"].(string)+`","amount":40,"description":"rent"}`)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, dec(t, decode(t, rec)["sender_balance"]).Equal(decimal.NewFromInt(60)))
	assert.True(t, balance(t, f, "bob").Equal(decimal.NewFromInt(40)))

	rec = f.do(stdhttp.MethodPost, "/accounts/me/transfers", "alice", `{"recipient_account_number":"0000000001","amount":1}`)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	rec = f.do(stdhttp.MethodPost, "/accounts/me/transfers", "alice", `{"recipient_account_number":"123","amount":1}`)
	require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, containsFieldMsg(resp.Details, "recipient_account_number", "10 digits"), "%+v", resp.Details)

	assert.True(t, balance(t, f, "alice").Equal(decimal.NewFromInt(60)))
}

func TestAccounts_LoanCap(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "0")

	for i := 0; i < 2; i++ {
		rec := f.do(stdhttp.MethodPost, "/accounts/me/loans", "u-1", `{"amount":500,"term_months":12}`)
		require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := f.do(stdhttp.MethodPost, "/accounts/me/loans", "u-1", `{"amount":500,"term_months":12}`)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
	assert.Equal(t, "policy_limit", decode(t, rec)["code"])

	rec = f.do(stdhttp.MethodPost, "/accounts/me/loans", "u-1", `{"amount":50,"term_months":12}`)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = f.do(stdhttp.MethodGet, "/accounts/me/loans", "u-1", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["loans"], 2)
	assert.True(t, balance(t, f, "u-1").Equal(decimal.NewFromInt(1000)))
}

func TestAccounts_TransactionQueries(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "100")
	for _, body := range []string{
		`{"amount":10,"category":"bill_pay","recipient":"Water"}`,
		`{"amount":5,"category":"airtime","recipient":"0801"}`,
		`{"amount":15,"category":"bill_pay","recipient":"Power"}`,
	} {
		rec := f.do(stdhttp.MethodPost, "/accounts/me/withdrawals", "u-1", body)
		require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.do(stdhttp.MethodGet, "/accounts/me/transactions", "u-1", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.EqualValues(t, 4, decode(t, rec)["count"])

	rec = f.do(stdhttp.MethodGet, "/accounts/me/transactions?limit=2", "u-1", "")
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = f.do(stdhttp.MethodGet, "/accounts/me/transactions?category=bill_pay", "u-1", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = f.do(stdhttp.MethodGet, "/accounts/me/transactions?q=power&range=7d", "u-1", "")
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = f.do(stdhttp.MethodGet, "/accounts/me/transactions?min=10&max=15&type=expense", "u-1", "")
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = f.do(stdhttp.MethodGet, "/accounts/me/transactions?type=Income&category=", "u-1", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	for _, q := range []string{"range=1y", "min=abc", "limit=-1", "type=bogus", "category=xyz"} {
		rec = f.do(stdhttp.MethodGet, "/accounts/me/transactions?"+q, "u-1", "")
		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code, q)
	}
}

func TestAccounts_Summary(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "100")
	rec := f.do(stdhttp.MethodPost, "/accounts/me/withdrawals", "u-1", `{"amount":30,"category":"airtime"}`)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(stdhttp.MethodGet, "/accounts/me/summary?range=7d&tz=Africa/Lagos", "u-1", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	s := decode(t, rec)
	assert.Len(t, s["daily"], 7)
	assert.True(t, dec(t, s["income"]).Equal(decimal.NewFromInt(100)))
	assert.True(t, dec(t, s["expense"]).Equal(decimal.NewFromInt(30)))

	assert.Equal(t, stdhttp.StatusBadRequest, f.do(stdhttp.MethodGet, "/accounts/me/summary?range=all", "u-1", "").Code)
	assert.Equal(t, stdhttp.StatusBadRequest, f.do(stdhttp.MethodGet, "/accounts/me/summary?tz=Not/AZone", "u-1", "").Code)
	assert.Equal(t, stdhttp.StatusNotFound, f.do(stdhttp.MethodGet, "/accounts/me/summary", "nobody", "").Code)
}

func TestLoans_QuoteAndPolicy(t *testing.T) {
	f := newFixture(t)

	rec := f.do(stdhttp.MethodGet, "/loans/quote?amount=1000&term=12", "", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	q := decode(t, rec)
	assert.EqualValues(t, 12, q["term_months"])
	assert.True(t, dec(t, q["monthly_payment"]).GreaterThan(decimal.NewFromInt(83)))

	assert.Equal(t, stdhttp.StatusBadRequest, f.do(stdhttp.MethodGet, "/loans/quote?amount=abc&term=12", "", "").Code)
	assert.Equal(t, stdhttp.StatusBadRequest, f.do(stdhttp.MethodGet, "/loans/quote?amount=50&term=12", "", "").Code)

	rec = f.do(stdhttp.MethodGet, "/loans/quote?amount=1000&term=100000", "", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, dec(t, decode(t, rec)["monthly_payment"]).Equal(decimal.RequireFromString("12.5")))

	rec = f.do(stdhttp.MethodGet, "/loans/policy", "", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["max_active"])
}

func TestCurrency_RatesAndConvert(t *testing.T) {
	f := newFixture(t)

	rec := f.do(stdhttp.MethodGet, "/currency/rates?base=usd", "", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, currencyuc.OriginFallback, m["origin"])
	assert.Equal(t, "USD", m["base"])

	assert.Equal(t, stdhttp.StatusBadRequest, f.do(stdhttp.MethodGet, "/currency/rates?base=XYZ", "", "").Code)

	rec = f.do(stdhttp.MethodGet, "/currency/convert?amount=100&from=USD&to=EUR", "", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	conv := decode(t, rec)
	assert.True(t, dec(t, conv["converted"]).Equal(decimal.NewFromInt(85)))

	assert.Equal(t, stdhttp.StatusBadRequest, f.do(stdhttp.MethodGet, "/currency/convert?amount=100&from=USD", "", "").Code)
	assert.Equal(t, stdhttp.StatusBadRequest, f.do(stdhttp.MethodGet, "/currency/convert?amount=x&from=USD&to=EUR", "", "").Code)
}

func TestAccounts_IdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, middleware.IdempotencyMiddleware(rdb, time.Hour, nil))
	at := strconv.FormatInt(time.Now().Unix(), 10)
	hdrs := []string{middleware.HeaderRequestID, "0f8fad5b-d9cb-469f-a165-70867728950e", middleware.HeaderRequestAt, at}

	rec := f.do(stdhttp.MethodPost, "/accounts", "u-1", `{"name":"u-1","opening_balance":10}`, middleware.HeaderRequestID, "1f8fad5b-d9cb-469f-a165-70867728950e", middleware.HeaderRequestAt, at)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())

	first := f.do(stdhttp.MethodPost, "/accounts/me/deposits", "u-1", `{"amount":5}`, hdrs...)
	require.Equal(t, stdhttp.StatusCreated, first.Code, first.Body.String())
	second := f.do(stdhttp.MethodPost, "/accounts/me/deposits", "u-1", `{"amount":5}`, hdrs...)
	assert.Equal(t, stdhttp.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Ax-Idempotent-Replay"))
	assert.Equal(t, decode(t, first)["id"], decode(t, second)["id"])

	assert.True(t, balance(t, f, "u-1").Equal(decimal.NewFromInt(15)))
}

func TestAccounts_EventsStream(t *testing.T) {
	f := newFixture(t)
	f.open(t, "u-1", "0")

	srv := httptest.NewServer(f.e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, srv.URL+"/accounts/me/events", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderUserID, "u-1")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	_, err = f.uc.Deposit(context.Background(), "u-1", ledger.MutationInput{Amount: decimal.NewFromInt(7)})
	require.NoError(t, err)

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
			break
		}
	}
	require.NotEmpty(t, data)
	assert.Equal(t, "deposit", event)
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.True(t, dec(t, ev["balance"]).Equal(decimal.NewFromInt(7)))
}

func TestAccounts_EventsUnknownAccount(t *testing.T) {
	f := newFixture(t)
	rec := f.do(stdhttp.MethodGet, "/accounts/me/events", "ghost", "")
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
	}{
		{ledger.ErrAmountPrecision, stdhttp.StatusBadRequest},
		{loan.ErrActiveLoanLimit, stdhttp.StatusConflict},
		{context.DeadlineExceeded, stdhttp.StatusServiceUnavailable},
		{assert.AnError, stdhttp.StatusInternalServerError},
	} {
		status, _, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
