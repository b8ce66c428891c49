package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/lock"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/storage/memory"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ledger"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/service"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/transfer"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.New()
	accounts := store.Accounts()
	locker := lock.NewKeyed()
	exec := transfer.NewExecutor(store, accounts, nil)
	l := ledger.New(ledger.Deps{
		Transactor: store,
		Accounts:   accounts,
		Loans:      store.Loans(),
		Transfers:  exec,
		Locker:     locker,
	})
	return NewApp(Deps{
		Accounts:    service.NewAccountService(accounts, exec, nil),
		Loans:       service.NewLoanService(l),
		Idempotency: store,
		Locker:      locker,
	})
}

type call struct {
	method string
	path   string
	body   string
	header map[string]string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]any, http.Header) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out, resp.Header
}

func openAccount(t *testing.T, app *fiber.App, name string) string {
	t.Helper()
	status, body, _ := do(t, app, call{method: http.MethodPost, path: "/v1/accounts", body: `{"owner_name":"` + name + `"}`})
	require.Equal(t, http.StatusCreated, status)
	return body["id"].(string)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	borrower := openAccount(t, app, "Borrower")
	lender := openAccount(t, app, "Lender")

	status, _, _ := do(t, app, call{method: http.MethodPost, path: "/v1/deposit", body: `{"account_id":"` + lender + `","amount":"500.00"}`})
	require.Equal(t, http.StatusOK, status)

	status, body, _ := do(t, app, call{method: http.MethodPost, path: "/v1/loans", body: `{"borrower_id":"` + borrower + `","amount":"100.00"}`})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Loan requested", body["message"])
	record := body["record"].(map[string]any)
	assert.Equal(t, "pending", record["status"])
	assert.Equal(t, "100.00", record["principal"])
	loanID := record["id"].(string)

	status, body, _ = do(t, app, call{method: http.MethodPost, path: "/v1/loans/" + loanID + "/approve", body: `{"lender_id":"` + lender + `"}`})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Loan approved", body["message"])

	status, body, _ = do(t, app, call{method: http.MethodPost, path: "/v1/loans/" + loanID + "/repay", body: `{"amount":40}`})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Repayment recorded", body["message"])
	assert.Equal(t, "60.00", body["record"].(map[string]any)["remaining"])

	status, body, _ = do(t, app, call{method: http.MethodPost, path: "/v1/loans/" + loanID + "/repay", body: `{"amount":"60"}`})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Loan fully repaid", body["message"])

	status, body, _ = do(t, app, call{method: http.MethodGet, path: "/v1/loans/" + loanID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "repaid", body["status"])
	assert.Equal(t, "0.00", body["remaining"])

	status, body, _ = do(t, app, call{method: http.MethodGet, path: "/v1/loans/" + loanID + "/repayments"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["repayments"], 2)

	status, body, _ = do(t, app, call{method: http.MethodGet, path: "/v1/accounts/" + lender + "/loans"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["loans"], 1)

	status, body, _ = do(t, app, call{method: http.MethodGet, path: "/v1/accounts/" + lender})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "500.00", body["balance"])

	status, body, _ = do(t, app, call{method: http.MethodGet, path: "/v1/accounts/" + borrower + "/transactions?limit=2"})
	require.Equal(t, http.StatusOK, status)
	txs := body["transactions"].([]any)
	require.Len(t, txs, 2)
	assert.Equal(t, "DEBIT", txs[0].(map[string]any)["direction"])
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)
	a := openAccount(t, app, "A")
	b := openAccount(t, app, "B")

	cases := []struct {
		name   string
		call   call
		status int
		code   string
	}{
		{"malformed id", call{method: http.MethodGet, path: "/v1/accounts/nope"}, http.StatusBadRequest, "invalid_argument"},
		{"unknown account", call{method: http.MethodGet, path: "/v1/accounts/" + uuid.NewString()}, http.StatusNotFound, "not_found"},
		{"missing owner", call{method: http.MethodPost, path: "/v1/accounts", body: `{}`}, http.StatusBadRequest, "invalid_argument"},
		{"bad json", call{method: http.MethodPost, path: "/v1/deposit", body: `{`}, http.StatusBadRequest, "invalid_argument"},
		{"zero deposit", call{method: http.MethodPost, path: "/v1/deposit", body: `{"account_id":"` + a + `","amount":"0"}`}, http.StatusBadRequest, "invalid_amount"},
		{"self transfer", call{method: http.MethodPost, path: "/v1/transfer", body: `{"from_id":"` + a + `","to_id":"` + a + `","amount":"1"}`}, http.StatusBadRequest, "invalid_transfer"},
		{"insufficient funds", call{method: http.MethodPost, path: "/v1/transfer", body: `{"from_id":"` + a + `","to_id":"` + b + `","amount":"1"}`}, http.StatusUnprocessableEntity, "insufficient_funds"},
		{"unknown loan", call{method: http.MethodGet, path: "/v1/loans/" + uuid.NewString()}, http.StatusNotFound, "not_found"},
		{"missing lender", call{method: http.MethodPost, path: "/v1/loans/" + uuid.NewString() + "/approve", body: `{}`}, http.StatusBadRequest, "invalid_argument"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body, _ := do(t, app, tc.call)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestTooManyDecimalsIsRejected(t *testing.T) {
	app := newTestApp(t)
	a := openAccount(t, app, "A")

	status, _, _ := do(t, app, call{method: http.MethodPost, path: "/v1/deposit", body: `{"account_id":"` + a + `","amount":"1.234"}`})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestApproveTwiceConflicts(t *testing.T) {
	app := newTestApp(t)
	borrower := openAccount(t, app, "Borrower")
	lender := openAccount(t, app, "Lender")
	do(t, app, call{method: http.MethodPost, path: "/v1/deposit", body: `{"account_id":"` + lender + `","amount":"50"}`})

	_, body, _ := do(t, app, call{method: http.MethodPost, path: "/v1/loans", body: `{"borrower_id":"` + borrower + `","amount":"10"}`})
	loanID := body["record"].(map[string]any)["id"].(string)
	approve := call{method: http.MethodPost, path: "/v1/loans/" + loanID + "/approve", body: `{"lender_id":"` + lender + `"}`}

	status, _, _ := do(t, app, approve)
	require.Equal(t, http.StatusOK, status)
	status, body, _ = do(t, app, approve)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", body["code"])
}

func TestRepayIsIdempotentWithKey(t *testing.T) {
	app := newTestApp(t)
	borrower := openAccount(t, app, "Borrower")
	lender := openAccount(t, app, "Lender")
	do(t, app, call{method: http.MethodPost, path: "/v1/deposit", body: `{"account_id":"` + lender + `","amount":"100"}`})

	_, body, _ := do(t, app, call{method: http.MethodPost, path: "/v1/loans", body: `{"borrower_id":"` + borrower + `","amount":"100"}`})
	loanID := body["record"].(map[string]any)["id"].(string)
	do(t, app, call{method: http.MethodPost, path: "/v1/loans/" + loanID + "/approve", body: `{"lender_id":"` + lender + `"}`})

	repay := call{
		method: http.MethodPost,
		path:   "/v1/loans/" + loanID + "/repay",
		body:   `{"amount":"30"}`,
		header: map[string]string{"Idempotency-Key": "repay-1"},
	}
	status, first, h := do(t, app, repay)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, h.Get("X-Idempotency-Hit"))

	status, second, h := do(t, app, repay)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "true", h.Get("X-Idempotency-Hit"))
	assert.Equal(t, first, second)

	_, loan, _ := do(t, app, call{method: http.MethodGet, path: "/v1/loans/" + loanID})
	assert.Equal(t, "70.00", loan["remaining"])
}

func TestHealth(t *testing.T) {
	status, body, _ := do(t, newTestApp(t), call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(domain.KindNotFound))
	assert.Equal(t, http.StatusConflict, StatusFor(domain.KindInvalidState))
	assert.Equal(t, http.StatusBadRequest, StatusFor(domain.KindInvalidAmount))
	assert.Equal(t, http.StatusBadRequest, StatusFor(domain.KindInvalidTransfer))
	assert.Equal(t, http.StatusBadRequest, StatusFor(domain.KindInvalidArgument))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(domain.KindInsufficientFunds))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(""))
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("connection refused") })

	status, body, _ := do(t, app, call{method: http.MethodGet, path: "/boom"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"])
	assert.Equal(t, "internal", body["code"])

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request failed", logs.All()[0].Message)
}
