package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/service/orchestrator"
	"scratchpay/pkg/gateway"
)

type fakeOrchestrator struct {
	depositTxn  *model.Transaction
	depositRes  *gateway.CreateResult
	depositErr  error
	withdrawTxn *model.Transaction
	withdrawBal decimal.Decimal
	withdrawErr error
	readTxn     *model.Transaction
	readErr     error
	statusTxn   *model.Transaction
	statusErr   error
	statusCalls int
	webhookTxn  *model.Transaction
	webhookErr  error
	listTxns    []*model.Transaction
	listErr     error

	lastSignature string
	lastPayload   []byte
}

func (f *fakeOrchestrator) CreateDeposit(ctx context.Context, userID uuid.UUID, in orchestrator.DepositInput) (*model.Transaction, *gateway.CreateResult, error) {
	return f.depositTxn, f.depositRes, f.depositErr
}

func (f *fakeOrchestrator) CreateWithdraw(ctx context.Context, userID uuid.UUID, in orchestrator.WithdrawInput) (*model.Transaction, decimal.Decimal, error) {
	return f.withdrawTxn, f.withdrawBal, f.withdrawErr
}

func (f *fakeOrchestrator) Read(ctx context.Context, transactionID uuid.UUID) (*model.Transaction, error) {
	return f.readTxn, f.readErr
}

func (f *fakeOrchestrator) CheckStatus(ctx context.Context, transactionID uuid.UUID) (*model.Transaction, error) {
	f.statusCalls++
	return f.statusTxn, f.statusErr
}

func (f *fakeOrchestrator) IngestWebhook(ctx context.Context, gatewayID uuid.UUID, payload []byte, signature string) (*model.Transaction, error) {
	f.lastPayload = payload
	f.lastSignature = signature
	return f.webhookTxn, f.webhookErr
}

func (f *fakeOrchestrator) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error) {
	return f.listTxns, f.listErr
}

func withUser(r *http.Request, u *model.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ContextKeyUser{}, u))
}

func TestDeposit(t *testing.T) {
	txn := &model.Transaction{ID: uuid.New(), Status: model.TransactionStatusPending}
	f := &fakeOrchestrator{
		depositTxn: txn,
		depositRes: &gateway.CreateResult{QRCodeURL: "https://q", PixCode: "00020126"},
	}
	h := NewTransactionHandler(f)

	body := `{"amount":"50.00","payment_method":"pix","gateway_id":"` + uuid.NewString() + `"}`
	r := httptest.NewRequest(http.MethodPost, "/api/transactions/deposit", strings.NewReader(body))
	r = withUser(r, &model.User{ID: uuid.New()})
	w := httptest.NewRecorder()

	h.Deposit(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	out := struct {
		TransactionID string `json:"transaction_id"`
		PixCode       string `json:"pix_code"`
	}{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TransactionID != txn.ID.String() {
		t.Errorf("transaction_id = %q", out.TransactionID)
	}
	if out.PixCode != "00020126" {
		t.Errorf("pix_code = %q", out.PixCode)
	}
}

func TestDepositValidation(t *testing.T) {
	h := NewTransactionHandler(&fakeOrchestrator{})

	cases := []struct {
		name string
		body string
	}{
		{"bad method", `{"amount":"50.00","payment_method":"cash","gateway_id":"` + uuid.NewString() + `"}`},
		{"missing gateway", `{"amount":"50.00","payment_method":"pix"}`},
		{"bad gateway id", `{"amount":"50.00","payment_method":"pix","gateway_id":"nope"}`},
		{"not json", `amount=50`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/transactions/deposit", strings.NewReader(c.body))
			r = withUser(r, &model.User{ID: uuid.New()})
			w := httptest.NewRecorder()

			h.Deposit(w, r)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestDepositRequiresUser(t *testing.T) {
	h := NewTransactionHandler(&fakeOrchestrator{})

	r := httptest.NewRequest(http.MethodPost, "/api/transactions/deposit", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.Deposit(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestWithdrawErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.ErrInsufficientFunds, http.StatusPaymentRequired},
		{apperr.ErrGatewayCallFailed, http.StatusBadGateway},
		{apperr.ErrGatewayInactive, http.StatusBadRequest},
		{apperr.ErrUnsupportedPaymentMethod, http.StatusBadRequest},
		{apperr.ErrNotFound, http.StatusNotFound},
	}

	for _, c := range cases {
		h := NewTransactionHandler(&fakeOrchestrator{withdrawErr: c.err})

		body := `{"amount":"100.00","payment_method":"pix","gateway_id":"` + uuid.NewString() + `","pix_key":"k@b.test"}`
		r := httptest.NewRequest(http.MethodPost, "/api/transactions/withdraw", strings.NewReader(body))
		r = withUser(r, &model.User{ID: uuid.New()})
		w := httptest.NewRecorder()

		h.Withdraw(w, r)

		if w.Code != c.want {
			t.Errorf("%v: code = %d, want %d", c.err, w.Code, c.want)
		}
	}
}

func TestWithdrawReturnsNewBalance(t *testing.T) {
	txn := &model.Transaction{ID: uuid.New(), Status: model.TransactionStatusPending}
	h := NewTransactionHandler(&fakeOrchestrator{
		withdrawTxn: txn,
		withdrawBal: decimal.RequireFromString("42.50"),
	})

	body := `{"amount":"100.00","payment_method":"pix","gateway_id":"` + uuid.NewString() + `","pix_key":"k@b.test"}`
	r := httptest.NewRequest(http.MethodPost, "/api/transactions/withdraw", strings.NewReader(body))
	r = withUser(r, &model.User{ID: uuid.New()})
	w := httptest.NewRecorder()

	h.Withdraw(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	out := struct {
		NewBalance string `json:"new_balance"`
	}{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.NewBalance != "42.5" {
		t.Errorf("new_balance = %q", out.NewBalance)
	}
}

func TestStatusHidesForeignTransactions(t *testing.T) {
	owner := uuid.New()
	txn := &model.Transaction{ID: uuid.New(), UserID: owner, Status: model.TransactionStatusPending}
	f := &fakeOrchestrator{readTxn: txn, statusTxn: txn}
	h := NewTransactionHandler(f)

	router := chi.NewRouter()
	router.Get("/api/transactions/status/{transactionID}", h.Status)

	r := httptest.NewRequest(http.MethodGet, "/api/transactions/status/"+txn.ID.String(), nil)
	r = withUser(r, &model.User{ID: uuid.New()}) // not the owner
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d, foreign transactions must 404", w.Code)
	}
	if f.statusCalls != 0 {
		t.Fatalf("reconciliation ran %d times for a foreign transaction", f.statusCalls)
	}
}

func TestStatusReturnsOwnTransaction(t *testing.T) {
	owner := uuid.New()
	txn := &model.Transaction{ID: uuid.New(), UserID: owner, Status: model.TransactionStatusCompleted}
	h := NewTransactionHandler(&fakeOrchestrator{readTxn: txn, statusTxn: txn})

	router := chi.NewRouter()
	router.Get("/api/transactions/status/{transactionID}", h.Status)

	r := httptest.NewRequest(http.MethodGet, "/api/transactions/status/"+txn.ID.String(), nil)
	r = withUser(r, &model.User{ID: owner})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	out := struct {
		Status string `json:"status"`
	}{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "completed" {
		t.Errorf("status = %q", out.Status)
	}
}

func TestListEmpty(t *testing.T) {
	h := NewTransactionHandler(&fakeOrchestrator{})

	r := httptest.NewRequest(http.MethodGet, "/api/transactions/user", nil)
	r = withUser(r, &model.User{ID: uuid.New()})
	w := httptest.NewRecorder()

	h.List(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q", got)
	}
}
