package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
)

func newWebhookRouter(f *fakeOrchestrator) *chi.Mux {
	router := chi.NewRouter()
	router.Post("/webhooks/{gatewayID}/callback", NewWebhookHandler(f).Callback)
	return router
}

func TestCallback(t *testing.T) {
	txn := &model.Transaction{ID: uuid.New(), Status: model.TransactionStatusCompleted}
	f := &fakeOrchestrator{webhookTxn: txn}
	router := newWebhookRouter(f)

	r := httptest.NewRequest(http.MethodPost, "/webhooks/"+uuid.NewString()+"/callback", strings.NewReader(`{"id":"pf-1","status":"paid"}`))
	r.Header.Set(SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
	if string(f.lastPayload) != `{"id":"pf-1","status":"paid"}` {
		t.Errorf("payload = %q, raw body must pass through untouched", f.lastPayload)
	}
	if f.lastSignature != "deadbeef" {
		t.Errorf("signature = %q", f.lastSignature)
	}
}

func TestCallbackBadSignature(t *testing.T) {
	router := newWebhookRouter(&fakeOrchestrator{webhookErr: apperr.ErrInvalidSignature})

	r := httptest.NewRequest(http.MethodPost, "/webhooks/"+uuid.NewString()+"/callback", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestCallbackUnknownTransaction(t *testing.T) {
	router := newWebhookRouter(&fakeOrchestrator{webhookErr: apperr.ErrNotFound})

	r := httptest.NewRequest(http.MethodPost, "/webhooks/"+uuid.NewString()+"/callback", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestCallbackBadGatewayID(t *testing.T) {
	router := newWebhookRouter(&fakeOrchestrator{})

	r := httptest.NewRequest(http.MethodPost, "/webhooks/not-a-uuid/callback", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d", w.Code)
	}
}
