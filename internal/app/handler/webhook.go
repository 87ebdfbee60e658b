package handler

import (
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/logger"
)

// SignatureHeader carries the provider's HMAC over the raw payload.
const SignatureHeader = "X-Signature"

type WebhookHandler struct {
	orchestrator Orchestrator
}

func NewWebhookHandler(o Orchestrator) *WebhookHandler {
	return &WebhookHandler{
		orchestrator: o,
	}
}

// Callback ingests a provider status-change event. There is no session auth on
// this route; authenticity comes from the payload signature alone.
func (h *WebhookHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Webhook.Callback")

	gatewayID, err := uuid.Parse(chi.URLParam(r, "gatewayID"))
	if err != nil {
		WriteError(w, apperr.ErrNotFound, http.StatusNotFound)
		return
	}

	payload, err := ioutil.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		l.Debug().Err(err).Msg("Body read failed")
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	m, err := h.orchestrator.IngestWebhook(ctx, gatewayID, payload, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidSignature):
			l.Warn().Str("gateway_id", gatewayID.String()).Msg("Webhook rejected")
			WriteError(w, err, http.StatusUnauthorized)
		case errors.Is(err, apperr.ErrNotFound):
			WriteError(w, err, http.StatusNotFound)
		case errors.Is(err, apperr.ErrInvalidInput):
			WriteError(w, err, http.StatusBadRequest)
		default:
			l.Error().Err(err).Msg("Webhook ingestion failed")
			WriteError(w, err, http.StatusInternalServerError)
		}
		return
	}

	out := struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}{
		TransactionID: m.ID.String(),
		Status:        string(m.Status),
	}

	WriteResponse(w, out, http.StatusOK)
}
