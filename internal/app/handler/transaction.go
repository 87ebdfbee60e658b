package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/logger"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/service/orchestrator"
	"scratchpay/pkg/gateway"
)

// Orchestrator is the transaction lifecycle surface the handlers need.
type Orchestrator interface {
	CreateDeposit(ctx context.Context, userID uuid.UUID, in orchestrator.DepositInput) (*model.Transaction, *gateway.CreateResult, error)
	CreateWithdraw(ctx context.Context, userID uuid.UUID, in orchestrator.WithdrawInput) (*model.Transaction, decimal.Decimal, error)
	Read(ctx context.Context, transactionID uuid.UUID) (*model.Transaction, error)
	CheckStatus(ctx context.Context, transactionID uuid.UUID) (*model.Transaction, error)
	IngestWebhook(ctx context.Context, gatewayID uuid.UUID, payload []byte, signature string) (*model.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error)
}

type TransactionHandler struct {
	orchestrator Orchestrator
}

func NewTransactionHandler(o Orchestrator) *TransactionHandler {
	return &TransactionHandler{
		orchestrator: o,
	}
}

func transactionErrorStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, apperr.ErrUnsupportedPaymentMethod),
		errors.Is(err, apperr.ErrGatewayInactive),
		errors.Is(err, apperr.ErrGatewayMisconfigured):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrGatewayCallFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Transaction.Deposit")

	u, err := ReadContextUser(ctx)
	if err != nil {
		l.Debug().Err(err).Msg("Unauthorized")
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod string          `json:"payment_method" validate:"required,oneof=pix card"`
		GatewayID     string          `json:"gateway_id" validate:"required,uuid"`
	}{}

	if err := readBody(r, &in); err != nil {
		l.Debug().Err(err).Msg("Body read failed")
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	gatewayID, err := uuid.Parse(in.GatewayID)
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	m, res, err := h.orchestrator.CreateDeposit(ctx, u.ID, orchestrator.DepositInput{
		Amount:    in.Amount,
		Method:    model.PaymentMethod(in.PaymentMethod),
		GatewayID: gatewayID,
	})
	if err != nil {
		status := transactionErrorStatus(err)
		if status >= http.StatusInternalServerError {
			l.Error().Err(err).Msg("Deposit failed")
		} else {
			l.Debug().Err(err).Msg("Deposit rejected")
		}
		WriteError(w, err, status)
		return
	}

	out := struct {
		TransactionID string `json:"transaction_id"`
		QRCodeURL     string `json:"qr_code_url,omitempty"`
		PixCode       string `json:"pix_code,omitempty"`
		RedirectURL   string `json:"redirect_url,omitempty"`
	}{
		TransactionID: m.ID.String(),
		QRCodeURL:     res.QRCodeURL,
		PixCode:       res.PixCode,
		RedirectURL:   res.RedirectURL,
	}

	WriteResponse(w, out, http.StatusCreated)
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Transaction.Withdraw")

	u, err := ReadContextUser(ctx)
	if err != nil {
		l.Debug().Err(err).Msg("Unauthorized")
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod string          `json:"payment_method" validate:"required,oneof=pix card"`
		GatewayID     string          `json:"gateway_id" validate:"required,uuid"`
		PixKey        string          `json:"pix_key,omitempty"`
		CardNumber    string          `json:"card_number,omitempty"`
		CardHolder    string          `json:"card_holder,omitempty"`
	}{}

	if err := readBody(r, &in); err != nil {
		l.Debug().Err(err).Msg("Body read failed")
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	gatewayID, err := uuid.Parse(in.GatewayID)
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	m, newBalance, err := h.orchestrator.CreateWithdraw(ctx, u.ID, orchestrator.WithdrawInput{
		Amount:     in.Amount,
		Method:     model.PaymentMethod(in.PaymentMethod),
		GatewayID:  gatewayID,
		PixKey:     in.PixKey,
		CardNumber: in.CardNumber,
		CardHolder: in.CardHolder,
	})
	if err != nil {
		status := transactionErrorStatus(err)
		if status >= http.StatusInternalServerError {
			l.Error().Err(err).Msg("Withdraw failed")
		} else {
			l.Debug().Err(err).Msg("Withdraw rejected")
		}
		WriteError(w, err, status)
		return
	}

	out := struct {
		TransactionID string          `json:"transaction_id"`
		NewBalance    decimal.Decimal `json:"new_balance"`
	}{
		TransactionID: m.ID.String(),
		NewBalance:    newBalance,
	}

	WriteResponse(w, out, http.StatusCreated)
}

func (h *TransactionHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Transaction.Status")

	u, err := ReadContextUser(ctx)
	if err != nil {
		l.Debug().Err(err).Msg("Unauthorized")
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	// Ownership is checked before any provider contact, so a guessed id
	// cannot drive reconciliation of someone else's transaction.
	m, err := h.orchestrator.Read(ctx, id)
	if err != nil {
		WriteError(w, err, transactionErrorStatus(err))
		return
	}

	if m.UserID != u.ID {
		// Do not leak other users' transactions.
		WriteError(w, apperr.ErrNotFound, http.StatusNotFound)
		return
	}

	m, err = h.orchestrator.CheckStatus(ctx, id)
	if err != nil {
		status := transactionErrorStatus(err)
		if status >= http.StatusInternalServerError {
			l.Error().Err(err).Msg("Status check failed")
		}
		WriteError(w, err, status)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Transaction.List")

	u, err := ReadContextUser(ctx)
	if err != nil {
		l.Debug().Err(err).Msg("Unauthorized")
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	mm, err := h.orchestrator.ListByUser(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	if len(mm) == 0 {
		WriteResponse(w, []struct{}{}, http.StatusOK)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}
