// Package pagfast adapts the PagFast provider API. PagFast speaks a string
// status vocabulary and supports both pix and card for deposits and payouts.
package pagfast

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ferdypruis/go-luhn"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
	"scratchpay/pkg/gateway"
)

// gateway.Adapter interface implementation
var _ gateway.Adapter = (*Adapter)(nil)

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Provider() string {
	return "pagfast"
}

type pixPayload struct {
	Key string `json:"key,omitempty"`
}

type cardPayload struct {
	Number string `json:"number,omitempty"`
	Holder string `json:"holder,omitempty"`
}

type createPayload struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Pix       *pixPayload     `json:"pix,omitempty"`
	Card      *cardPayload    `json:"card,omitempty"`
}

type createResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Pix    *struct {
		QRCodeURL string `json:"qr_code_url"`
		Code      string `json:"code"`
	} `json:"pix,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type webhookPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func authHeader(cfg gateway.Config) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+cfg.SecretKey)
	h.Set("X-Public-Key", cfg.PublicKey)
	return h
}

// BuildDepositRequest implementation of interface gateway.Adapter
func (a *Adapter) BuildDepositRequest(cfg gateway.Config, tc gateway.TxContext) (*gateway.Request, error) {
	body := &createPayload{
		Reference: tc.TransactionID.String(),
		Amount:    tc.Amount,
		Method:    string(tc.Method),
	}

	switch tc.Method {
	case model.PaymentMethodPix, model.PaymentMethodCard:
	default:
		return nil, apperr.ErrUnsupportedPaymentMethod
	}

	return &gateway.Request{
		Method: http.MethodPost,
		URL:    cfg.Endpoint + "/v1/transactions",
		Header: authHeader(cfg),
		Body:   body,
	}, nil
}

// BuildWithdrawRequest implementation of interface gateway.Adapter
func (a *Adapter) BuildWithdrawRequest(cfg gateway.Config, tc gateway.TxContext) (*gateway.Request, error) {
	body := &createPayload{
		Reference: tc.TransactionID.String(),
		Amount:    tc.Amount,
		Method:    string(tc.Method),
	}

	switch tc.Method {
	case model.PaymentMethodPix:
		if tc.PixKey == "" {
			return nil, apperr.ErrInvalidInput
		}
		body.Pix = &pixPayload{Key: tc.PixKey}
	case model.PaymentMethodCard:
		if tc.CardNumber == "" || !luhn.Valid(tc.CardNumber) {
			return nil, apperr.ErrInvalidInput
		}
		body.Card = &cardPayload{Number: tc.CardNumber, Holder: tc.CardHolder}
	default:
		return nil, apperr.ErrUnsupportedPaymentMethod
	}

	return &gateway.Request{
		Method: http.MethodPost,
		URL:    cfg.Endpoint + "/v1/transfers",
		Header: authHeader(cfg),
		Body:   body,
	}, nil
}

// BuildStatusRequest implementation of interface gateway.Adapter
func (a *Adapter) BuildStatusRequest(cfg gateway.Config, tc gateway.TxContext) (*gateway.Request, error) {
	if tc.GatewayTransactionID == "" {
		return nil, apperr.ErrInvalidInput
	}

	return &gateway.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/transactions/%s", cfg.Endpoint, tc.GatewayTransactionID),
		Header: authHeader(cfg),
	}, nil
}

// ParseCreateResponse implementation of interface gateway.Adapter
func (a *Adapter) ParseCreateResponse(body []byte) (*gateway.CreateResult, error) {
	out := &createResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	if out.ID == "" {
		return nil, fmt.Errorf("provider response missing transaction id")
	}

	res := &gateway.CreateResult{
		GatewayTransactionID: out.ID,
		RedirectURL:          out.CheckoutURL,
		Raw:                  body,
	}
	if out.Pix != nil {
		res.QRCodeURL = out.Pix.QRCodeURL
		res.PixCode = out.Pix.Code
	}

	return res, nil
}

// ParseStatusResponse implementation of interface gateway.Adapter
func (a *Adapter) ParseStatusResponse(body []byte) (*gateway.StatusResult, error) {
	out := &statusResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	return &gateway.StatusResult{
		ProviderStatus: out.Status,
		Raw:            body,
	}, nil
}

// ParseWebhook implementation of interface gateway.Adapter
func (a *Adapter) ParseWebhook(payload []byte) (*gateway.WebhookEvent, error) {
	out := &webhookPayload{}
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	if out.ID == "" {
		return nil, apperr.ErrInvalidInput
	}

	return &gateway.WebhookEvent{
		GatewayTransactionID: out.ID,
		ProviderStatus:       out.Status,
	}, nil
}

// MapStatus implementation of interface gateway.Adapter
func (a *Adapter) MapStatus(providerStatus string) model.TransactionStatus {
	switch providerStatus {
	case "waiting_payment":
		return model.TransactionStatusPending
	case "processing":
		return model.TransactionStatusProcessing
	case "paid":
		return model.TransactionStatusCompleted
	case "refused":
		return model.TransactionStatusFailed
	case "canceled":
		return model.TransactionStatusCancelled
	}

	return model.TransactionStatusPending
}
