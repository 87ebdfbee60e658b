// Package zenvia adapts the Zenvia Pay provider API. Zenvia reports numeric
// status codes and only handles pix.
package zenvia

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
	"scratchpay/pkg/gateway"
)

// gateway.Adapter interface implementation
var _ gateway.Adapter = (*Adapter)(nil)

// Zenvia status codes.
const (
	codeCreated    = 1
	codeProcessing = 2
	codeSettled    = 3
	codeRejected   = 4
	codeReversed   = 5
)

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Provider() string {
	return "zenvia"
}

type chargePayload struct {
	ExternalRef string          `json:"external_ref"`
	Value       decimal.Decimal `json:"value"`
	PixKey      string          `json:"pix_key,omitempty"`
}

type chargeResponse struct {
	ChargeID string `json:"charge_id"`
	Status   int    `json:"status"`
	EmvCode  string `json:"emv_code,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type webhookPayload struct {
	ChargeID string `json:"charge_id"`
	Status   int    `json:"status"`
}

func authHeader(cfg gateway.Config) http.Header {
	h := http.Header{}
	h.Set("X-Api-Key", cfg.PublicKey)
	h.Set("X-Api-Secret", cfg.SecretKey)
	return h
}

// BuildDepositRequest implementation of interface gateway.Adapter
func (a *Adapter) BuildDepositRequest(cfg gateway.Config, tc gateway.TxContext) (*gateway.Request, error) {
	if tc.Method != model.PaymentMethodPix {
		return nil, apperr.ErrUnsupportedPaymentMethod
	}

	return &gateway.Request{
		Method: http.MethodPost,
		URL:    cfg.Endpoint + "/api/v2/charges",
		Header: authHeader(cfg),
		Body: &chargePayload{
			ExternalRef: tc.TransactionID.String(),
			Value:       tc.Amount,
		},
	}, nil
}

// BuildWithdrawRequest implementation of interface gateway.Adapter
func (a *Adapter) BuildWithdrawRequest(cfg gateway.Config, tc gateway.TxContext) (*gateway.Request, error) {
	if tc.Method != model.PaymentMethodPix {
		return nil, apperr.ErrUnsupportedPaymentMethod
	}
	if tc.PixKey == "" {
		return nil, apperr.ErrInvalidInput
	}

	return &gateway.Request{
		Method: http.MethodPost,
		URL:    cfg.Endpoint + "/api/v2/payouts",
		Header: authHeader(cfg),
		Body: &chargePayload{
			ExternalRef: tc.TransactionID.String(),
			Value:       tc.Amount,
			PixKey:      tc.PixKey,
		},
	}, nil
}

// BuildStatusRequest implementation of interface gateway.Adapter
func (a *Adapter) BuildStatusRequest(cfg gateway.Config, tc gateway.TxContext) (*gateway.Request, error) {
	if tc.GatewayTransactionID == "" {
		return nil, apperr.ErrInvalidInput
	}

	return &gateway.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/api/v2/charges/%s", cfg.Endpoint, tc.GatewayTransactionID),
		Header: authHeader(cfg),
	}, nil
}

// ParseCreateResponse implementation of interface gateway.Adapter
func (a *Adapter) ParseCreateResponse(body []byte) (*gateway.CreateResult, error) {
	out := &chargeResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	if out.ChargeID == "" {
		return nil, fmt.Errorf("provider response missing charge id")
	}

	return &gateway.CreateResult{
		GatewayTransactionID: out.ChargeID,
		QRCodeURL:            out.ImageURL,
		PixCode:              out.EmvCode,
		Raw:                  body,
	}, nil
}

// ParseStatusResponse implementation of interface gateway.Adapter
func (a *Adapter) ParseStatusResponse(body []byte) (*gateway.StatusResult, error) {
	out := &chargeResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	return &gateway.StatusResult{
		ProviderStatus: strconv.Itoa(out.Status),
		Raw:            body,
	}, nil
}

// ParseWebhook implementation of interface gateway.Adapter
func (a *Adapter) ParseWebhook(payload []byte) (*gateway.WebhookEvent, error) {
	out := &webhookPayload{}
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	if out.ChargeID == "" {
		return nil, apperr.ErrInvalidInput
	}

	return &gateway.WebhookEvent{
		GatewayTransactionID: out.ChargeID,
		ProviderStatus:       strconv.Itoa(out.Status),
	}, nil
}

// MapStatus implementation of interface gateway.Adapter
func (a *Adapter) MapStatus(providerStatus string) model.TransactionStatus {
	code, err := strconv.Atoi(providerStatus)
	if err != nil {
		return model.TransactionStatusPending
	}

	switch code {
	case codeCreated:
		return model.TransactionStatusPending
	case codeProcessing:
		return model.TransactionStatusProcessing
	case codeSettled:
		return model.TransactionStatusCompleted
	case codeRejected:
		return model.TransactionStatusFailed
	case codeReversed:
		return model.TransactionStatusCancelled
	}

	return model.TransactionStatusPending
}
