// Package gateway defines the uniform adapter contract for external payment
// providers and the HTTP caller that executes the built requests. One Adapter
// exists per provider; the orchestrator selects it by the provider name stored
// on the gateway configuration row.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/model"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Config is the per-call provider configuration snapshot. It is read fresh
// from storage for every operation and must not be retained across calls.
type Config struct {
	Endpoint  string
	PublicKey string
	SecretKey string
}

// TxContext carries the transaction fields an adapter needs to shape a request.
type TxContext struct {
	TransactionID        uuid.UUID
	UserID               uuid.UUID
	Kind                 model.TransactionKind
	Amount               decimal.Decimal
	Method               model.PaymentMethod
	GatewayTransactionID string

	// Withdraw destinations, method dependent.
	PixKey     string
	CardNumber string
	CardHolder string
}

// Request is a provider HTTP call ready for execution by a Caller.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   interface{}
}

// CreateResult is the provider's acknowledgement of a new deposit or withdrawal.
type CreateResult struct {
	GatewayTransactionID string
	QRCodeURL            string
	PixCode              string
	RedirectURL          string
	Raw                  json.RawMessage
}

// StatusResult is the provider's view of a transaction, untranslated.
type StatusResult struct {
	ProviderStatus string
	Raw            json.RawMessage
}

// WebhookEvent is a parsed provider callback.
type WebhookEvent struct {
	GatewayTransactionID string
	ProviderStatus       string
}

type Adapter interface {
	Provider() string
	BuildDepositRequest(cfg Config, tc TxContext) (*Request, error)
	BuildWithdrawRequest(cfg Config, tc TxContext) (*Request, error)
	BuildStatusRequest(cfg Config, tc TxContext) (*Request, error)
	ParseCreateResponse(body []byte) (*CreateResult, error)
	ParseStatusResponse(body []byte) (*StatusResult, error)
	ParseWebhook(payload []byte) (*WebhookEvent, error)
	// MapStatus translates the provider status vocabulary into the internal
	// enum. Unknown values map to pending, never to a terminal state.
	MapStatus(providerStatus string) model.TransactionStatus
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

func (r *Registry) ByProvider(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownProvider, name)
	}
	return a, nil
}
