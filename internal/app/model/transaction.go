package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionKindDeposit  TransactionKind = "deposit"
	TransactionKindWithdraw TransactionKind = "withdraw"
)

type PaymentMethod string

const (
	PaymentMethodPix  PaymentMethod = "pix"
	PaymentMethodCard PaymentMethod = "card"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// IsTerminal reports whether no further status transition is permitted.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	UserID               uuid.UUID         `json:"-"`
	Kind                 TransactionKind   `json:"kind"`
	Amount               decimal.Decimal   `json:"amount"`
	PaymentMethod        PaymentMethod     `json:"payment_method"`
	GatewayID            uuid.UUID         `json:"gateway_id"`
	GatewayTransactionID string            `json:"gateway_transaction_id,omitempty"`
	Status               TransactionStatus `json:"status"`
	Details              json.RawMessage   `json:"-"`
}

// DetailEntry is one element of the transaction's append-only details trail.
type DetailEntry struct {
	At      time.Time       `json:"at"`
	Stage   string          `json:"stage"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Note    string          `json:"note,omitempty"`
}

// NewDetail builds a trail entry. Payloads must already be redacted by the caller.
func NewDetail(stage string, payload json.RawMessage, note string) DetailEntry {
	return DetailEntry{
		At:      time.Now().UTC(),
		Stage:   stage,
		Payload: payload,
		Note:    note,
	}
}
