package model

import (
	"time"

	"github.com/google/uuid"
)

// Gateway is one configured external payment provider. SecretKey is sealed at
// rest; the storage layer opens it on read, and it must never be serialized
// back to a caller.
type Gateway struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"`
	IsActive    bool      `json:"is_active"`
	APIEndpoint string    `json:"api_endpoint"`
	PublicKey   string    `json:"-"`
	SecretKey   string    `json:"-"`
	ForDeposit  bool      `json:"for_deposit"`
	ForWithdraw bool      `json:"for_withdraw"`
	AllowPix    bool      `json:"allow_pix"`
	AllowCard   bool      `json:"allow_card"`
}

// Allows reports whether the gateway configuration permits the payment method.
func (g *Gateway) Allows(m PaymentMethod) bool {
	switch m {
	case PaymentMethodPix:
		return g.AllowPix
	case PaymentMethodCard:
		return g.AllowCard
	}
	return false
}

// Supports reports whether the gateway configuration permits the transaction kind.
func (g *Gateway) Supports(k TransactionKind) bool {
	switch k {
	case TransactionKindDeposit:
		return g.ForDeposit
	case TransactionKindWithdraw:
		return g.ForWithdraw
	}
	return false
}
