package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Gateway-facing failures.
	ErrGatewayInactive          = errors.New("gateway is inactive")
	ErrGatewayMisconfigured     = errors.New("gateway is misconfigured")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrGatewayCallFailed        = errors.New("gateway call failed")
	ErrInvalidSignature         = errors.New("invalid webhook signature")
)
