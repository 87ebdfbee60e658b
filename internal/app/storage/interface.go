//go:generate mockgen -source=./interface.go -destination=./mock/storage.go -package=storagemock
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/model"
)

type UserRepository interface {
	// Create a new model.User
	Create(ctx context.Context, m *model.User) (*model.User, error)
	// ReadByNameAndPassword instance of model.User
	ReadByNameAndPassword(ctx context.Context, name string, password string) (*model.User, error)
	// Read instance of model.User
	Read(ctx context.Context, id uuid.UUID) (*model.User, error)
	// TxCredit adds amount to the user's balance within the tx, returns the new balance
	TxCredit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	// TxDebit subtracts amount from the user's balance within the tx after a
	// row-locked funds check, returns the new balance
	TxDebit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

type TransactionRepository interface {
	// TxCreate a new model.Transaction within the tx
	TxCreate(ctx context.Context, tx *sql.Tx, m *model.Transaction) (*model.Transaction, error)
	// Read instance of model.Transaction
	Read(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	// TxReadForUpdate reads the transaction holding a row lock until tx ends
	TxReadForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Transaction, error)
	// TxReadByGatewayRefForUpdate locates a transaction by its provider reference,
	// holding a row lock until tx ends
	TxReadByGatewayRefForUpdate(ctx context.Context, tx *sql.Tx, gatewayID uuid.UUID, ref string) (*model.Transaction, error)
	// TxSetGatewayRef records the provider's transaction id; the reference is
	// write-once and a second attempt fails with apperr.ErrConflict
	TxSetGatewayRef(ctx context.Context, tx *sql.Tx, id uuid.UUID, ref string, detail model.DetailEntry) error
	// TxUpdateStatus advances the status and appends a detail entry
	TxUpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.TransactionStatus, detail model.DetailEntry) error
	// AllByUserID returns all transactions of the user, newest first
	AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error)
	// AllUnsettled returns ids of non-terminal transactions older than the grace period
	AllUnsettled(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error)
}

type GatewayRepository interface {
	// Create a new model.Gateway, sealing its secret key at rest
	Create(ctx context.Context, m *model.Gateway) (*model.Gateway, error)
	// Read instance of model.Gateway with the secret key opened. Callers must
	// fetch immediately before use and never hold the result across a gateway call.
	Read(ctx context.Context, id uuid.UUID) (*model.Gateway, error)
	// AllActive lists active gateways without credential material
	AllActive(ctx context.Context) ([]*model.Gateway, error)
}

type AuditLogRepository interface {
	// Create a new model.AuditLog
	Create(ctx context.Context, m *model.AuditLog) error
	// Resolve marks the entry as manually triaged
	Resolve(ctx context.Context, id string, resolverID uuid.UUID, notes string) error
}
