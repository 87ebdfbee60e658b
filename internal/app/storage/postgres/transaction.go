package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/logger"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/storage"
)

// storage.TransactionRepository interface implementation
var _ storage.TransactionRepository = (*TransactionRepository)(nil)

type TransactionRepository struct {
	db *sql.DB
}

func (r *TransactionRepository) LoggerComponent() string {
	return "TransactionRepository"
}

func NewTransactionRepository(db *sql.DB) (*TransactionRepository, error) {
	s := &TransactionRepository{
		db: db,
	}
	return s, nil
}

const transactionColumns = `id, created_at, updated_at, user_id, kind, amount, payment_method, gateway_id, coalesce(gateway_transaction_id, ''), status, details`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*model.Transaction, error) {
	m := &model.Transaction{}
	var details []byte
	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.UserID, &m.Kind, &m.Amount,
		&m.PaymentMethod, &m.GatewayID, &m.GatewayTransactionID, &m.Status, &details,
	)
	if err != nil {
		return nil, err
	}
	m.Details = details
	return m, nil
}

// TxCreate implementation of interface storage.TransactionRepository
func (r *TransactionRepository) TxCreate(ctx context.Context, tx *sql.Tx, m *model.Transaction) (*model.Transaction, error) {
	if !m.Amount.IsPositive() {
		return nil, apperr.ErrInvalidInput
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Status = model.TransactionStatusPending
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt

	const SQL = `
		INSERT INTO transactions (id, user_id, kind, amount, payment_method, gateway_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err := tx.ExecContext(ctx, SQL, m.ID, m.UserID, m.Kind, m.Amount, m.PaymentMethod, m.GatewayID, m.Status)
	if err != nil {
		if pgErr, ok := err.(*pg.Error); ok {
			if pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
				return nil, apperr.ErrConflict
			}
		}
		return nil, fmt.Errorf("insert: %w", err)
	}

	return m, nil
}

// Read implementation of interface storage.TransactionRepository
func (r *TransactionRepository) Read(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	SQL := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1`

	m, err := scanTransaction(r.db.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// TxReadForUpdate implementation of interface storage.TransactionRepository
func (r *TransactionRepository) TxReadForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Transaction, error) {
	SQL := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1 FOR UPDATE`

	m, err := scanTransaction(tx.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// TxReadByGatewayRefForUpdate implementation of interface storage.TransactionRepository
func (r *TransactionRepository) TxReadByGatewayRefForUpdate(ctx context.Context, tx *sql.Tx, gatewayID uuid.UUID, ref string) (*model.Transaction, error) {
	SQL := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_id=$1 AND gateway_transaction_id=$2 FOR UPDATE`

	m, err := scanTransaction(tx.QueryRowContext(ctx, SQL, gatewayID, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// TxSetGatewayRef implementation of interface storage.TransactionRepository
func (r *TransactionRepository) TxSetGatewayRef(ctx context.Context, tx *sql.Tx, id uuid.UUID, ref string, detail model.DetailEntry) error {
	if ref == "" {
		return apperr.ErrInvalidInput
	}

	entry, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("detail encode: %w", err)
	}

	// gateway_transaction_id is write-once
	const SQL = `
		UPDATE transactions
		SET gateway_transaction_id=$1, details=details || $2::jsonb, updated_at=now()
		WHERE id=$3 AND gateway_transaction_id IS NULL
`
	res, err := tx.ExecContext(ctx, SQL, ref, entry, id)
	if err != nil {
		if pgErr, ok := err.(*pg.Error); ok {
			if pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
				return apperr.ErrConflict
			}
		}
		return fmt.Errorf("update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrConflict
	}

	return nil
}

// TxUpdateStatus implementation of interface storage.TransactionRepository
func (r *TransactionRepository) TxUpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.TransactionStatus, detail model.DetailEntry) error {
	entry, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("detail encode: %w", err)
	}

	const SQL = `
		UPDATE transactions
		SET status=$1, details=details || $2::jsonb, updated_at=now()
		WHERE id=$3
`
	if _, err := tx.ExecContext(ctx, SQL, status, entry, id); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	return nil
}

// AllByUserID implementation of interface storage.TransactionRepository
func (r *TransactionRepository) AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error) {
	l := logger.Ctx(ctx).With().Str("method", "AllByUserID").Logger()

	SQL := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id=$1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, SQL, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Transaction, 0)

	for rows.Next() {
		m, err := scanTransaction(rows)
		if err != nil {
			l.Debug().Err(err).Send()
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}

// AllUnsettled implementation of interface storage.TransactionRepository
func (r *TransactionRepository) AllUnsettled(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error) {
	const SQL = `
		SELECT id
		FROM transactions
		WHERE status IN ('pending', 'processing')
		AND gateway_transaction_id IS NOT NULL
		AND updated_at < now() - $1::interval
		ORDER BY updated_at
		LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, SQL, olderThan.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]uuid.UUID, 0)

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}
