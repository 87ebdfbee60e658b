package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/storage"
)

// storage.AuditLogRepository interface implementation
var _ storage.AuditLogRepository = (*AuditLogRepository)(nil)

type AuditLogRepository struct {
	db *sql.DB
}

func (r *AuditLogRepository) LoggerComponent() string {
	return "AuditLogRepository"
}

func NewAuditLogRepository(db *sql.DB) (*AuditLogRepository, error) {
	s := &AuditLogRepository{
		db: db,
	}
	return s, nil
}

// Create implementation of interface storage.AuditLogRepository
func (r *AuditLogRepository) Create(ctx context.Context, m *model.AuditLog) error {
	if m.ID == "" {
		m.ID = xid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	const SQL = `
		INSERT INTO audit_logs (id, created_at, level, source, message, details, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	var details interface{}
	if len(m.Details) > 0 {
		details = []byte(m.Details)
	}

	_, err := r.db.ExecContext(ctx, SQL, m.ID, m.CreatedAt, m.Level, m.Source, m.Message, details, m.UserID)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

// Resolve implementation of interface storage.AuditLogRepository
func (r *AuditLogRepository) Resolve(ctx context.Context, id string, resolverID uuid.UUID, notes string) error {
	const SQL = `
		UPDATE audit_logs
		SET resolved_at=now(), resolver_id=$1, notes=$2
		WHERE id=$3 AND resolved_at IS NULL
`
	res, err := r.db.ExecContext(ctx, SQL, resolverID, notes, id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}

	return nil
}
