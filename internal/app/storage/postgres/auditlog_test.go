package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
)

func TestAuditLogCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	r, _ := NewAuditLogRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	m := &model.AuditLog{
		Level:   model.AuditLevelWarn,
		Source:  "orchestrator",
		Message: "webhook signature mismatch",
	}
	if err := r.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.ID == "" {
		t.Error("id not assigned")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditLogResolveOnlyOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	r, _ := NewAuditLogRepository(db)

	// Guarded update matches zero rows when the entry is already resolved.
	mock.ExpectExec("SET resolved_at").WillReturnResult(sqlmock.NewResult(0, 0))

	err = r.Resolve(context.Background(), "c6gq0vk4rbkc739ao9og", uuid.New(), "triaged")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
