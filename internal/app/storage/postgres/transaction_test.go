package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
)

func newMockTx(t *testing.T) (*sql.Tx, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	mock.ExpectBegin()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	return tx, mock
}

func TestTxCreateRejectsNonPositiveAmount(t *testing.T) {
	tx, _ := newMockTx(t)
	r := &TransactionRepository{}

	_, err := r.TxCreate(context.Background(), tx, &model.Transaction{
		UserID: uuid.New(),
		Kind:   model.TransactionKindDeposit,
		Amount: decimal.Zero,
	})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestTxCreateAssignsIDAndPendingStatus(t *testing.T) {
	tx, mock := newMockTx(t)
	r := &TransactionRepository{}

	mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(0, 1))

	m, err := r.TxCreate(context.Background(), tx, &model.Transaction{
		UserID:        uuid.New(),
		Kind:          model.TransactionKindDeposit,
		Amount:        decimal.RequireFromString("10.00"),
		PaymentMethod: model.PaymentMethodPix,
		GatewayID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("TxCreate: %v", err)
	}

	if m.ID == uuid.Nil {
		t.Error("id not assigned")
	}
	if m.Status != model.TransactionStatusPending {
		t.Errorf("status = %q", m.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxSetGatewayRefIsWriteOnce(t *testing.T) {
	tx, mock := newMockTx(t)
	r := &TransactionRepository{}

	// Guarded update matches zero rows when the reference is already set.
	mock.ExpectExec("SET gateway_transaction_id").WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.TxSetGatewayRef(context.Background(), tx, uuid.New(), "pf-2", model.NewDetail("gateway_accepted", nil, ""))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxSetGatewayRefRejectsEmptyRef(t *testing.T) {
	tx, _ := newMockTx(t)
	r := &TransactionRepository{}

	err := r.TxSetGatewayRef(context.Background(), tx, uuid.New(), "", model.NewDetail("gateway_accepted", nil, ""))
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestReadMapsNoRowsToNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	r, _ := NewTransactionRepository(db)

	mock.ExpectQuery("FROM transactions").WillReturnError(sql.ErrNoRows)

	if _, err := r.Read(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
