package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
)

func TestTxDebitInsufficientFunds(t *testing.T) {
	tx, mock := newMockTx(t)
	r := &UserRepository{}

	mock.ExpectQuery(`SELECT balance FROM users WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("80.00"))

	_, err := r.TxDebit(context.Background(), tx, uuid.New(), decimal.RequireFromString("100.00"))
	if !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// The debit update must never run after a failed funds check.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxDebitReturnsNewBalance(t *testing.T) {
	tx, mock := newMockTx(t)
	r := &UserRepository{}

	mock.ExpectQuery(`SELECT balance FROM users WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("200.00"))
	mock.ExpectQuery(`UPDATE users SET balance=balance-\$1`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("150.00"))

	got, err := r.TxDebit(context.Background(), tx, uuid.New(), decimal.RequireFromString("50.00"))
	if err != nil {
		t.Fatalf("TxDebit: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("balance = %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxDebitAllowsExactBalance(t *testing.T) {
	tx, mock := newMockTx(t)
	r := &UserRepository{}

	mock.ExpectQuery(`SELECT balance FROM users WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100.00"))
	mock.ExpectQuery(`UPDATE users SET balance=balance-\$1`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("0.00"))

	got, err := r.TxDebit(context.Background(), tx, uuid.New(), decimal.RequireFromString("100.00"))
	if err != nil {
		t.Fatalf("TxDebit: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("balance = %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxCreditReturnsNewBalance(t *testing.T) {
	tx, mock := newMockTx(t)
	r := &UserRepository{}

	mock.ExpectQuery(`UPDATE users SET balance=balance\+\$1`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("150.00"))

	got, err := r.TxCredit(context.Background(), tx, uuid.New(), decimal.RequireFromString("50.00"))
	if err != nil {
		t.Fatalf("TxCredit: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("balance = %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
