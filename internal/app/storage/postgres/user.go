package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/storage"
)

// storage.UserRepository interface implementation
var _ storage.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	db *sql.DB
}

func (r *UserRepository) LoggerComponent() string {
	return "UserRepository"
}

func NewUserRepository(db *sql.DB) (*UserRepository, error) {
	s := &UserRepository{
		db: db,
	}
	return s, nil
}

// Create implementation of interface storage.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	const SQL = `
		INSERT INTO users (name, password)
		VALUES ($1, crypt($2, gen_salt('bf')))
		RETURNING id
`

	err := r.db.QueryRowContext(ctx, SQL, user.Name, user.Password).Scan(&user.ID)
	if err != nil {
		if pgErr, ok := err.(*pg.Error); ok {
			if pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
				return nil, apperr.ErrConflict
			}
		}

		return nil, fmt.Errorf("insert: %w", err)
	}

	return user, nil
}

// Read implementation of interface storage.UserRepository
func (r *UserRepository) Read(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const SQL = `
		SELECT id, name, balance
		FROM users
		WHERE id=$1
`
	user := &model.User{}

	err := r.db.QueryRowContext(ctx, SQL, id).Scan(&user.ID, &user.Name, &user.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return user, nil
}

// ReadByNameAndPassword implementation of interface storage.UserRepository
func (r *UserRepository) ReadByNameAndPassword(ctx context.Context, name string, password string) (*model.User, error) {
	const SQL = `
		SELECT id, name, balance
		FROM users
		WHERE name = $1
		AND password = crypt($2, password)
`
	user := &model.User{}

	err := r.db.QueryRowContext(ctx, SQL, name, password).Scan(&user.ID, &user.Name, &user.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return user, nil
}

// TxCredit implementation of interface storage.UserRepository
func (r *UserRepository) TxCredit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	const SQL = `UPDATE users SET balance=balance+$1 WHERE id=$2 RETURNING balance`

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, SQL, amount, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, apperr.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("credit: %w", err)
	}

	return balance, nil
}

// TxDebit implementation of interface storage.UserRepository
func (r *UserRepository) TxDebit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	const sqlLock = `SELECT balance FROM users WHERE id=$1 FOR UPDATE`

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, sqlLock, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, apperr.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("lock: %w", err)
	}

	if balance.LessThan(amount) {
		return decimal.Zero, apperr.ErrInsufficientFunds
	}

	const sqlDebit = `UPDATE users SET balance=balance-$1 WHERE id=$2 RETURNING balance`
	if err := tx.QueryRowContext(ctx, sqlDebit, amount, userID).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("debit: %w", err)
	}

	return balance, nil
}
