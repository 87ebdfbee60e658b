package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/secrets"
	"scratchpay/internal/app/storage"
)

// storage.GatewayRepository interface implementation
var _ storage.GatewayRepository = (*GatewayRepository)(nil)

// GatewayRepository seals secret keys on write and opens them on read. The
// sealed form never leaves this package.
type GatewayRepository struct {
	db  *sql.DB
	box *secrets.Box
}

func (r *GatewayRepository) LoggerComponent() string {
	return "GatewayRepository"
}

func NewGatewayRepository(db *sql.DB, box *secrets.Box) (*GatewayRepository, error) {
	s := &GatewayRepository{
		db:  db,
		box: box,
	}
	return s, nil
}

// Create implementation of interface storage.GatewayRepository
func (r *GatewayRepository) Create(ctx context.Context, m *model.Gateway) (*model.Gateway, error) {
	if m.APIEndpoint == "" || m.SecretKey == "" {
		return nil, apperr.ErrInvalidInput
	}

	sealed, err := r.box.Seal(m.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("seal secret: %w", err)
	}

	const SQL = `
		INSERT INTO gateways (name, provider, is_active, api_endpoint, public_key, secret_key, for_deposit, for_withdraw, allow_pix, allow_card)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
`
	err = r.db.QueryRowContext(ctx, SQL,
		m.Name, m.Provider, m.IsActive, m.APIEndpoint, m.PublicKey, sealed,
		m.ForDeposit, m.ForWithdraw, m.AllowPix, m.AllowCard,
	).Scan(&m.ID)
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

// Read implementation of interface storage.GatewayRepository
func (r *GatewayRepository) Read(ctx context.Context, id uuid.UUID) (*model.Gateway, error) {
	const SQL = `
		SELECT id, created_at, name, provider, is_active, api_endpoint, public_key, secret_key, for_deposit, for_withdraw, allow_pix, allow_card
		FROM gateways
		WHERE id=$1
`
	m := &model.Gateway{}
	var sealed string

	err := r.db.QueryRowContext(ctx, SQL, id).Scan(
		&m.ID, &m.CreatedAt, &m.Name, &m.Provider, &m.IsActive, &m.APIEndpoint,
		&m.PublicKey, &sealed, &m.ForDeposit, &m.ForWithdraw, &m.AllowPix, &m.AllowCard,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	m.SecretKey, err = r.box.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open secret: %w", err)
	}

	return m, nil
}

// AllActive implementation of interface storage.GatewayRepository
func (r *GatewayRepository) AllActive(ctx context.Context) ([]*model.Gateway, error) {
	const SQL = `
		SELECT id, created_at, name, provider, is_active, api_endpoint, for_deposit, for_withdraw, allow_pix, allow_card
		FROM gateways
		WHERE is_active
		ORDER BY name
`
	rows, err := r.db.QueryContext(ctx, SQL)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Gateway, 0)

	for rows.Next() {
		m := &model.Gateway{}
		err := rows.Scan(
			&m.ID, &m.CreatedAt, &m.Name, &m.Provider, &m.IsActive, &m.APIEndpoint,
			&m.ForDeposit, &m.ForWithdraw, &m.AllowPix, &m.AllowCard,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}
