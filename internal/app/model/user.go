package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User owns a single balance. The balance only ever changes together with a
// transaction settling, inside the same database transaction.
type User struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Password string          `json:"-"`
	Balance  decimal.Decimal `json:"balance"`
}
