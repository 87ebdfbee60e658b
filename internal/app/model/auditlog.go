package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLevel string

const (
	AuditLevelInfo  AuditLevel = "info"
	AuditLevelWarn  AuditLevel = "warn"
	AuditLevelError AuditLevel = "error"
)

type AuditLog struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Level      AuditLevel      `json:"level"`
	Source     string          `json:"source"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	ResolverID *uuid.UUID      `json:"resolver_id,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}
