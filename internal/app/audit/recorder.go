// Package audit is the append-only operational log. Recording is
// fire-and-forget: a failure to persist an entry is itself logged but never
// propagated, so it cannot abort the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"scratchpay/internal/app/logger"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/storage"
)

type Recorder struct {
	logs    storage.AuditLogRepository
	timeout time.Duration
}

func (r *Recorder) LoggerComponent() string {
	return "Audit.Recorder"
}

func NewRecorder(logs storage.AuditLogRepository) *Recorder {
	return &Recorder{
		logs:    logs,
		timeout: 5 * time.Second,
	}
}

// Record persists an audit entry. Errors are swallowed after logging.
func (r *Recorder) Record(ctx context.Context, level model.AuditLevel, source, message string, details json.RawMessage, userID *uuid.UUID) {
	l := logger.Get(ctx, r)

	// Detached from the request context so a cancelled request still leaves a trail.
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	m := &model.AuditLog{
		Level:   level,
		Source:  source,
		Message: message,
		Details: details,
		UserID:  userID,
	}

	if err := r.logs.Create(ctx, m); err != nil {
		l.Error().Err(err).
			Str("source", source).
			Str("audit_message", message).
			Msg("Audit record failed")
	}
}

// Resolve marks an entry as manually triaged.
func (r *Recorder) Resolve(ctx context.Context, id string, resolverID uuid.UUID, notes string) error {
	return r.logs.Resolve(ctx, id, resolverID, notes)
}

// Detail marshals a details map, returning nil on failure so recording can proceed.
func Detail(v map[string]interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
