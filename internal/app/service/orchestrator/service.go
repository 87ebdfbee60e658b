// Package orchestrator drives the payment transaction lifecycle: creation
// against an external gateway, status reconciliation via polling and webhooks,
// and the exactly-once balance mutation tied to each transaction.
//
// Every state mutation runs inside one serializable database transaction with
// the affected rows locked, so racing status checks and duplicate webhook
// deliveries observe an already-settled row and no-op.
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/audit"
	"scratchpay/internal/app/logger"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/storage"
	"scratchpay/pkg/gateway"
)

type Service struct {
	db           *sql.DB
	users        storage.UserRepository
	transactions storage.TransactionRepository
	gateways     storage.GatewayRepository
	registry     *gateway.Registry
	caller       gateway.Caller
	audit        *audit.Recorder
}

func (s *Service) LoggerComponent() string {
	return "Orchestrator.Service"
}

func New(
	db *sql.DB,
	users storage.UserRepository,
	transactions storage.TransactionRepository,
	gateways storage.GatewayRepository,
	registry *gateway.Registry,
	caller gateway.Caller,
	rec *audit.Recorder,
) *Service {
	return &Service{
		db:           db,
		users:        users,
		transactions: transactions,
		gateways:     gateways,
		registry:     registry,
		caller:       caller,
		audit:        rec,
	}
}

type DepositInput struct {
	Amount    decimal.Decimal
	Method    model.PaymentMethod
	GatewayID uuid.UUID
}

type WithdrawInput struct {
	Amount    decimal.Decimal
	Method    model.PaymentMethod
	GatewayID uuid.UUID

	PixKey     string
	CardNumber string
	CardHolder string
}

// prepare re-reads the gateway configuration from storage and validates it
// against the requested operation. Configuration is never cached: key rotation
// must take effect on the very next transaction.
func (s *Service) prepare(ctx context.Context, kind model.TransactionKind, method model.PaymentMethod, gatewayID uuid.UUID) (*model.Gateway, gateway.Adapter, error) {
	g, err := s.gateways.Read(ctx, gatewayID)
	if err != nil {
		return nil, nil, err
	}

	if !g.IsActive {
		return nil, nil, apperr.ErrGatewayInactive
	}
	if g.APIEndpoint == "" || g.SecretKey == "" {
		return nil, nil, apperr.ErrGatewayMisconfigured
	}
	if !g.Supports(kind) || !g.Allows(method) {
		return nil, nil, apperr.ErrUnsupportedPaymentMethod
	}

	adapter, err := s.registry.ByProvider(g.Provider)
	if err != nil {
		return nil, nil, apperr.ErrGatewayMisconfigured
	}

	return g, adapter, nil
}

func gatewayConfig(g *model.Gateway) gateway.Config {
	return gateway.Config{
		Endpoint:  g.APIEndpoint,
		PublicKey: g.PublicKey,
		SecretKey: g.SecretKey,
	}
}

func requestDetail(req *gateway.Request) json.RawMessage {
	// URL and method only; headers carry credentials and stay out of the trail.
	return audit.Detail(map[string]interface{}{
		"http_method": req.Method,
		"url":         req.URL,
	})
}

// CreateDeposit opens the local transaction, places the deposit with the
// provider and commits insert plus gateway reference together. A failed
// provider call rolls everything back so no dangling pending row survives.
func (s *Service) CreateDeposit(ctx context.Context, userID uuid.UUID, in DepositInput) (*model.Transaction, *gateway.CreateResult, error) {
	l := logger.Get(ctx, s).With().
		Str("method", "CreateDeposit").
		Str("user_id", userID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	if !in.Amount.IsPositive() {
		return nil, nil, apperr.ErrInvalidInput
	}

	g, adapter, err := s.prepare(ctx, model.TransactionKindDeposit, in.Method, in.GatewayID)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, fmt.Errorf("tx begin: %w", err)
	}

	m, err := s.transactions.TxCreate(ctx, tx, &model.Transaction{
		UserID:        userID,
		Kind:          model.TransactionKindDeposit,
		Amount:        in.Amount,
		PaymentMethod: in.Method,
		GatewayID:     g.ID,
	})
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("tx create: %w", err)
	}

	res, err := s.placeWithProvider(ctx, tx, adapter, g, m, gateway.TxContext{
		TransactionID: m.ID,
		UserID:        userID,
		Kind:          m.Kind,
		Amount:        m.Amount,
		Method:        m.PaymentMethod,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("tx commit: %w", err)
	}

	m.GatewayTransactionID = res.GatewayTransactionID

	s.audit.Record(ctx, model.AuditLevelInfo, "orchestrator", "deposit created",
		audit.Detail(map[string]interface{}{
			"transaction_id": m.ID.String(),
			"gateway_ref":    res.GatewayTransactionID,
			"amount":         m.Amount.String(),
		}), &userID)

	return m, res, nil
}

// CreateWithdraw debits the balance, inserts the transaction and places the
// payout with the provider, all in one durable transaction. The row-locked
// funds check makes two racing withdrawals serialize; the loser sees the
// reduced balance and fails with ErrInsufficientFunds.
func (s *Service) CreateWithdraw(ctx context.Context, userID uuid.UUID, in WithdrawInput) (*model.Transaction, decimal.Decimal, error) {
	l := logger.Get(ctx, s).With().
		Str("method", "CreateWithdraw").
		Str("user_id", userID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	if !in.Amount.IsPositive() {
		return nil, decimal.Zero, apperr.ErrInvalidInput
	}

	g, adapter, err := s.prepare(ctx, model.TransactionKindWithdraw, in.Method, in.GatewayID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("tx begin: %w", err)
	}

	newBalance, err := s.users.TxDebit(ctx, tx, userID, in.Amount)
	if err != nil {
		_ = tx.Rollback()
		return nil, decimal.Zero, err
	}

	m, err := s.transactions.TxCreate(ctx, tx, &model.Transaction{
		UserID:        userID,
		Kind:          model.TransactionKindWithdraw,
		Amount:        in.Amount,
		PaymentMethod: in.Method,
		GatewayID:     g.ID,
	})
	if err != nil {
		_ = tx.Rollback()
		return nil, decimal.Zero, fmt.Errorf("tx create: %w", err)
	}

	res, err := s.placeWithProvider(ctx, tx, adapter, g, m, gateway.TxContext{
		TransactionID: m.ID,
		UserID:        userID,
		Kind:          m.Kind,
		Amount:        m.Amount,
		Method:        m.PaymentMethod,
		PixKey:        in.PixKey,
		CardNumber:    in.CardNumber,
		CardHolder:    in.CardHolder,
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("tx commit: %w", err)
	}

	m.GatewayTransactionID = res.GatewayTransactionID

	s.audit.Record(ctx, model.AuditLevelInfo, "orchestrator", "withdraw created",
		audit.Detail(map[string]interface{}{
			"transaction_id": m.ID.String(),
			"gateway_ref":    m.GatewayTransactionID,
			"amount":         m.Amount.String(),
		}), &userID)

	return m, newBalance, nil
}

// placeWithProvider builds and executes the provider call for a freshly
// inserted transaction and records the gateway reference. On any failure the
// whole tx is rolled back.
func (s *Service) placeWithProvider(ctx context.Context, tx *sql.Tx, adapter gateway.Adapter, g *model.Gateway, m *model.Transaction, tc gateway.TxContext) (*gateway.CreateResult, error) {
	l := logger.Ctx(ctx)

	var (
		req *gateway.Request
		err error
	)
	if m.Kind == model.TransactionKindDeposit {
		req, err = adapter.BuildDepositRequest(gatewayConfig(g), tc)
	} else {
		req, err = adapter.BuildWithdrawRequest(gatewayConfig(g), tc)
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	body, err := s.caller.Do(ctx, req)
	if err != nil {
		_ = tx.Rollback()
		l.Error().Err(err).Msg("Gateway call failed")
		s.audit.Record(ctx, model.AuditLevelError, "orchestrator", "gateway call failed",
			audit.Detail(map[string]interface{}{
				"transaction_id": m.ID.String(),
				"gateway_id":     g.ID.String(),
				"url":            req.URL,
				"error":          err.Error(),
			}), &m.UserID)
		return nil, fmt.Errorf("%w: %s", apperr.ErrGatewayCallFailed, err)
	}

	res, err := adapter.ParseCreateResponse(body)
	if err != nil {
		_ = tx.Rollback()
		l.Error().Err(err).Msg("Gateway response malformed")
		s.audit.Record(ctx, model.AuditLevelError, "orchestrator", "gateway response malformed",
			audit.Detail(map[string]interface{}{
				"transaction_id": m.ID.String(),
				"gateway_id":     g.ID.String(),
				"error":          err.Error(),
			}), &m.UserID)
		return nil, fmt.Errorf("%w: %s", apperr.ErrGatewayCallFailed, err)
	}

	detail := model.NewDetail("gateway_accepted", res.Raw, req.Method+" "+req.URL)
	if err := s.transactions.TxSetGatewayRef(ctx, tx, m.ID, res.GatewayTransactionID, detail); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("set gateway ref: %w", err)
	}

	return res, nil
}

// CheckStatus reconciles one transaction with the provider. Terminal
// transactions are returned unchanged without a network call. A failed
// provider query is not an error to the caller: the last known status is
// returned and the failure audited.
func (s *Service) CheckStatus(ctx context.Context, transactionID uuid.UUID) (*model.Transaction, error) {
	l := logger.Get(ctx, s).With().
		Str("method", "CheckStatus").
		Str("transaction_id", transactionID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	m, err := s.transactions.Read(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if m.Status.IsTerminal() {
		return m, nil
	}

	if m.GatewayTransactionID == "" {
		// Never acknowledged by the provider; nothing to reconcile against.
		return m, nil
	}

	g, adapter, err := s.loadForStatus(ctx, m)
	if err != nil {
		s.recordStatusDegradation(ctx, m, err)
		return m, nil
	}

	req, err := adapter.BuildStatusRequest(gatewayConfig(g), gateway.TxContext{
		TransactionID:        m.ID,
		GatewayTransactionID: m.GatewayTransactionID,
	})
	if err != nil {
		s.recordStatusDegradation(ctx, m, err)
		return m, nil
	}

	body, err := s.caller.Do(ctx, req)
	if err != nil {
		s.recordStatusDegradation(ctx, m, err)
		return m, nil
	}

	st, err := adapter.ParseStatusResponse(body)
	if err != nil {
		s.recordStatusDegradation(ctx, m, err)
		return m, nil
	}

	mapped := adapter.MapStatus(st.ProviderStatus)

	return s.settleByID(ctx, m.ID, mapped, model.NewDetail("status_check", st.Raw, st.ProviderStatus))
}

// loadForStatus re-reads the gateway configuration for a status query.
func (s *Service) loadForStatus(ctx context.Context, m *model.Transaction) (*model.Gateway, gateway.Adapter, error) {
	g, err := s.gateways.Read(ctx, m.GatewayID)
	if err != nil {
		return nil, nil, err
	}
	if g.APIEndpoint == "" || g.SecretKey == "" {
		return nil, nil, apperr.ErrGatewayMisconfigured
	}

	adapter, err := s.registry.ByProvider(g.Provider)
	if err != nil {
		return nil, nil, apperr.ErrGatewayMisconfigured
	}

	return g, adapter, nil
}

func (s *Service) recordStatusDegradation(ctx context.Context, m *model.Transaction, err error) {
	l := logger.Ctx(ctx)
	l.Warn().Err(err).Msg("Status check degraded to last known status")
	s.audit.Record(ctx, model.AuditLevelWarn, "orchestrator", "status check failed",
		audit.Detail(map[string]interface{}{
			"transaction_id": m.ID.String(),
			"error":          err.Error(),
		}), &m.UserID)
}

// IngestWebhook authenticates and applies a provider-initiated status change.
// The signature is verified before the payload is even parsed; verification
// fails closed. An unknown gateway reference is surfaced, never swallowed.
func (s *Service) IngestWebhook(ctx context.Context, gatewayID uuid.UUID, payload []byte, signature string) (*model.Transaction, error) {
	l := logger.Get(ctx, s).With().
		Str("method", "IngestWebhook").
		Str("gateway_id", gatewayID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	g, err := s.gateways.Read(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	if !gateway.VerifySignature(g.SecretKey, payload, signature) {
		l.Warn().Msg("Webhook signature mismatch")
		s.audit.Record(ctx, model.AuditLevelWarn, "orchestrator", "webhook signature mismatch",
			audit.Detail(map[string]interface{}{
				"gateway_id": gatewayID.String(),
			}), nil)
		return nil, apperr.ErrInvalidSignature
	}

	adapter, err := s.registry.ByProvider(g.Provider)
	if err != nil {
		return nil, apperr.ErrGatewayMisconfigured
	}

	ev, err := adapter.ParseWebhook(payload)
	if err != nil {
		return nil, apperr.ErrInvalidInput
	}

	mapped := adapter.MapStatus(ev.ProviderStatus)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	m, err := s.transactions.TxReadByGatewayRefForUpdate(ctx, tx, gatewayID, ev.GatewayTransactionID)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, apperr.ErrNotFound) {
			s.audit.Record(ctx, model.AuditLevelError, "orchestrator", "webhook for unknown transaction",
				audit.Detail(map[string]interface{}{
					"gateway_id":  gatewayID.String(),
					"gateway_ref": ev.GatewayTransactionID,
				}), nil)
		}
		return nil, err
	}

	detail := model.NewDetail("webhook", json.RawMessage(payload), ev.ProviderStatus)

	return s.settleLocked(ctx, tx, m, mapped, detail)
}

// ListByUser returns the caller's transactions.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error) {
	return s.transactions.AllByUserID(ctx, userID)
}

// Read returns one transaction without contacting the provider.
func (s *Service) Read(ctx context.Context, transactionID uuid.UUID) (*model.Transaction, error) {
	return s.transactions.Read(ctx, transactionID)
}

func statusRank(st model.TransactionStatus) int {
	switch {
	case st.IsTerminal():
		return 2
	case st == model.TransactionStatusProcessing:
		return 1
	}
	return 0
}

// settleByID locks the row and applies the transition.
func (s *Service) settleByID(ctx context.Context, id uuid.UUID, newStatus model.TransactionStatus, detail model.DetailEntry) (*model.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	m, err := s.transactions.TxReadForUpdate(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	return s.settleLocked(ctx, tx, m, newStatus, detail)
}

// settleLocked applies a status transition to a row-locked transaction and,
// together with it, the balance mutation the transition implies:
//
//   - deposit reaching completed credits the user, exactly once;
//   - withdraw reaching failed or cancelled refunds the creation-time debit.
//
// The terminal re-check under the row lock is what makes duplicate webhooks
// and racing status checks idempotent: the second racer observes the settled
// status here and commits nothing.
func (s *Service) settleLocked(ctx context.Context, tx *sql.Tx, m *model.Transaction, newStatus model.TransactionStatus, detail model.DetailEntry) (*model.Transaction, error) {
	l := logger.Ctx(ctx)

	if m.Status.IsTerminal() || statusRank(newStatus) <= statusRank(m.Status) {
		_ = tx.Rollback()
		return m, nil
	}

	if err := s.transactions.TxUpdateStatus(ctx, tx, m.ID, newStatus, detail); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	credit := decimal.Zero
	switch {
	case newStatus == model.TransactionStatusCompleted && m.Kind == model.TransactionKindDeposit:
		credit = m.Amount
	case (newStatus == model.TransactionStatusFailed || newStatus == model.TransactionStatusCancelled) && m.Kind == model.TransactionKindWithdraw:
		credit = m.Amount
	}

	if credit.IsPositive() {
		if _, err := s.users.TxCredit(ctx, tx, m.UserID, credit); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	l.Info().
		Str("transaction_id", m.ID.String()).
		Str("from", string(m.Status)).
		Str("to", string(newStatus)).
		Msg("Transaction settled")

	s.audit.Record(ctx, model.AuditLevelInfo, "orchestrator", "transaction settled",
		audit.Detail(map[string]interface{}{
			"transaction_id": m.ID.String(),
			"from":           string(m.Status),
			"to":             string(newStatus),
			"credited":       credit.String(),
		}), &m.UserID)

	m.Status = newStatus

	return m, nil
}
