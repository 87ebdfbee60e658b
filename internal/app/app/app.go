package app

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/go-redis/redis/v8"

	"scratchpay/internal/app/audit"
	"scratchpay/internal/app/config"
	"scratchpay/internal/app/logger"
	"scratchpay/internal/app/secrets"
	"scratchpay/internal/app/service/orchestrator"
	"scratchpay/internal/app/service/poller"
	"scratchpay/internal/app/session"
	"scratchpay/internal/app/storage"
	"scratchpay/internal/app/storage/postgres"
	"scratchpay/pkg/gateway"
	"scratchpay/pkg/gateway/pagfast"
	"scratchpay/pkg/gateway/zenvia"
)

type App struct {
	config       config.Config
	logger       logger.Logger
	users        storage.UserRepository
	transactions storage.TransactionRepository
	gateways     storage.GatewayRepository
	orchestrator *orchestrator.Service
	poller       *poller.Service
	session      session.Manager
	stopCh       chan struct{}
}

func New(cfg config.Config, logger logger.Logger, e embed.FS) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := applyMigrations(e, db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	box, err := secrets.NewBox(cfg.SealKey)
	if err != nil {
		return nil, fmt.Errorf("secrets box init: %w", err)
	}

	users, err := postgres.NewUserRepository(db)
	if err != nil {
		return nil, fmt.Errorf("user repository init: %w", err)
	}

	transactions, err := postgres.NewTransactionRepository(db)
	if err != nil {
		return nil, fmt.Errorf("transaction repository init: %w", err)
	}

	gateways, err := postgres.NewGatewayRepository(db, box)
	if err != nil {
		return nil, fmt.Errorf("gateway repository init: %w", err)
	}

	auditLogs, err := postgres.NewAuditLogRepository(db)
	if err != nil {
		return nil, fmt.Errorf("audit log repository init: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	registry := gateway.NewRegistry(
		pagfast.New(),
		zenvia.New(),
	)

	caller := gateway.NewClient(cfg.Gateway.CallTimeout, gateway.WithLogger(logger.Logger))

	orch := orchestrator.New(db, users, transactions, gateways, registry, caller, audit.NewRecorder(auditLogs))

	a := &App{
		config:       cfg,
		logger:       logger,
		stopCh:       make(chan struct{}),
		users:        users,
		transactions: transactions,
		gateways:     gateways,
		orchestrator: orch,
		session:      session.NewRedis(cfg.SecretKey, users, rdb),
	}

	if cfg.Poller.Enabled {
		a.poller = poller.New(transactions, orch, cfg.Poller.Workers,
			poller.WithInterval(cfg.Poller.Interval),
			poller.WithGrace(cfg.Poller.Grace),
		)
	}

	go func() {
		<-a.stopCh
		a.logger.Info().Msg("Shutting down application")
	}()

	return a, nil
}

func (a *App) Stop() {
	if a.poller != nil {
		a.poller.Stop()
	}
	close(a.stopCh)
}
