// Package poller sweeps unsettled transactions and re-checks them against
// their provider, covering webhooks that never arrived.
package poller

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scratchpay/internal/app/logger"
	"scratchpay/internal/app/service/orchestrator"
	"scratchpay/internal/app/storage"
)

const sweepLimit = 100

type Job func() error

type Service struct {
	logger       logger.Logger
	transactions storage.TransactionRepository
	orchestrator *orchestrator.Service

	jobs   chan Job
	stopCh chan struct{}

	fetchInterval time.Duration
	grace         time.Duration
}

type Option func(*Service)

func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		s.fetchInterval = d
	}
}

func WithGrace(d time.Duration) Option {
	return func(s *Service) {
		s.grace = d
	}
}

func New(transactions storage.TransactionRepository, o *orchestrator.Service, numWorkers int, opts ...Option) *Service {
	s := &Service{
		logger:        logger.Global().WithComponent("Poller.Service"),
		fetchInterval: 30 * time.Second,
		grace:         time.Minute,
		jobs:          make(chan Job),
		stopCh:        make(chan struct{}),
		transactions:  transactions,
		orchestrator:  o,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.start(numWorkers)

	return s
}

func (s *Service) start(numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-s.stopCh:
					return
				case job, ok := <-s.jobs:
					if !ok {
						return
					}
					l := s.logger.With().Int("worker_id", workerID).Logger()
					if err := job(); err != nil {
						// Left for the next sweep.
						l.Error().Err(err).Msg("Job failed")
						continue
					}
				}
			}
		}(i)
	}

	go func() {
		t := time.NewTimer(s.fetchInterval)
		for {
			select {
			case <-s.stopCh:
				t.Stop()
				return
			case <-t.C:
				s.sweep()
				t.Reset(s.fetchInterval)
			}
		}
	}()
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchInterval)
	defer cancel()

	ids, err := s.transactions.AllUnsettled(ctx, s.grace, sweepLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Unsettled sweep failed")
		return
	}

	if len(ids) == 0 {
		return
	}

	s.logger.Info().Int("count", len(ids)).Msg("Re-checking unsettled transactions")

	for _, id := range ids {
		select {
		case <-s.stopCh:
			return
		case s.jobs <- s.checkStatus(id):
		}
	}
}

func (s *Service) checkStatus(id uuid.UUID) Job {
	const timeout = 30 * time.Second
	return func() error {
		l := s.logger.With().Str("transaction_id", id.String()).Logger()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = l.WithContext(ctx)

		if _, err := s.orchestrator.CheckStatus(ctx, id); err != nil {
			return err
		}

		return nil
	}
}

func (s *Service) Stop() {
	s.logger.Debug().Msg("Service shutdown")
	close(s.stopCh)
}
