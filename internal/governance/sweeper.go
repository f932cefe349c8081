package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"fracpool/internal/domain"
)

// SweeperConfig configures the proposal expiry sweeper.
type SweeperConfig struct {
	// Interval between sweeps.
	Interval time.Duration
	// Workers bounds the pool that processes per-proposal expiries.
	Workers int
}

// DefaultSweeperConfig returns default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: 1 * time.Minute,
		Workers:  4,
	}
}

// Sweeper periodically transitions past-deadline active proposals to
// expired. Expiry also happens lazily when a late vote arrives; the
// sweeper covers proposals nobody touches.
type Sweeper struct {
	engine    *Engine
	scheduler gocron.Scheduler
	workers   *ants.Pool
	logger    *zap.Logger
	config    SweeperConfig
}

// NewSweeper creates a sweeper around the governance engine.
func NewSweeper(engine *Engine, logger *zap.Logger, config *SweeperConfig) (*Sweeper, error) {
	cfg := DefaultSweeperConfig()
	if config != nil {
		cfg = *config
	}

	workers, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		workers.Release()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Sweeper{
		engine:    engine,
		scheduler: scheduler,
		workers:   workers,
		logger:    logger,
		config:    cfg,
	}, nil
}

// Start schedules recurring sweeps until Stop is called. The first sweep
// runs immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.config.Interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("proposal expiry sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("workers", s.config.Workers))
	return nil
}

// Sweep runs one expiry pass: it lists due proposals and fans the expiry
// transitions out over the worker pool.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC()
	due, err := s.engine.proposals.GetActiveBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep listing failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	done := make(chan struct{}, len(due))
	for _, p := range due {
		proposalID, poolID := p.ProposalID, p.PoolID
		submitErr := s.workers.Submit(func() {
			defer func() { done <- struct{}{} }()
			if _, err := s.engine.expire(ctx, proposalID); err != nil {
				return // raced with a vote or cancel
			}
			s.engine.recordActivity(ctx, domain.ActivityProposalExpired, poolID, proposalID, "", "")
			if s.engine.metrics != nil {
				s.engine.metrics.ProposalsExpired.Inc()
			}
			s.logger.Info("proposal expired",
				zap.String("proposal_id", proposalID),
				zap.String("pool_id", poolID))
		})
		if submitErr != nil {
			done <- struct{}{}
			s.logger.Warn("sweep submit failed",
				zap.String("proposal_id", proposalID),
				zap.Error(submitErr))
		}
	}
	for range due {
		<-done
	}
}

// Stop shuts the scheduler and worker pool down.
func (s *Sweeper) Stop() error {
	err := s.scheduler.Shutdown()
	s.workers.Release()
	return err
}
