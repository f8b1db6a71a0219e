package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"conductor/pkg/logger"
)

// Pruner periodically deletes records older than the retention window.
type Pruner struct {
	db        *DB
	retention time.Duration
	schedule  string
	now       func() time.Time
	log       zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner validates schedule (standard five-field spec or descriptor such
// as "@hourly"). A zero retention disables pruning.
func NewPruner(db *DB, retention time.Duration, schedule string) (*Pruner, error) {
	if schedule == "" {
		schedule = "@hourly"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	log := logger.Component("pruner")
	return &Pruner{
		db:        db,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
		log:       log,
		cron:      cron.New(cron.WithLogger(cron.PrintfLogger(&log))),
	}, nil
}

// Start registers the prune job and starts the scheduler.
func (p *Pruner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.retention <= 0 {
		return nil
	}
	if _, err := p.cron.AddFunc(p.schedule, func() {
		if _, err := p.PruneOnce(context.Background()); err != nil {
			p.log.Error().Err(err).Msg("prune failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}
	p.cron.Start()
	p.running = true
	p.log.Info().Str("schedule", p.schedule).Dur("retention", p.retention).Msg("pruner started")
	return nil
}

// Stop halts the scheduler. The returned context is done once a running
// prune has finished.
func (p *Pruner) Stop() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	p.running = false
	return p.cron.Stop()
}

// PruneOnce deletes everything older than now minus retention.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.retention)
	n, err := p.db.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned old records")
	}
	return n, nil
}
