// Package scheduler runs harvest batches on a cron schedule and fans their
// results out to the seed-stat sinks and alert destinations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/replyradar/pkg/alert"
	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/pipeline"
)

// ErrBatchRunning is returned by RunBatch while another batch is in flight.
var ErrBatchRunning = errors.New("harvest batch already running")

// Runner executes one harvest batch.
type Runner interface {
	Run(ctx context.Context, accounts []string) (*pipeline.Batch, error)
}

// StatsRecorder persists seed stats.
type StatsRecorder interface {
	RecordSeedStats(ctx context.Context, stats []opportunity.SeedStat) error
}

// StatsPublisher forwards seed stats to the external seed scheduler.
type StatsPublisher interface {
	Publish(ctx context.Context, stats []opportunity.SeedStat) error
}

// BatchObserver is told how each batch ended.
type BatchObserver interface {
	BatchFinished(d time.Duration, err error)
}

// Deps are the collaborators of a Scheduler. Publisher, Alerts and Observer
// are optional.
type Deps struct {
	Runner    Runner
	Stats     StatsRecorder
	Publisher StatsPublisher
	Alerts    *alert.Manager
	Observer  BatchObserver
	Logger    logrus.FieldLogger
}

// Scheduler runs periodic harvest batches.
type Scheduler struct {
	deps     Deps
	accounts []string
	spec     string
	timeout  time.Duration
	cron     *cron.Cron
	mu       sync.Mutex
}

// New creates a scheduler that harvests accounts on the cron spec, e.g.
// "@every 15m" or "*/10 * * * *".
func New(deps Deps, accounts []string, spec string, timeout time.Duration) *Scheduler {
	if spec == "" {
		spec = "@every 15m"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Scheduler{
		deps:     deps,
		accounts: accounts,
		spec:     spec,
		timeout:  timeout,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Run executes a batch immediately, then on every cron tick. Blocks until ctx
// is cancelled. Ticks that arrive while a batch is running are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.deps.Logger.WithField("schedule", s.spec)

	c := s.cron
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule harvest %q: %w", s.spec, err)
	}

	log.Info("scheduler: initial harvest")
	s.tick(ctx)

	c.Start()
	log.Info("scheduler: running")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("scheduler: stopped")
	return ctx.Err()
}

// NextRun reports when the next scheduled batch fires. It is zero before Run.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.RunBatch(ctx); err != nil && !errors.Is(err, ErrBatchRunning) {
		s.deps.Logger.WithError(err).Error("scheduler: harvest batch failed")
	}
}

// RunBatch harvests every configured account once, records and publishes the
// seed stats and alerts on qualifying opportunities. Only one batch runs at a
// time; a concurrent call gets ErrBatchRunning.
func (s *Scheduler) RunBatch(ctx context.Context) (*pipeline.Batch, error) {
	if !s.mu.TryLock() {
		return nil, ErrBatchRunning
	}
	defer s.mu.Unlock()

	start := time.Now()
	batch, err := s.deps.Runner.Run(ctx, s.accounts)
	if s.deps.Observer != nil {
		s.deps.Observer.BatchFinished(time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	log := s.deps.Logger.WithField("batch_id", batch.ID)

	if err := s.deps.Stats.RecordSeedStats(ctx, batch.Stats); err != nil {
		log.WithError(err).Error("record seed stats")
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.Publish(ctx, batch.Stats); err != nil {
			log.WithError(err).Warn("publish seed stats")
		}
	}
	if s.deps.Alerts != nil {
		n, err := s.deps.Alerts.NotifyBatch(ctx, batch.ID, batch.Stored)
		if err != nil {
			log.WithError(err).Warn("alert broadcast")
		} else if n > 0 {
			log.WithField("opportunities", n).Info("alerted")
		}
	}
	return batch, nil
}
