package scheduler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/replyradar/pkg/alert"
	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/pipeline"
	"github.com/elonfeng/replyradar/pkg/rank"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeRunner struct {
	calls    atomic.Int32
	accounts []string
	batch    *pipeline.Batch
	err      error
	block    chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, accounts []string) (*pipeline.Batch, error) {
	r.calls.Add(1)
	r.accounts = accounts
	if r.block != nil {
		<-r.block
	}
	return r.batch, r.err
}

type statsSink struct {
	mu    sync.Mutex
	stats []opportunity.SeedStat
	err   error
}

func (s *statsSink) RecordSeedStats(_ context.Context, stats []opportunity.SeedStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, stats...)
	return s.err
}

func (s *statsSink) Publish(ctx context.Context, stats []opportunity.SeedStat) error {
	return s.RecordSeedStats(ctx, stats)
}

type observer struct {
	ok, failed int
}

func (o *observer) BatchFinished(_ time.Duration, err error) {
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}

func sampleBatch() *pipeline.Batch {
	return &pipeline.Batch{
		ID:    "b1",
		Stats: []opportunity.SeedStat{{Account: "hubermanlab", BatchID: "b1", Stored: 1}},
		Stored: []opportunity.Opportunity{
			{PostID: "42", Author: "hubermanlab", ValueTier: rank.TierS, FinalScore: 0.8},
		},
	}
}

func TestRunBatchFansOut(t *testing.T) {
	var alerts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		alerts.Add(1)
	}))
	defer srv.Close()

	runner := &fakeRunner{batch: sampleBatch()}
	stats, published := &statsSink{}, &statsSink{}
	obs := &observer{}
	s := New(Deps{
		Runner:    runner,
		Stats:     stats,
		Publisher: published,
		Alerts:    alert.NewManager([]alert.Notifier{alert.NewWebhook(srv.URL, "")}, rank.TierS),
		Observer:  obs,
		Logger:    quietLogger(),
	}, []string{"hubermanlab"}, "", 0)

	b, err := s.RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, []string{"hubermanlab"}, runner.accounts)
	assert.Len(t, stats.stats, 1)
	assert.Len(t, published.stats, 1)
	assert.Equal(t, int32(1), alerts.Load())
	assert.Equal(t, 1, obs.ok)
}

func TestRunBatchSinkFailuresAreNotFatal(t *testing.T) {
	s := New(Deps{
		Runner:    &fakeRunner{batch: sampleBatch()},
		Stats:     &statsSink{err: errors.New("disk full")},
		Publisher: &statsSink{err: errors.New("redis down")},
		Logger:    quietLogger(),
	}, nil, "", 0)

	_, err := s.RunBatch(context.Background())
	assert.NoError(t, err)
}

func TestRunBatchPropagatesRunnerError(t *testing.T) {
	obs := &observer{}
	stats := &statsSink{}
	s := New(Deps{
		Runner:   &fakeRunner{err: errors.New("store unavailable")},
		Stats:    stats,
		Observer: obs,
		Logger:   quietLogger(),
	}, nil, "", 0)

	_, err := s.RunBatch(context.Background())
	assert.Error(t, err)
	assert.Empty(t, stats.stats)
	assert.Equal(t, 1, obs.failed)
}

func TestRunBatchRejectsOverlap(t *testing.T) {
	runner := &fakeRunner{batch: sampleBatch(), block: make(chan struct{})}
	s := New(Deps{Runner: runner, Stats: &statsSink{}, Logger: quietLogger()}, nil, "", 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunBatch(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.RunBatch(context.Background())
	assert.ErrorIs(t, err, ErrBatchRunning)

	close(runner.block)
	assert.NoError(t, <-done)
}

func TestRunHarvestsImmediatelyAndStops(t *testing.T) {
	runner := &fakeRunner{batch: sampleBatch()}
	s := New(Deps{Runner: runner, Stats: &statsSink{}, Logger: quietLogger()}, nil, "@every 1h", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.NextRun().IsZero() }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunRejectsBadSchedule(t *testing.T) {
	s := New(Deps{Runner: &fakeRunner{}, Stats: &statsSink{}, Logger: quietLogger()}, nil, "whenever", 0)
	assert.Error(t, s.Run(context.Background()))
}
