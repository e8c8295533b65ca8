// Package pipeline turns harvested posts into stored reply opportunities.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/replyradar/internal/store"
	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/classify"
	"github.com/elonfeng/replyradar/pkg/freshness"
	"github.com/elonfeng/replyradar/pkg/heuristics"
	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/source"
)

const (
	DefaultStarvationMinLikes = 100
	DefaultStarvationMaxPicks = 2
	DefaultMaxCandidates      = 50
	DefaultWorkers            = 4
)

// Repository persists opportunities. UpsertByKey must be idempotent on id;
// it is the only point where concurrent harvests meet.
type Repository interface {
	UpsertByKey(ctx context.Context, id string, o *opportunity.Opportunity) error
}

// Pinger is implemented by repositories that can report availability up front.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Recorder receives pipeline outcome counts.
type Recorder interface {
	Scraped(n int)
	ScrapeFailed()
	Dropped(stage Stage, reason string)
	Stored(path opportunity.AdmissionPath)
	StoreError()
}

type nopRecorder struct{}

func (nopRecorder) Scraped(int) {}
func (nopRecorder) ScrapeFailed() {}
func (nopRecorder) Dropped(Stage, string) {}
func (nopRecorder) Stored(opportunity.AdmissionPath) {}
func (nopRecorder) StoreError() {}

// Config holds the admission knobs.
type Config struct {
	QualityThreshold int
	Freshness        freshness.Table

	StarvationMinLikes int64
	StarvationMaxPicks int

	// AllowDisallowedInFallback lets quality-passing disallowed candidates
	// compete for starvation picks.
	AllowDisallowedInFallback bool

	MaxCandidatesPerAccount int
	MaxAccounts             int
	Workers                 int
}

func (c Config) withDefaults() Config {
	if c.StarvationMinLikes <= 0 {
		c.StarvationMinLikes = DefaultStarvationMinLikes
	}
	if c.StarvationMaxPicks <= 0 {
		c.StarvationMaxPicks = DefaultStarvationMaxPicks
	}
	if c.MaxCandidatesPerAccount <= 0 {
		c.MaxCandidatesPerAccount = DefaultMaxCandidates
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c
}

// Pipeline harvests source accounts and stores admitted opportunities.
type Pipeline struct {
	cfg     Config
	eval    *Evaluator
	repo    Repository
	scraper source.Harvester
	log     logrus.FieldLogger
	rec     Recorder
	now     func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.rec = r }
}

// WithClock overrides time.Now, which fixes candidate ages in tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline. A nil lexicon selects the embedded default.
func New(repo Repository, scraper source.Harvester, lex *heuristics.Lexicon, cfg Config, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:     cfg,
		eval:    NewEvaluator(lex, cfg.QualityThreshold, cfg.Freshness),
		repo:    repo,
		scraper: scraper,
		log:     logrus.StandardLogger(),
		rec:     nopRecorder{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Evaluator returns the evaluator the pipeline scores with.
func (p *Pipeline) Evaluator() *Evaluator { return p.eval }

// Batch is the outcome of one Run.
type Batch struct {
	ID         string                    `json:"id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Stats      []opportunity.SeedStat    `json:"stats"`
	Stored     []opportunity.Opportunity `json:"-"`
}

// StoredCount returns the number of opportunities written by the batch.
func (b *Batch) StoredCount() int { return len(b.Stored) }

type accountResult struct {
	stat   opportunity.SeedStat
	stored []opportunity.Opportunity
}

// Run harvests accounts concurrently on a bounded pool. A failing scrape or a
// failing upsert only affects that account or candidate. An unavailable store
// aborts the whole batch with an error wrapping store.ErrUnavailable.
func (p *Pipeline) Run(ctx context.Context, accounts []string) (*Batch, error) {
	if pg, ok := p.repo.(Pinger); ok {
		if err := pg.Ping(ctx); err != nil {
			return nil, fmt.Errorf("check store: %w", err)
		}
	}

	accounts = p.selectAccounts(accounts)
	b := &Batch{ID: uuid.NewString(), StartedAt: p.now().UTC()}
	log := p.log.WithField("batch_id", b.ID)
	log.WithField("accounts", len(accounts)).Info("harvest batch started")

	results := make([]accountResult, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, account := range accounts {
		g.Go(func() error {
			res, err := p.processAccount(gctx, b.ID, account)
			if err != nil {
				return fmt.Errorf("account @%s: %w", account, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("harvest batch aborted")
		return nil, err
	}

	for _, res := range results {
		b.Stats = append(b.Stats, res.stat)
		b.Stored = append(b.Stored, res.stored...)
	}
	b.FinishedAt = p.now().UTC()
	log.WithFields(logrus.Fields{
		"stored":   b.StoredCount(),
		"duration": b.FinishedAt.Sub(b.StartedAt).String(),
	}).Info("harvest batch finished")
	return b, nil
}

func (p *Pipeline) selectAccounts(accounts []string) []string {
	seen := make(map[string]bool, len(accounts))
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		a = candidate.NormalizeHandle(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
		if p.cfg.MaxAccounts > 0 && len(out) == p.cfg.MaxAccounts {
			break
		}
	}
	return out
}

func (p *Pipeline) processAccount(ctx context.Context, batchID, account string) (accountResult, error) {
	now := p.now().UTC()
	log := p.log.WithFields(logrus.Fields{"batch_id": batchID, "account": account})
	res := accountResult{stat: opportunity.SeedStat{Account: account, BatchID: batchID, RunAt: now}}

	raws, err := p.scraper.Harvest(ctx, account, p.cfg.MaxCandidatesPerAccount)
	if err != nil {
		log.WithError(err).Warn("harvest failed, continuing with zero candidates")
		res.stat.ScrapeFailed = true
		p.rec.ScrapeFailed()
		return res, nil
	}
	if len(raws) > p.cfg.MaxCandidatesPerAccount {
		raws = raws[:p.cfg.MaxCandidatesPerAccount]
	}
	res.stat.Scraped = len(raws)
	p.rec.Scraped(len(raws))

	var deferred []Evaluation
	for _, raw := range raws {
		e := p.eval.Evaluate(candidate.Normalize(raw, account, now))
		if e.Root {
			res.stat.CountSignals(e.Signals)
		}

		switch e.Stage {
		case StageNonRoot:
			res.stat.NonRoot++
		case StageDisallowed:
			res.stat.Disallowed++
			if p.cfg.AllowDisallowedInFallback && e.Quality.Pass {
				deferred = append(deferred, e)
			}
		case StageQuality:
			res.stat.QualityBlocked++
		case StageFreshness:
			res.stat.FreshnessFail++
			deferred = append(deferred, e)
		}

		if !e.Admitted() {
			p.rec.Dropped(e.Stage, e.DropReason())
			log.WithFields(logrus.Fields{
				"post_id": e.Candidate.ID,
				"stage":   e.Stage,
				"reason":  e.DropReason(),
			}).Debug("candidate dropped")
			continue
		}

		o, err := p.store(ctx, log, e, batchID, opportunity.AdmissionNormal, now)
		if err != nil {
			return res, err
		}
		if o == nil {
			res.stat.StoreErrors++
			continue
		}
		res.stat.Stored++
		res.stored = append(res.stored, *o)
	}

	if res.stat.Stored > 0 {
		return res, nil
	}
	for _, e := range p.starvationPicks(deferred) {
		o, err := p.store(ctx, log, e, batchID, opportunity.AdmissionStarvation, now)
		if err != nil {
			return res, err
		}
		if o == nil {
			res.stat.StoreErrors++
			continue
		}
		res.stat.FallbackStored++
		res.stored = append(res.stored, *o)
		log.WithFields(logrus.Fields{
			"post_id": o.PostID,
			"quality": o.Quality.Score,
		}).Info("starvation fallback admitted candidate")
	}
	return res, nil
}

// store upserts e. A per-candidate failure is logged and yields (nil, nil) so
// the caller can count it; only an unavailable store is returned as an error.
func (p *Pipeline) store(ctx context.Context, log logrus.FieldLogger, e Evaluation, batchID string,
	path opportunity.AdmissionPath, now time.Time) (*opportunity.Opportunity, error) {
	o := e.Opportunity()
	o.BatchID = batchID
	o.AdmissionPath = path
	o.HarvestedAt = now
	o.UpdatedAt = now

	if err := p.repo.UpsertByKey(ctx, o.PostID, &o); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return nil, err
		}
		p.rec.StoreError()
		log.WithError(err).WithField("post_id", o.PostID).Error("store opportunity")
		return nil, nil
	}
	p.rec.Stored(path)
	return &o, nil
}

// starvationPicks selects fallback candidates: known likes at or above the
// floor, highest quality first, newer first on ties.
func (p *Pipeline) starvationPicks(pool []Evaluation) []Evaluation {
	var eligible []Evaluation
	for _, e := range pool {
		if !e.Quality.Pass || !e.Candidate.Likes.AtLeast(p.cfg.StarvationMinLikes) {
			continue
		}
		if e.Disallowed != classify.ReasonNone && !p.cfg.AllowDisallowedInFallback {
			continue
		}
		eligible = append(eligible, e)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Quality.Score != b.Quality.Score {
			return a.Quality.Score > b.Quality.Score
		}
		if a.Candidate.AgeKnown != b.Candidate.AgeKnown {
			return a.Candidate.AgeKnown
		}
		return a.Candidate.AgeMinutes < b.Candidate.AgeMinutes
	})

	if len(eligible) > p.cfg.StarvationMaxPicks {
		eligible = eligible[:p.cfg.StarvationMaxPicks]
	}
	return eligible
}
