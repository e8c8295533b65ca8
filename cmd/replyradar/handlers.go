package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/replyradar/internal/config"
	"github.com/elonfeng/replyradar/internal/logging"
	"github.com/elonfeng/replyradar/internal/metrics"
	"github.com/elonfeng/replyradar/internal/scheduler"
	"github.com/elonfeng/replyradar/internal/seeds"
	"github.com/elonfeng/replyradar/internal/store"
	"github.com/elonfeng/replyradar/pkg/alert"
	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/heuristics"
	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/pipeline"
	"github.com/elonfeng/replyradar/pkg/rank"
	"github.com/elonfeng/replyradar/pkg/server"
	"github.com/elonfeng/replyradar/pkg/source"
)

type listFlags struct {
	status   string
	tier     string
	account  string
	minScore float64
	order    string
	limit    int
}

type scoreFlags struct {
	author     string
	likes      int64
	ageMinutes int
	followers  int64
	views      int64
}

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	db      *store.SQLiteStore
	metrics *metrics.Collector
	redis   *goredis.Client
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db, metrics: metrics.New()}
	if cfg.Redis.Enabled {
		a.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

func (a *app) lexicon() (*heuristics.Lexicon, error) {
	if a.cfg.Scoring.LexiconPath == "" {
		return heuristics.Default(), nil
	}
	lex, err := heuristics.LoadFile(a.cfg.Scoring.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	return lex, nil
}

func (a *app) evaluator() (*pipeline.Evaluator, error) {
	lex, err := a.lexicon()
	if err != nil {
		return nil, err
	}
	return pipeline.NewEvaluator(lex, a.cfg.Scoring.QualityPassThreshold, a.cfg.Scoring.Freshness), nil
}

func (a *app) buildPipeline() (*pipeline.Pipeline, error) {
	lex, err := a.lexicon()
	if err != nil {
		return nil, err
	}

	h := a.cfg.Harvest
	scraper, err := source.New(h.Source, source.Options{
		NitterURL: h.NitterURL,
		JSONDir:   h.JSONDir,
		UserAgent: h.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("build harvester: %w", err)
	}

	sc := a.cfg.Scoring
	cfg := pipeline.Config{
		QualityThreshold:          sc.QualityPassThreshold,
		Freshness:                 sc.Freshness,
		StarvationMinLikes:        sc.StarvationMinLikes,
		StarvationMaxPicks:        sc.StarvationMaxPicks,
		AllowDisallowedInFallback: sc.AllowDisallowedInFallback,
		MaxCandidatesPerAccount:   h.MaxCandidatesPerAccount,
		MaxAccounts:               h.MaxAccounts,
		Workers:                   h.Workers,
	}

	a.log.WithFields(logrus.Fields{
		"source":             scraper.Name(),
		"lexicon_version":    lex.Version,
		"threshold":          sc.QualityPassThreshold,
		"sensitive_patterns": lex.Sensitive.Len(),
		"domain_patterns":    lex.Domain.Len(),
	}).Debug("pipeline configured")

	return pipeline.New(a.db, scraper, lex, cfg,
		pipeline.WithLogger(a.log),
		pipeline.WithRecorder(a.metrics),
	), nil
}

func (a *app) buildAlertManager() *alert.Manager {
	var notifiers []alert.Notifier
	al := a.cfg.Alerts

	if al.Slack.Enabled && al.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(al.Slack.WebhookURL))
	}
	if al.Discord.Enabled && al.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(al.Discord.WebhookURL))
	}
	if al.Webhook.Enabled && al.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(al.Webhook.URL, al.Webhook.Secret))
	}

	return alert.NewManager(notifiers, al.MinTier)
}

func (a *app) buildScheduler(accounts []string) (*scheduler.Scheduler, error) {
	p, err := a.buildPipeline()
	if err != nil {
		return nil, err
	}

	deps := scheduler.Deps{
		Runner:   p,
		Stats:    a.db,
		Alerts:   a.buildAlertManager(),
		Observer: a.metrics,
		Logger:   a.log,
	}
	if a.redis != nil {
		deps.Publisher = seeds.NewRedisPublisher(a.redis, a.cfg.Redis.KeyPrefix, a.cfg.Redis.ParseTTL(), a.log)
	}

	if len(accounts) == 0 {
		accounts = a.cfg.Harvest.Accounts
	}
	return scheduler.New(deps, accounts, a.cfg.Schedule.Harvest, a.cfg.Schedule.ParseBatchTimeout()), nil
}

func runHarvest(ctx context.Context, accounts []string, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.buildScheduler(accounts)
	if err != nil {
		return err
	}

	batch, err := sched.RunBatch(ctx)
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}

	if jsonOutput {
		return printJSON(batch)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tSCRAPED\tNON-ROOT\tDISALLOWED\tQUALITY\tFRESHNESS\tSTORED\tFALLBACK\tERRORS")
	for _, st := range batch.Stats {
		account := st.Account
		if st.ScrapeFailed {
			account += " (scrape failed)"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			account, st.Scraped, st.NonRoot, st.Disallowed, st.QualityBlocked,
			st.FreshnessFail, st.Stored, st.FallbackStored, st.StoreErrors)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nbatch %s: %d opportunities stored from %d accounts in %s\n",
		batch.ID, batch.StoredCount(), len(batch.Stats),
		batch.FinishedAt.Sub(batch.StartedAt).Round(time.Millisecond))
	return nil
}

func runOpportunities(ctx context.Context, f listFlags, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ops, err := a.db.ListOpportunities(ctx, store.ListOpts{
		Status:    opportunity.Status(f.status),
		ValueTier: rank.ValueTier(f.tier),
		Account:   candidate.NormalizeHandle(f.account),
		MinScore:  f.minScore,
		OrderBy:   store.Order(f.order),
		Limit:     f.limit,
	})
	if err != nil {
		return fmt.Errorf("list opportunities: %w", err)
	}

	if jsonOutput {
		return printJSON(ops)
	}

	if len(ops) == 0 {
		fmt.Println("no opportunities found (try harvesting first: replyradar harvest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tTIER\tQUALITY\tLIKES\tAGE\tAUTHOR\tPATH\tURL")
	for _, o := range ops {
		age := "?"
		if o.PostedAt != nil {
			age = fmt.Sprintf("%dm", o.AgeMinutes)
		}
		fmt.Fprintf(w, "%.3f\t%s\t%d\t%s\t%s\t@%s\t%s\t%s\n",
			o.FinalScore, o.ValueTier, o.Quality.Score, o.Likes, age,
			o.Author, o.AdmissionPath, o.URL)
	}
	return w.Flush()
}

func runConsume(ctx context.Context, id string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.MarkConsumed(ctx, id); err != nil {
		return fmt.Errorf("consume %s: %w", id, err)
	}
	fmt.Fprintf(os.Stderr, "marked %s consumed\n", id)
	return nil
}

func runSeeds(ctx context.Context, account, batchID string, limit int, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.db.ListSeedStats(ctx, store.SeedStatOpts{
		Account: candidate.NormalizeHandle(account),
		BatchID: batchID,
		Limit:   limit,
	})
	if err != nil {
		return fmt.Errorf("list seed stats: %w", err)
	}

	if jsonOutput {
		return printJSON(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN AT\tACCOUNT\tSCRAPED\tSTORED\tFALLBACK\tREL MID/HIGH\tREPLY MID/HIGH\tBATCH")
	for _, st := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d/%d\t%d/%d\t%s\n",
			st.RunAt.Format(time.RFC3339), st.Account, st.Scraped, st.Stored, st.FallbackStored,
			st.RelevanceMid, st.RelevanceHigh, st.ReplyabilityMid, st.ReplyabilityHigh, st.BatchID)
	}
	return w.Flush()
}

func runScore(text string, f scoreFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg}
	ev, err := a.evaluator()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	raw := candidate.Raw{
		PostID:          "cli",
		AuthorHandle:    f.author,
		AuthorFollowers: countFlag(f.followers),
		Text:            text,
		Likes:           countFlag(f.likes),
		Replies:         candidate.Unknown(),
		Reposts:         candidate.Unknown(),
		Views:           countFlag(f.views),
	}
	if f.ageMinutes >= 0 {
		raw.PostedAt = now.Add(-time.Duration(f.ageMinutes) * time.Minute).Format(time.RFC3339)
	}

	e := ev.Evaluate(candidate.Normalize(raw, f.author, now))
	return printJSON(map[string]any{
		"evaluation":      e,
		"admitted":        e.Admitted(),
		"drop_reason":     e.DropReason(),
		"lexicon_version": ev.LexiconVersion(),
	})
}

func runServe(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	sched, err := a.buildScheduler(nil)
	if err != nil {
		return err
	}
	ev, err := a.evaluator()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(a.db, port, server.Options{
		Trigger:   sched,
		Evaluator: ev,
		Metrics:   a.metrics.Handler(),
		Logger:    a.log,
	})
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	sched, err := a.buildScheduler(nil)
	if err != nil {
		return err
	}
	ev, err := a.evaluator()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(a.db, port, server.Options{
		Trigger:   sched,
		Evaluator: ev,
		Metrics:   a.metrics.Handler(),
		Logger:    a.log,
	})

	a.log.WithFields(logrus.Fields{
		"schedule": a.cfg.Schedule.Harvest,
		"accounts": len(a.cfg.Harvest.Accounts),
		"port":     port,
	}).Info("replyradar daemon starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return srv.ListenAndServe(ctx) })

	err = g.Wait()
	a.log.Info("shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func countFlag(v int64) candidate.Count {
	if v < 0 {
		return candidate.Unknown()
	}
	return candidate.Known(v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
