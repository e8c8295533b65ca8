// Package store persists opportunities and seed statistics in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/rank"
)

// Order selects the ranking column for listings.
type Order string

const (
	OrderFinal  Order = "final"
	OrderLegacy Order = "legacy"
	OrderRecent Order = "recent"
)

// ListOpts controls opportunity listing.
type ListOpts struct {
	Status    opportunity.Status
	ValueTier rank.ValueTier
	Account   string
	MinScore  float64
	Since     time.Time
	OrderBy   Order
	Limit     int
}

// SeedStatOpts controls seed-stat listing.
type SeedStatOpts struct {
	Account string
	BatchID string
	Limit   int
}

// Store is the persistence interface.
type Store interface {
	UpsertByKey(ctx context.Context, id string, o *opportunity.Opportunity) error
	GetOpportunity(ctx context.Context, id string) (*opportunity.Opportunity, error)
	ListOpportunities(ctx context.Context, opts ListOpts) ([]opportunity.Opportunity, error)
	CountByStatus(ctx context.Context) (map[opportunity.Status]int, error)
	MarkConsumed(ctx context.Context, id string) error

	RecordSeedStats(ctx context.Context, stats []opportunity.SeedStat) error
	ListSeedStats(ctx context.Context, opts SeedStatOpts) ([]opportunity.SeedStat, error)

	Ping(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, wrap("run migrations", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable. Any failure is ErrUnavailable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

const upsertOpportunity = `
	INSERT INTO opportunities (
		post_id, author, author_followers, text, url, likes, replies, reposts, views,
		posted_at, age_minutes, velocity, is_reply, is_repost, is_origin, replied_to_id,
		conversation_root_id, quality_score, quality_pass, quality_tier, quality_reasons,
		quality_block_reason, quality_multiplier, relevance, replyability, context_similarity,
		legacy_score, final_score, value_tier, harvest_tier, status, admission_path,
		freshness_note, source_account, batch_id, lexicon_version, harvested_at, updated_at
	) VALUES (
		:post_id, :author, :author_followers, :text, :url, :likes, :replies, :reposts, :views,
		:posted_at, :age_minutes, :velocity, :is_reply, :is_repost, :is_origin, :replied_to_id,
		:conversation_root_id, :quality_score, :quality_pass, :quality_tier, :quality_reasons,
		:quality_block_reason, :quality_multiplier, :relevance, :replyability, :context_similarity,
		:legacy_score, :final_score, :value_tier, :harvest_tier, :status, :admission_path,
		:freshness_note, :source_account, :batch_id, :lexicon_version, :harvested_at, :updated_at
	)
	ON CONFLICT(post_id) DO UPDATE SET
		author = excluded.author,
		author_followers = excluded.author_followers,
		text = excluded.text,
		url = excluded.url,
		likes = excluded.likes,
		replies = excluded.replies,
		reposts = excluded.reposts,
		views = excluded.views,
		posted_at = excluded.posted_at,
		age_minutes = excluded.age_minutes,
		velocity = excluded.velocity,
		is_reply = excluded.is_reply,
		is_repost = excluded.is_repost,
		is_origin = excluded.is_origin,
		replied_to_id = excluded.replied_to_id,
		conversation_root_id = excluded.conversation_root_id,
		quality_score = excluded.quality_score,
		quality_pass = excluded.quality_pass,
		quality_tier = excluded.quality_tier,
		quality_reasons = excluded.quality_reasons,
		quality_block_reason = excluded.quality_block_reason,
		quality_multiplier = excluded.quality_multiplier,
		relevance = excluded.relevance,
		replyability = excluded.replyability,
		context_similarity = excluded.context_similarity,
		legacy_score = excluded.legacy_score,
		final_score = excluded.final_score,
		value_tier = excluded.value_tier,
		harvest_tier = excluded.harvest_tier,
		admission_path = excluded.admission_path,
		freshness_note = excluded.freshness_note,
		source_account = excluded.source_account,
		batch_id = excluded.batch_id,
		lexicon_version = excluded.lexicon_version,
		updated_at = excluded.updated_at
`

// UpsertByKey inserts o or overwrites the scores and derived fields of the row
// with the same post id. Status, harvested_at and consumed_at of an existing
// row are kept.
func (s *SQLiteStore) UpsertByKey(ctx context.Context, id string, o *opportunity.Opportunity) error {
	if id == "" {
		return fmt.Errorf("upsert opportunity: empty post id")
	}
	now := s.now().UTC()
	row := toRow(o)
	row.PostID = id
	if row.Status == "" {
		row.Status = string(opportunity.StatusPending)
	}
	if row.HarvestedAt.IsZero() {
		row.HarvestedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}

	if _, err := s.db.NamedExecContext(ctx, upsertOpportunity, row); err != nil {
		return wrap("upsert opportunity "+id, err)
	}
	return nil
}

func (s *SQLiteStore) GetOpportunity(ctx context.Context, id string) (*opportunity.Opportunity, error) {
	var row opportunityRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM opportunities WHERE post_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get opportunity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, wrap("get opportunity "+id, err)
	}
	o := row.toOpportunity()
	return &o, nil
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, opts ListOpts) ([]opportunity.Opportunity, error) {
	query := "SELECT * FROM opportunities WHERE 1=1"
	var args []any

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.ValueTier != "" {
		query += " AND value_tier = ?"
		args = append(args, string(opts.ValueTier))
	}
	if opts.Account != "" {
		query += " AND source_account = ?"
		args = append(args, opts.Account)
	}
	if opts.MinScore > 0 {
		query += " AND final_score >= ?"
		args = append(args, opts.MinScore)
	}
	if !opts.Since.IsZero() {
		query += " AND updated_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	switch opts.OrderBy {
	case OrderLegacy:
		query += " ORDER BY legacy_score DESC, post_id"
	case OrderRecent:
		query += " ORDER BY updated_at DESC, post_id"
	default:
		query += " ORDER BY final_score DESC, post_id"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []opportunityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap("list opportunities", err)
	}

	out := make([]opportunity.Opportunity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toOpportunity())
	}
	return out, nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[opportunity.Status]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT status, COUNT(*) as cnt FROM opportunities GROUP BY status")
	if err != nil {
		return nil, wrap("count by status", err)
	}
	defer rows.Close()

	counts := make(map[opportunity.Status]int)
	for rows.Next() {
		var status string
		var cnt int
		if err := rows.Scan(&status, &cnt); err != nil {
			return nil, err
		}
		counts[opportunity.Status(status)] = cnt
	}
	return counts, rows.Err()
}

// MarkConsumed transitions a pending opportunity to consumed. Consuming an
// already consumed opportunity is a no-op.
func (s *SQLiteStore) MarkConsumed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE opportunities SET status = ?, consumed_at = COALESCE(consumed_at, ?)
		WHERE post_id = ?
	`, string(opportunity.StatusConsumed), s.now().UTC(), id)
	if err != nil {
		return wrap("mark consumed "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark consumed %s: %w", id, ErrNotFound)
	}
	return nil
}
