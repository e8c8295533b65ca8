package store

import (
	"context"

	"github.com/elonfeng/replyradar/pkg/opportunity"
)

const upsertSeedStat = `
	INSERT INTO seed_stats (
		account, batch_id, scraped, non_root, disallowed, quality_blocked, freshness_failed,
		stored, fallback_stored, store_errors, relevance_mid, relevance_high,
		replyability_mid, replyability_high, scrape_failed, run_at
	) VALUES (
		:account, :batch_id, :scraped, :non_root, :disallowed, :quality_blocked, :freshness_failed,
		:stored, :fallback_stored, :store_errors, :relevance_mid, :relevance_high,
		:replyability_mid, :replyability_high, :scrape_failed, :run_at
	)
	ON CONFLICT(batch_id, account) DO UPDATE SET
		scraped = excluded.scraped,
		non_root = excluded.non_root,
		disallowed = excluded.disallowed,
		quality_blocked = excluded.quality_blocked,
		freshness_failed = excluded.freshness_failed,
		stored = excluded.stored,
		fallback_stored = excluded.fallback_stored,
		store_errors = excluded.store_errors,
		relevance_mid = excluded.relevance_mid,
		relevance_high = excluded.relevance_high,
		replyability_mid = excluded.replyability_mid,
		replyability_high = excluded.replyability_high,
		scrape_failed = excluded.scrape_failed,
		run_at = excluded.run_at
`

// RecordSeedStats writes one row per account and batch in a single transaction.
func (s *SQLiteStore) RecordSeedStats(ctx context.Context, stats []opportunity.SeedStat) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap("begin seed stats", err)
	}
	defer tx.Rollback()

	for _, st := range stats {
		if _, err := tx.NamedExecContext(ctx, upsertSeedStat, toSeedStatRow(st)); err != nil {
			return wrap("record seed stat "+st.Account, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrap("commit seed stats", err)
	}
	return nil
}

func (s *SQLiteStore) ListSeedStats(ctx context.Context, opts SeedStatOpts) ([]opportunity.SeedStat, error) {
	query := "SELECT * FROM seed_stats WHERE 1=1"
	var args []any

	if opts.Account != "" {
		query += " AND account = ?"
		args = append(args, opts.Account)
	}
	if opts.BatchID != "" {
		query += " AND batch_id = ?"
		args = append(args, opts.BatchID)
	}

	query += " ORDER BY run_at DESC, account"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []seedStatRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap("list seed stats", err)
	}

	out := make([]opportunity.SeedStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSeedStat())
	}
	return out, nil
}
