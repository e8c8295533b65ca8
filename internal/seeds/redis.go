// Package seeds publishes per-account harvest statistics for the external seed
// scheduler, which re-weights source accounts from the running totals.
package seeds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/replyradar/pkg/opportunity"
)

// DefaultKeyPrefix namespaces the per-account hashes.
const DefaultKeyPrefix = "replyradar:seedstats:"

// Publisher receives the seed stats of each batch.
type Publisher interface {
	Publish(ctx context.Context, stats []opportunity.SeedStat) error
}

// RedisPublisher accumulates seed stats into one Redis hash per account.
type RedisPublisher struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewRedisPublisher creates a publisher. A zero ttl keeps keys forever.
func NewRedisPublisher(client *goredis.Client, prefix string, ttl time.Duration, logger logrus.FieldLogger) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Key returns the hash key for account.
func (p *RedisPublisher) Key(account string) string {
	return p.prefix + account
}

// Publish adds every counter of stats to the running totals in one transaction.
func (p *RedisPublisher) Publish(ctx context.Context, stats []opportunity.SeedStat) error {
	if len(stats) == 0 {
		return nil
	}

	pipe := p.client.TxPipeline()
	for _, st := range stats {
		key := p.Key(st.Account)
		for field, n := range counters(st) {
			if n != 0 {
				pipe.HIncrBy(ctx, key, field, int64(n))
			}
		}
		pipe.HIncrBy(ctx, key, "runs", 1)
		pipe.HSet(ctx, key,
			"last_batch_id", st.BatchID,
			"last_run_at", st.RunAt.UTC().Format(time.RFC3339),
			"last_stored", st.Stored+st.FallbackStored,
		)
		if p.ttl > 0 {
			pipe.Expire(ctx, key, p.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish seed stats: %w", err)
	}
	p.logger.WithField("accounts", len(stats)).Debug("seed stats published")
	return nil
}

// Totals reads the accumulated counters of account.
func (p *RedisPublisher) Totals(ctx context.Context, account string) (map[string]int64, error) {
	raw, err := p.client.HGetAll(ctx, p.Key(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("read seed stats @%s: %w", account, err)
	}
	out := make(map[string]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}

func counters(st opportunity.SeedStat) map[string]int {
	scrapeFailed := 0
	if st.ScrapeFailed {
		scrapeFailed = 1
	}
	return map[string]int{
		"scraped":           st.Scraped,
		"non_root":          st.NonRoot,
		"disallowed":        st.Disallowed,
		"quality_blocked":   st.QualityBlocked,
		"freshness_failed":  st.FreshnessFail,
		"stored":            st.Stored,
		"fallback_stored":   st.FallbackStored,
		"store_errors":      st.StoreErrors,
		"relevance_mid":     st.RelevanceMid,
		"relevance_high":    st.RelevanceHigh,
		"replyability_mid":  st.ReplyabilityMid,
		"replyability_high": st.ReplyabilityHigh,
		"scrape_failed":     scrapeFailed,
	}
}
