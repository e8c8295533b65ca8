package seeds

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/replyradar/pkg/opportunity"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupPublisher(t *testing.T, ttl time.Duration) (*RedisPublisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPublisher(client, "", ttl, testLogger()), mr
}

func TestPublishAccumulates(t *testing.T) {
	p, mr := setupPublisher(t, 0)
	ctx := context.Background()
	runAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := []opportunity.SeedStat{
		{Account: "hubermanlab", BatchID: "b1", Scraped: 10, Stored: 2, RelevanceHigh: 3, RunAt: runAt},
		{Account: "peterattiamd", BatchID: "b1", ScrapeFailed: true, RunAt: runAt},
	}
	require.NoError(t, p.Publish(ctx, batch))

	batch[0].BatchID = "b2"
	batch[0].Stored = 0
	batch[0].FallbackStored = 1
	require.NoError(t, p.Publish(ctx, batch[:1]))

	assert.Equal(t, "replyradar:seedstats:hubermanlab", p.Key("hubermanlab"))
	assert.Equal(t, "20", mr.HGet(p.Key("hubermanlab"), "scraped"))
	assert.Equal(t, "b2", mr.HGet(p.Key("hubermanlab"), "last_batch_id"))

	totals, err := p.Totals(ctx, "hubermanlab")
	require.NoError(t, err)
	assert.Equal(t, int64(20), totals["scraped"])
	assert.Equal(t, int64(2), totals["stored"])
	assert.Equal(t, int64(1), totals["fallback_stored"])
	assert.Equal(t, int64(6), totals["relevance_high"])
	assert.Equal(t, int64(2), totals["runs"])
	assert.Equal(t, int64(1), totals["last_stored"])

	failed, err := p.Totals(ctx, "peterattiamd")
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed["scrape_failed"])
	assert.Zero(t, failed["scraped"])
}

func TestPublishSetsTTL(t *testing.T) {
	p, mr := setupPublisher(t, time.Hour)
	require.NoError(t, p.Publish(context.Background(), []opportunity.SeedStat{{Account: "a", Scraped: 1}}))
	assert.Equal(t, time.Hour, mr.TTL(p.Key("a")))
}

func TestPublishFailsWhenRedisDown(t *testing.T) {
	p, mr := setupPublisher(t, 0)
	mr.Close()
	err := p.Publish(context.Background(), []opportunity.SeedStat{{Account: "a", Scraped: 1}})
	assert.Error(t, err)
}

func TestPublishEmptyIsNoop(t *testing.T) {
	p, _ := setupPublisher(t, 0)
	assert.NoError(t, p.Publish(context.Background(), nil))
}
