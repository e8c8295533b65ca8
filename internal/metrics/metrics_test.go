package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/pipeline"
)

func TestCollectorCounts(t *testing.T) {
	c := New()

	c.Scraped(5)
	c.ScrapeFailed()
	c.Dropped(pipeline.StageDisallowed, "giveaway")
	c.Dropped(pipeline.StageDisallowed, "giveaway")
	c.Stored(opportunity.AdmissionNormal)
	c.Stored(opportunity.AdmissionStarvation)
	c.StoreError()
	c.BatchFinished(3*time.Second, nil)
	c.BatchFinished(0, errors.New("store down"))

	assert.Equal(t, 5.0, testutil.ToFloat64(c.scraped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.scrapeFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dropped.WithLabelValues("disallowed", "giveaway")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stored.WithLabelValues("starvation_fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batches.WithLabelValues("error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.Scraped(2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "replyradar_candidates_scraped_total 2")
}
