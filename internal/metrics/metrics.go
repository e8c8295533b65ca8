// Package metrics exports pipeline outcome counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/pipeline"
)

const namespace = "replyradar"

// Collector holds the pipeline metrics. It implements pipeline.Recorder.
type Collector struct {
	registry *prometheus.Registry

	scraped       prometheus.Counter
	scrapeFailed  prometheus.Counter
	dropped       *prometheus.CounterVec
	stored        *prometheus.CounterVec
	storeErrors   prometheus.Counter
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	lastBatch     prometheus.Gauge
}

var _ pipeline.Recorder = (*Collector)(nil)

// New creates a collector on its own registry, together with the Go and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		scraped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_scraped_total",
			Help:      "Candidates returned by the harvester",
		}),
		scrapeFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_scrape_failures_total",
			Help:      "Accounts whose harvest failed and yielded zero candidates",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_dropped_total",
			Help:      "Candidates rejected by an admission gate",
		}, []string{"stage", "reason"}),
		stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_stored_total",
			Help:      "Opportunities upserted, by admission path",
		}, []string{"path"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Per-candidate upsert failures",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Harvest batches by result",
		}, []string{"result"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Harvest batch wall time",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time of the last successful batch",
		}),
	}

	c.registry.MustRegister(
		c.scraped, c.scrapeFailed, c.dropped, c.stored, c.storeErrors,
		c.batches, c.batchDuration, c.lastBatch,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Scraped(n int) { c.scraped.Add(float64(n)) }

func (c *Collector) ScrapeFailed() { c.scrapeFailed.Inc() }

func (c *Collector) Dropped(stage pipeline.Stage, reason string) {
	c.dropped.WithLabelValues(string(stage), reason).Inc()
}

func (c *Collector) Stored(path opportunity.AdmissionPath) {
	c.stored.WithLabelValues(string(path)).Inc()
}

func (c *Collector) StoreError() { c.storeErrors.Inc() }

// BatchFinished records the outcome of one harvest batch.
func (c *Collector) BatchFinished(d time.Duration, err error) {
	if err != nil {
		c.batches.WithLabelValues("error").Inc()
		return
	}
	c.batches.WithLabelValues("ok").Inc()
	c.batchDuration.Observe(d.Seconds())
	c.lastBatch.SetToCurrentTime()
}
