// Package metrics exposes Prometheus metrics for the transcode pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Labels stay low-cardinality: tier names and outcomes only, never media ids.
var (
	TierEncodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_transcode_tier_encode_seconds",
		Help:    "Wall-clock time spent encoding one tier, by tier and outcome.",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"tier", "outcome"})

	TierOutcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_transcode_tier_outcome_total",
		Help: "Tier completions by tier and outcome (success, timeout, failed).",
	}, []string{"tier", "outcome"})

	ChainEnqueueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_transcode_chain_enqueue_total",
		Help: "Chained job enqueue attempts by result.",
	}, []string{"result"})

	StuckRepairTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_transcode_stuck_repair_total",
		Help: "Assets corrected by the maintenance scan, by resulting state.",
	}, []string{"result"})

	UploadRetryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_transcode_upload_retry_total",
		Help: "Artifact upload attempts that were retried after a transient error.",
	})

	IngestionEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_transcode_ingestion_events_total",
		Help: "Object-finalized events by disposition.",
	}, []string{"disposition"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
