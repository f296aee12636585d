// Package metrics exposes Prometheus instruments for the viewer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SelectionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenery_selection_events_total",
		Help: "Selection events applied, by kind",
	}, []string{"kind"})
	RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "greenery_recompute_duration_seconds",
		Help:    "Time to recompute the active tree subset",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})
	ActiveFeatures = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "greenery_active_features",
		Help:    "Size of each recomputed active subset",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "greenery_sessions",
		Help: "Live viewer sessions",
	})
	DatasetReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenery_dataset_reloads_total",
		Help: "Dataset reloads, by result",
	}, []string{"result"})
	TilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenery_tiles_total",
		Help: "Vector tiles served, by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(SelectionEventsTotal)
	prometheus.MustRegister(RecomputeDuration)
	prometheus.MustRegister(ActiveFeatures)
	prometheus.MustRegister(Sessions)
	prometheus.MustRegister(DatasetReloadsTotal)
	prometheus.MustRegister(TilesTotal)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
