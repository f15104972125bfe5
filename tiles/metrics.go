package tiles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slippy",
		Subsystem: "tiles",
		Name:      "cache_hits_total",
		Help:      "Total tile cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slippy",
		Subsystem: "tiles",
		Name:      "cache_misses_total",
		Help:      "Total tile cache misses",
	})

	tileLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slippy",
		Subsystem: "tiles",
		Name:      "loads_total",
		Help:      "Total asynchronous tile loads by result",
	}, []string{"result"})

	tileLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "slippy",
		Subsystem: "tiles",
		Name:      "load_duration_seconds",
		Help:      "Duration of asynchronous tile loads",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	httpFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slippy",
		Subsystem: "tiles",
		Name:      "http_fetches_total",
		Help:      "Total HTTP tile fetches by status",
	}, []string{"status"})
)
