package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Address outcome labels of AddressesProcessed.
const (
	StatusResolved = "resolved"
	StatusCached   = "cached"
	StatusFailed   = "failed"
	StatusError    = "error"
)

type Metrics struct {
	AddressesProcessed *prometheus.CounterVec
	APIErrors          prometheus.Counter
	QuotaRejections    prometheus.Counter
	RequestSeconds     *prometheus.HistogramVec
	InFlightRequests   prometheus.Gauge
	CacheWriteErrors   prometheus.Counter
	RunsFinished       prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AddressesProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_addresses_processed_total",
			Help: "Total number of addresses that completed a batch run, by outcome.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_provider_api_errors_total",
			Help: "Total number of transport errors received from the geocoding provider API.",
		}),
		QuotaRejections: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_quota_rejections_total",
			Help: "Total number of OVER_QUERY_LIMIT answers from the geocoding provider.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		InFlightRequests: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geocoding_inflight_requests",
			Help: "Current number of provider requests scheduled or running.",
		}),
		CacheWriteErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_cache_write_errors_total",
			Help: "Total number of cache file appends that could not be flushed.",
		}),
		RunsFinished: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_runs_finished_total",
			Help: "Total number of batch runs that drained completely.",
		}),
	}
}
