package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the application
type Metrics struct {
	// Pipeline Metrics
	LinesRead           prometheus.Counter
	EntriesEmitted      prometheus.Counter
	EntriesSuppressed   *prometheus.CounterVec
	StreamsTerminated   prometheus.Counter
	ChunksProcessed     prometheus.Counter
	PipelineErrors      *prometheus.CounterVec
	ChunkProcessingTime prometheus.Histogram

	// Worker Metrics
	WorkersActive        prometheus.Gauge
	WorkQueueSize        prometheus.Gauge
	WorkItemsProcessed   prometheus.Counter
	WorkItemsErrored     prometheus.Counter
	WorkerProcessingTime prometheus.Histogram

	// Configuration Metrics
	ConfigRefreshes  *prometheus.CounterVec
	FilterSetReloads *prometheus.CounterVec

	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrors          *prometheus.CounterVec
}

var (
	metrics *Metrics
	once    sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
		// promauto registers with the default registry
	})
	return metrics
}

func initMetrics() *Metrics {
	return &Metrics{
		// Pipeline Metrics
		LinesRead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grepstream_lines_read_total",
			Help: "The total number of input lines fed to pipelines",
		}),
		EntriesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grepstream_entries_emitted_total",
			Help: "The total number of entries that passed every stage",
		}),
		EntriesSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grepstream_entries_suppressed_total",
				Help: "The total number of entries dropped, by stage",
			},
			[]string{"stage"},
		),
		StreamsTerminated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grepstream_streams_terminated_total",
			Help: "The total number of streams stopped because the upper time bound was passed",
		}),
		ChunksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grepstream_chunks_processed_total",
			Help: "The total number of input chunks processed to the end",
		}),
		PipelineErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grepstream_pipeline_errors_total",
				Help: "The total number of pipeline runs aborted by an error, by stage",
			},
			[]string{"stage"},
		),
		ChunkProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "grepstream_chunk_processing_duration_seconds",
			Help:    "The time taken to run a chunk through a pipeline",
			Buckets: prometheus.DefBuckets,
		}),

		// Worker Metrics
		WorkersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "grepstream_workers_active",
			Help: "The number of active source workers",
		}),
		WorkQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "grepstream_work_queue_size",
			Help: "The number of sources waiting for a worker",
		}),
		WorkItemsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grepstream_work_items_processed_total",
			Help: "The total number of sources processed by workers",
		}),
		WorkItemsErrored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grepstream_work_items_errored_total",
			Help: "The total number of sources whose processing failed",
		}),
		WorkerProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "grepstream_worker_processing_duration_seconds",
			Help:    "The time taken by a worker to process one source",
			Buckets: prometheus.DefBuckets,
		}),

		// Configuration Metrics
		ConfigRefreshes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grepstream_config_refreshes_total",
				Help: "The total number of config id refresh attempts, by result",
			},
			[]string{"result"},
		),
		FilterSetReloads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grepstream_filterset_reloads_total",
				Help: "The total number of filter set file reloads, by result",
			},
			[]string{"result"},
		),

		// API Metrics
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grepstream_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grepstream_api_request_duration_seconds",
				Help:    "The duration of API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grepstream_api_errors_total",
				Help: "The total number of API errors",
			},
			[]string{"method", "path", "error_type"},
		),
	}
}
