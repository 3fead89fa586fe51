package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Heartbeat ingestion metrics
	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpufabric_heartbeats_total",
			Help: "Total number of heartbeat records processed by outcome",
		},
		[]string{"outcome"},
	)

	HeartbeatBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gpufabric_heartbeat_batch_size",
			Help:    "Number of heartbeat messages pulled per JetStream fetch",
			Buckets: prometheus.LinearBuckets(0, 10, 15),
		},
	)

	HeartbeatProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gpufabric_heartbeat_process_duration_seconds",
			Help:    "Time to process a single heartbeat record end to end",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"result"},
	)

	// Sweeper metrics
	SweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpufabric_sweep_runs_total",
			Help: "Total number of stale-device sweep cycles executed",
		},
	)

	SweepClientsMarkedOffline = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpufabric_sweep_clients_marked_offline_total",
			Help: "Total number of clients transitioned to offline by the sweeper",
		},
	)

	// Device state metrics
	ClientsOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpufabric_clients_online",
			Help: "Number of clients currently in online status",
		},
	)

	// Model catalog metrics
	CatalogLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpufabric_catalog_lookups_total",
			Help: "Total model catalog lookups by cache result",
		},
		[]string{"cache"},
	)

	CatalogCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpufabric_catalog_cache_size",
			Help: "Current number of entries held in the hot model cache",
		},
	)

	// Downloader metrics
	DownloadBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpufabric_download_bytes_total",
			Help: "Total bytes transferred by the model downloader",
		},
		[]string{"model"},
	)

	DownloadChunkRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpufabric_download_chunk_retries_total",
			Help: "Total chunk download retries by reason",
		},
		[]string{"reason"},
	)

	// Engine/plugin metrics
	EnginePluginRPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gpufabric_engine_plugin_rpc_duration_seconds",
			Help:    "Inference engine plugin RPC call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"plugin", "method"},
	)

	EnginePluginErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpufabric_engine_plugin_errors_total",
			Help: "Inference engine plugin error count",
		},
		[]string{"plugin", "error_type"},
	)

	// API metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpufabric_http_requests_total",
			Help: "Total HTTP requests by method and path",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gpufabric_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		HeartbeatsTotal,
		HeartbeatBatchSize,
		HeartbeatProcessDuration,
		SweepRunsTotal,
		SweepClientsMarkedOffline,
		ClientsOnline,
		CatalogLookupsTotal,
		CatalogCacheSize,
		DownloadBytesTotal,
		DownloadChunkRetries,
		EnginePluginRPCDuration,
		EnginePluginErrors,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentHandler wraps an http.Handler with prometheus metrics
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath reduces cardinality by removing IDs from paths
func normalizePath(path string) string {
	parts := []string{}
	for _, part := range splitPath(path) {
		if isUUID(part) || isNumeric(part) {
			parts = append(parts, ":id")
		} else {
			parts = append(parts, part)
		}
	}
	result := "/" + joinPath(parts)
	if result == "/" {
		return "/"
	}
	return result
}

func splitPath(path string) []string {
	result := []string{}
	current := ""
	for _, c := range path {
		if c == '/' {
			if current != "" {
				result = append(result, current)
				current = ""
			}
		} else {
			current += string(c)
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}

func joinPath(parts []string) string {
	result := ""
	for i, p := range parts {
		if i > 0 {
			result += "/"
		}
		result += p
	}
	return result
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return false
	}
	return true
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
