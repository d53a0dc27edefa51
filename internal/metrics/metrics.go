// Package metrics exposes Prometheus collectors for the sentinel service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sweepsTotal                *prometheus.CounterVec
	sweepDurationSeconds       prometheus.Histogram
	sweepInProgress            prometheus.Gauge
	zonesTotal                 *prometheus.CounterVec
	risksTotal                 *prometheus.CounterVec
	alertsTotal                *prometheus.CounterVec
	geocodeTotal               *prometheus.CounterVec
	extractionsTotal           *prometheus.CounterVec
	contentFetchTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sweepsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_sweeps_total",
				Help: "Total sweeps attempted, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		sweepDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentinel_sweep_duration_seconds",
				Help:    "Wall time of completed sweeps.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
		)

		sweepInProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_sweep_in_progress",
				Help: "1 while a sweep is running.",
			},
		)

		zonesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_zones_total",
				Help: "Zones processed, labeled by outcome (scanned or failed).",
			},
			[]string{"outcome"},
		)

		risksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_risks_total",
				Help: "Risks identified, labeled by severity.",
			},
			[]string{"level"},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_total",
				Help: "Alert deliveries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		geocodeTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_geocode_total",
				Help: "Coordinate resolutions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_extractions_total",
				Help: "Model extractions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		contentFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_content_fetch_total",
				Help: "Search results by where their text came from (full_text or snippet).",
			},
			[]string{"source", "site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_rate_limit_delay_seconds",
				Help:    "Histogram of outbound rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSweep records a finished sweep attempt.
func ObserveSweep(outcome string, duration time.Duration) {
	Init()
	sweepsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		sweepDurationSeconds.Observe(duration.Seconds())
	}
}

// SetSweepInProgress flips the in-progress gauge.
func SetSweepInProgress(running bool) {
	Init()
	if running {
		sweepInProgress.Set(1)
		return
	}
	sweepInProgress.Set(0)
}

// ObserveZone counts a processed zone.
func ObserveZone(outcome string) {
	Init()
	zonesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRisk counts an identified risk.
func ObserveRisk(level string) {
	Init()
	risksTotal.WithLabelValues(level).Inc()
}

// ObserveAlert counts an alert delivery attempt.
func ObserveAlert(outcome string) {
	Init()
	alertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveGeocode counts a coordinate resolution.
func ObserveGeocode(outcome string) {
	Init()
	geocodeTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtraction counts a model extraction.
func ObserveExtraction(outcome string) {
	Init()
	extractionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveContentFetch records whether a result used full text or the snippet.
func ObserveContentFetch(source, rawURL string) {
	Init()
	contentFetchTotal.WithLabelValues(source, SanitizeSite(rawURL)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}
