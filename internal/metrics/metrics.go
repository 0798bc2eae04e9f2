// Package metrics exposes Prometheus collectors for seo-pilot runs.
package metrics

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry *prometheus.Registry

	apiRequestsTotal          *prometheus.CounterVec
	apiRequestDurationSeconds *prometheus.HistogramVec
	apiRetriesTotal           *prometheus.CounterVec
	urlsSubmittedTotal        *prometheus.CounterVec
	auditChecksTotal          *prometheus.CounterVec
	rateLimitDelaysSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors on a private registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := promauto.With(registry)

		apiRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_pilot_api_requests_total",
				Help: "Total number of outbound API requests, labeled by host and status code.",
			},
			[]string{"host", "code"},
		)

		apiRequestDurationSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seo_pilot_api_request_duration_seconds",
				Help:    "Histogram of outbound API request latencies, labeled by host.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)

		apiRetriesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_pilot_api_retries_total",
				Help: "Total number of rate-limited calls that were retried, labeled by service.",
			},
			[]string{"service"},
		)

		urlsSubmittedTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_pilot_urls_submitted_total",
				Help: "URLs submitted to indexing services, labeled by service and outcome.",
			},
			[]string{"service", "outcome"},
		)

		auditChecksTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seo_pilot_audit_checks_total",
				Help: "Audit checks executed, labeled by check and status.",
			},
			[]string{"check", "status"},
		)

		rateLimitDelaysSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seo_pilot_rate_limit_delays_seconds",
				Help:    "Histogram of pacing limiter wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// Registry returns the registry holding every seo-pilot collector.
func Registry() *prometheus.Registry {
	Init()
	return registry
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

// ObserveAPIRequest records one outbound request.
func ObserveAPIRequest(rawURL string, code int, duration time.Duration) {
	Init()
	host := SanitizeSite(rawURL)
	apiRequestsTotal.WithLabelValues(host, strconv.Itoa(code)).Inc()
	apiRequestDurationSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRetry counts a rate-limited retry for service.
func ObserveRetry(service string) {
	Init()
	apiRetriesTotal.WithLabelValues(service).Inc()
}

// ObserveSubmission records accepted and failed URL counts for service.
func ObserveSubmission(service string, accepted, failed int) {
	Init()
	if accepted > 0 {
		urlsSubmittedTotal.WithLabelValues(service, "accepted").Add(float64(accepted))
	}
	if failed > 0 {
		urlsSubmittedTotal.WithLabelValues(service, "failed").Add(float64(failed))
	}
}

// ObserveAuditCheck counts one audit check result.
func ObserveAuditCheck(check, status string) {
	Init()
	auditChecksTotal.WithLabelValues(check, status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
