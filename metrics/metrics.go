// Package metrics provides Prometheus metrics for go-mwclient.
// It tracks API calls, retries, and the progress of paginated list
// enumerations, including continuation loops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "mwclient"
)

var (
	// APIRequests counts API calls by action and outcome
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total number of MediaWiki API calls",
	}, []string{"action", "status"})

	// APIRequestDuration measures API call latency
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_request_duration_seconds",
		Help:      "MediaWiki API call latency by action",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"action"})

	// APIRetries counts retried calls by reason (maxlag, throttled, badtoken, assert)
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_retries_total",
		Help:      "MediaWiki API call retries by reason",
	}, []string{"reason"})

	// APIErrors counts server-reported errors by code
	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_errors_total",
		Help:      "MediaWiki API errors by error code",
	}, []string{"code"})

	// ListPages counts result pages fetched by list name
	ListPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "list_pages_total",
		Help:      "Result pages fetched by list enumerations",
	}, []string{"list"})

	// ListItems counts items handed to callers by list name
	ListItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "list_items_total",
		Help:      "Items yielded by list enumerations",
	}, []string{"list"})

	// ContinuationLoops counts detected continuation loops by list and outcome
	// (failed, recovered)
	ContinuationLoops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "continuation_loops_total",
		Help:      "Continuation loops detected by list and outcome",
	}, []string{"list", "outcome"})
)

// RecordAPICall records one HTTP round trip. success is false for transport
// and HTTP status failures; errors reported in the response body are counted
// by RecordAPIError.
func RecordAPICall(action string, duration float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	APIRequests.WithLabelValues(action, status).Inc()
	APIRequestDuration.WithLabelValues(action).Observe(duration)
}

// RecordAPIError records an error the API reported with the given code
func RecordAPIError(code string) {
	APIErrors.WithLabelValues(code).Inc()
}

// RecordRetry records one retried call
func RecordRetry(reason string) {
	APIRetries.WithLabelValues(reason).Inc()
}

// RecordListPage records one fetched page and the number of items it made
// available to the caller.
func RecordListPage(list string, items int) {
	ListPages.WithLabelValues(list).Inc()
	ListItems.WithLabelValues(list).Add(float64(items))
}

// RecordLoop records a continuation loop and whether the enumeration got out of it
func RecordLoop(list string, recovered bool) {
	outcome := "failed"
	if recovered {
		outcome = "recovered"
	}
	ContinuationLoops.WithLabelValues(list, outcome).Inc()
}
