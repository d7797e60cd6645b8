// Package metrics collects Prometheus metrics for the signup service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the service exports.
type Collector struct {
	signups        *prometheus.CounterVec
	signupAttempts prometheus.Histogram
	decisions      *prometheus.CounterVec
	outboxSent     prometheus.Counter
	outboxFailed   prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sauna_signups_total",
			Help: "Signup submissions by outcome",
		}, []string{"result"}),
		signupAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sauna_signup_tx_attempts",
			Help:    "Transaction attempts needed per signup submission",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sauna_signup_decisions_total",
			Help: "Admin decisions on signups by outcome",
		}, []string{"decision", "result"}),
		outboxSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sauna_outbox_published_total",
			Help: "Outbox messages published to the stream",
		}),
		outboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sauna_outbox_publish_failures_total",
			Help: "Outbox messages that failed to publish",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		c.signups,
		c.signupAttempts,
		c.decisions,
		c.outboxSent,
		c.outboxFailed,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// RecordSignup counts one submission. attempts is 0 when the request never
// reached the store.
func (c *Collector) RecordSignup(result string, attempts int) {
	c.signups.WithLabelValues(result).Inc()
	if attempts > 0 {
		c.signupAttempts.Observe(float64(attempts))
	}
}

// RecordDecision counts one approve or reject call.
func (c *Collector) RecordDecision(decision, result string) {
	c.decisions.WithLabelValues(decision, result).Inc()
}

// RecordOutbox counts one publish attempt.
func (c *Collector) RecordOutbox(ok bool) {
	if ok {
		c.outboxSent.Inc()
		return
	}
	c.outboxFailed.Inc()
}

// RecordHTTP records a finished HTTP request.
func (c *Collector) RecordHTTP(route, method string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
