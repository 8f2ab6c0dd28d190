package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route pattern and status code",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "account",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	MailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "mails_total",
		Help:      "Outgoing account mails by template and outcome",
	}, []string{"template", "outcome"})

	MailQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "account",
		Name:      "mail_queue_depth",
		Help:      "Mails waiting for a delivery worker",
	})

	OutboxEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "outbox_events_total",
		Help:      "Outbox records handled by the relay, by outcome",
	}, []string{"outcome"})

	RegistrationsThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "registrations_throttled_total",
		Help:      "Registrations refused by the per-address gate",
	})
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequests,
			HTTPDuration,
			MailsSent,
			MailQueueDepth,
			OutboxEvents,
			RegistrationsThrottled,
		)
	})
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
