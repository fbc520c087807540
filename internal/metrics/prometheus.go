package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_submissions_total",
			Help: "Accepted lead submissions by storage outcome",
		},
		[]string{"outcome"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_notifications_total",
			Help: "Notification email attempts by kind and status",
		},
		[]string{"kind", "status"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_events_published_total",
			Help: "lead.captured events published to RabbitMQ by status",
		},
		[]string{"status"},
	)

	EventQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leads_event_queue_depth",
			Help: "Current RabbitMQ depth of the lead events queue",
		},
	)

	WriterQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leads_writer_queue_depth",
			Help: "Inserts waiting for the serial writer",
		},
	)

	WriterAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_writer_appends_total",
			Help: "Inserts processed by the serial writer by result",
		},
		[]string{"result"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leads_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventQueueDepth)
	prometheus.MustRegister(WriterQueueDepth)
	prometheus.MustRegister(WriterAppends)
	prometheus.MustRegister(RequestDuration)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
