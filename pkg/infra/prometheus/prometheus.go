package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	RequestTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "iobridge_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"method", "status"},
	)

	ActiveSessions = promauto.With(registerer).NewGauge(
		prometheus.GaugeOpts{
			Name: "iobridge_active_sessions",
			Help: "Number of live sessions in the registry",
		},
	)

	SessionsCreated = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "iobridge_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsClosed = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "iobridge_sessions_closed_total",
			Help: "Total number of sessions removed after closing",
		},
	)

	SessionsEvicted = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "iobridge_sessions_evicted_total",
			Help: "Total number of idle sessions evicted by the sweep",
		},
	)

	EventsPushed = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "iobridge_events_pushed_total",
			Help: "Total number of client events delivered to sessions",
		},
	)

	CommandsPulled = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "iobridge_commands_pulled_total",
			Help: "Total number of commands pulled from sessions",
		},
	)
)

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Handler serves the private registry, mounted on the metrics port.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
