package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartbook",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smartbook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	recommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartbook",
			Subsystem: "recommend",
			Name:      "generated_total",
			Help:      "Recommendations generated, by the path that produced them",
		},
		[]string{"source"},
	)

	recommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smartbook",
			Subsystem: "recommend",
			Name:      "duration_seconds",
			Help:      "Time spent generating a recommendation",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
	)

	assistantFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartbook",
			Subsystem: "recommend",
			Name:      "assistant_failures_total",
			Help:      "External assistant failures that triggered the heuristic fallback",
		},
		[]string{"kind"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartbook",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notifications dispatched",
		},
		[]string{"type", "method"},
	)

	remindersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartbook",
			Subsystem: "reminders",
			Name:      "created_total",
			Help:      "Reminder notifications created by the scheduler",
		},
	)

	calendarSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartbook",
			Subsystem: "calendar",
			Name:      "syncs_total",
			Help:      "Calendar sync operations per provider",
		},
		[]string{"provider", "action"},
	)

	outboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartbook",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events written to Kafka",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by the matched mux pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordRecommendation(source string, d time.Duration) {
	recommendationsTotal.WithLabelValues(source).Inc()
	recommendationDuration.Observe(d.Seconds())
}

func RecordAssistantFailure(kind string) {
	assistantFailures.WithLabelValues(kind).Inc()
}

func RecordNotificationSent(typ, method string) {
	notificationsSent.WithLabelValues(typ, method).Inc()
}

func RecordRemindersCreated(n int) {
	remindersCreated.Add(float64(n))
}

func RecordCalendarSync(provider, action string) {
	calendarSyncs.WithLabelValues(provider, action).Inc()
}

func RecordOutboxPublished(n int) {
	outboxPublished.Add(float64(n))
}
