package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomsync",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomsync",
		Name:      "active_rooms",
		Help:      "Number of rooms currently held in the registry",
	})

	connectedParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomsync",
		Name:      "connected_participants",
		Help:      "Number of live participant connections across all rooms",
	})

	mutationsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "mutations_relayed_total",
		Help:      "Mutation events relayed to room participants",
	}, []string{"kind"})

	persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomsync",
		Name:      "persistence_failures_total",
		Help:      "Durable store writes that failed and were not retried synchronously",
	})
)

func SetActiveRooms(n int)           { activeRooms.Set(float64(n)) }
func SetParticipants(n int)          { connectedParticipants.Set(float64(n)) }
func IncMutationRelayed(kind string) { mutationsRelayed.WithLabelValues(kind).Inc() }
func IncPersistenceFailure()         { persistenceFailures.Inc() }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working through the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("roomsync metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request counts and latency with Prometheus labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
