package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"fleetd/pkg/types"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleetd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fleetd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight)
}

var (
	slotsByStatusDesc = prometheus.NewDesc(
		"fleetd_fleet_slots",
		"Slots known to the orchestrator, by status",
		[]string{"status"}, nil,
	)
	liveSlotsDesc = prometheus.NewDesc(
		"fleetd_fleet_live_slots",
		"Slots currently live (starting, ready, idle or occupied)",
		nil, nil,
	)
	connectedClientsDesc = prometheus.NewDesc(
		"fleetd_fleet_connected_clients",
		"Connected players summed across all slots",
		nil, nil,
	)
	assignedCoresDesc = prometheus.NewDesc(
		"fleetd_fleet_assigned_cores",
		"CPU cores currently pinned to slots",
		nil, nil,
	)
)

// fleetCollector samples the orchestrator on every scrape so the gauges
// never go stale between API calls.
type fleetCollector struct {
	stats func() types.FleetStatus
}

func (c *fleetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- slotsByStatusDesc
	ch <- liveSlotsDesc
	ch <- connectedClientsDesc
	ch <- assignedCoresDesc
}

func (c *fleetCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()
	for status, n := range st.StatusCounts {
		ch <- prometheus.MustNewConstMetric(slotsByStatusDesc, prometheus.GaugeValue, float64(n), status)
	}
	cores := 0
	for _, s := range st.Slots {
		cores += len(s.AssignedCores)
	}
	ch <- prometheus.MustNewConstMetric(liveSlotsDesc, prometheus.GaugeValue, float64(st.LiveCount))
	ch <- prometheus.MustNewConstMetric(connectedClientsDesc, prometheus.GaugeValue, float64(st.ConnectedClients))
	ch <- prometheus.MustNewConstMetric(assignedCoresDesc, prometheus.GaugeValue, float64(cores))
}

// RegisterFleetCollector exposes fleet-level gauges backed by the given
// snapshot func. Safe to call at most once per process.
func RegisterFleetCollector(stats func() types.FleetStatus) {
	prometheus.MustRegister(&fleetCollector{stats: stats})
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
