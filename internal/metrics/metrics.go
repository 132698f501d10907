package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the back-office collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gatherer  prometheus.Gatherer
	requests  *prometheus.HistogramVec
	shifts    *prometheus.CounterVec
	movements *prometheus.CounterVec
}

// New registers the collectors on reg. When reg is also a Gatherer it backs
// Handler.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	shifts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_shift_events_total",
		Help: "Shift lifecycle events by event and outcome.",
	}, []string{"event", "outcome"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_inventory_movements_total",
		Help: "Inventory movements by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(requests, shifts, movements)

	m := &Metrics{requests: requests, shifts: shifts, movements: movements}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) ObserveRequest(method string, route string, status int, duration time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

func (m *Metrics) ShiftEvent(event string, err error) {
	if m == nil || m.shifts == nil {
		return
	}
	m.shifts.WithLabelValues(normalizeLabel(event), outcome(err)).Inc()
}

func (m *Metrics) InventoryMovement(kind string, err error) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(kind), outcome(err)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
