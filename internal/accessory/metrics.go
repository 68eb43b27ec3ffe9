package accessory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records characteristic request outcomes and latency.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miplug_characteristic_requests_total",
			Help: "Characteristic reads and writes by outcome",
		}, []string{"service", "characteristic", "op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "miplug_characteristic_request_duration_seconds",
			Help:    "Characteristic handler latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service", "characteristic", "op"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(svc ServiceType, c CharacteristicType, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(string(svc), string(c), op, result).Inc()
	m.duration.WithLabelValues(string(svc), string(c), op).Observe(time.Since(start).Seconds())
}
