// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the scrape handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics are the bridge counters. A nil *AppMetrics is valid and records nothing.
type AppMetrics struct {
	FramesTotal        *prometheus.CounterVec // labels: device, kind
	FramingErrorsTotal *prometheus.CounterVec // labels: device, reason
	QueryRetriesTotal  *prometheus.CounterVec // labels: device
	CyclesTotal        *prometheus.CounterVec // labels: device, phase
	MQTTState          prometheus.Gauge
	PublishTotal       *prometheus.CounterVec // labels: result
	TransportLostTotal prometheus.Counter
}

// NewAppMetrics registers and returns the bridge metrics.
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtu_frames_total",
			Help: "Modbus RTU frames classified, by device and kind.",
		}, []string{"device", "kind"}),
		FramingErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtu_framing_errors_total",
			Help: "Modbus RTU frames discarded, by device and reason.",
		}, []string{"device", "reason"}),
		QueryRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_query_retries_total",
			Help: "Queries re-sent after the response timeout.",
		}, []string{"device"}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_cycles_total",
			Help: "Completed acquisition cycles, by device and phase.",
		}, []string{"device", "phase"}),
		MQTTState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_session_state",
			Help: "Current MQTT session state (0=tcp_disconnected .. 4=subscribed).",
		}),
		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_publish_total",
			Help: "MQTT publish attempts, by result.",
		}, []string{"result"}),
		TransportLostTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_transport_lost_total",
			Help: "Broker connections lost.",
		}),
	}
	reg.MustRegister(
		m.FramesTotal,
		m.FramingErrorsTotal,
		m.QueryRetriesTotal,
		m.CyclesTotal,
		m.MQTTState,
		m.PublishTotal,
		m.TransportLostTotal,
	)
	return m
}

func (m *AppMetrics) Frame(device, kind string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(device, kind).Inc()
}

func (m *AppMetrics) FramingError(device, reason string) {
	if m == nil {
		return
	}
	m.FramingErrorsTotal.WithLabelValues(device, reason).Inc()
}

func (m *AppMetrics) QueryRetry(device string) {
	if m == nil {
		return
	}
	m.QueryRetriesTotal.WithLabelValues(device).Inc()
}

func (m *AppMetrics) Cycle(device, phase string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(device, phase).Inc()
}

func (m *AppMetrics) SetMQTTState(state int) {
	if m == nil {
		return
	}
	m.MQTTState.Set(float64(state))
}

func (m *AppMetrics) Publish(result string) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(result).Inc()
}

func (m *AppMetrics) TransportLost() {
	if m == nil {
		return
	}
	m.TransportLostTotal.Inc()
}
