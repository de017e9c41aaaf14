// Package metrics exposes Prometheus instrumentation for the sync client.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/clinicsync/pkg/status"
)

const namespace = "clinicsync"

// Metrics holds the client collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	framesReceived    *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
	unroutable        *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	sendsDropped      prometheus.Counter
	connectionState   prometheus.Gauge
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered are reused, so several clients can share one
// registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{}
	var err error

	if m.framesReceived, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames decoded successfully, by kind",
		},
		[]string{"kind"},
	)); err != nil {
		return nil, err
	}

	if m.decodeErrors, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames rejected by the decoder, by reason",
		},
		[]string{"reason"},
	)); err != nil {
		return nil, err
	}

	if m.unroutable, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unroutable_total",
			Help:      "Decoded envelopes with no owning projection, by kind",
		},
		[]string{"kind"},
	)); err != nil {
		return nil, err
	}

	if m.reconnectAttempts, err = register(reg, prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Scheduled reconnect attempts",
		},
	)); err != nil {
		return nil, err
	}

	if m.sendsDropped, err = register(reg, prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_dropped_total",
			Help:      "Outbound frames dropped because the transport was not open",
		},
	)); err != nil {
		return nil, err
	}

	if m.connectionState, err = register(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Connection phase: 0 disconnected, 1 reconnecting, 2 connected",
		},
	)); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// FrameReceived counts a decoded frame.
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

// DecodeError counts a rejected frame.
func (m *Metrics) DecodeError(reason string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(reason).Inc()
}

// Unroutable counts an envelope no projection owns.
func (m *Metrics) Unroutable(kind string) {
	if m == nil {
		return
	}
	m.unroutable.WithLabelValues(kind).Inc()
}

// ReconnectAttempt counts a scheduled retry.
func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// SendDropped counts a dropped outbound frame.
func (m *Metrics) SendDropped() {
	if m == nil {
		return
	}
	m.sendsDropped.Inc()
}

// SetPhase records the connection phase.
func (m *Metrics) SetPhase(phase status.Phase) {
	if m == nil {
		return
	}
	m.connectionState.Set(PhaseValue(phase))
}

// PhaseValue maps a phase to its gauge value.
func PhaseValue(phase status.Phase) float64 {
	switch phase {
	case status.Connected:
		return 2
	case status.Reconnecting:
		return 1
	default:
		return 0
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
