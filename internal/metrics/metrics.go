// Package metrics provides Prometheus metrics for the recognition pipeline.
//
// All methods are safe to call on a nil *Metrics, so components can run
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/engine"
)

// Metrics holds all Prometheus metrics for natya.
type Metrics struct {
	Ticks         prometheus.Counter     // pipeline ticks that produced a feature vector attempt
	TickErrors    *prometheus.CounterVec // ticks that failed, by reason
	Samples       *prometheus.CounterVec // accelerometer readings pushed, by axis
	Recorded      *prometheus.CounterVec // vectors appended to the training set, by label
	Predictions   *prometheus.CounterVec // predictions, by label
	Conditions    *prometheus.CounterVec // conditions shown instead of a label
	Refits        *prometheus.CounterVec // refits, by result
	RefitDuration prometheus.Histogram   // classifier fit duration
	Mode          prometheus.Gauge       // current engine mode (0 inactive, 1 training, 2 predicting)
	StreamClients prometheus.Gauge       // connected prediction stream clients
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics registered with registerer.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "natya_ticks_total",
			Help: "Total number of pipeline ticks",
		}),
		TickErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "natya_tick_errors_total",
			Help: "Total number of ticks that failed to produce a feature vector",
		}, []string{"reason"}),
		Samples: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "natya_samples_total",
			Help: "Total number of accelerometer readings received",
		}, []string{"axis"}),
		Recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "natya_recorded_vectors_total",
			Help: "Total number of feature vectors recorded for training",
		}, []string{"label"}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "natya_predictions_total",
			Help: "Total number of predicted labels",
		}, []string{"label"}),
		Conditions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "natya_conditions_total",
			Help: "Total number of conditions reported instead of a label",
		}, []string{"condition"}),
		Refits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "natya_refits_total",
			Help: "Total number of classifier refits",
		}, []string{"result"}),
		RefitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "natya_refit_duration_seconds",
			Help:    "Duration of classifier refits in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		Mode: factory.NewGauge(prometheus.GaugeOpts{
			Name: "natya_mode",
			Help: "Current engine mode (0 inactive, 1 training, 2 predicting)",
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "natya_stream_clients",
			Help: "Number of connected prediction stream clients",
		}),
	}
}

// Tick counts one pipeline tick.
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

// TickError counts a failed tick.
func (m *Metrics) TickError(err error) {
	if m == nil {
		return
	}
	m.TickErrors.WithLabelValues(engine.Condition(err)).Inc()
}

// Sample counts one reading on axis.
func (m *Metrics) Sample(axis capture.Axis) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(axis.String()).Inc()
}

// SetMode records the current engine mode.
func (m *Metrics) SetMode(mode engine.Mode) {
	if m == nil {
		return
	}
	m.Mode.Set(float64(mode))
}

// SetStreamClients records the number of stream clients.
func (m *Metrics) SetStreamClients(n int) {
	if m == nil {
		return
	}
	m.StreamClients.Set(float64(n))
}

// Publish implements engine.Sink.
func (m *Metrics) Publish(o engine.Output) {
	if m == nil {
		return
	}

	switch o.Kind {
	case engine.KindPrediction:
		m.Predictions.WithLabelValues(o.Label).Inc()
	case engine.KindRecorded:
		m.Recorded.WithLabelValues(o.Label).Inc()
	case engine.KindCondition:
		m.Conditions.WithLabelValues(o.Condition()).Inc()
	case engine.KindRefit:
		result := "ok"
		if o.Err != nil {
			result = o.Condition()
		}
		m.Refits.WithLabelValues(result).Inc()
		m.RefitDuration.Observe(o.Took.Seconds())
	}
}
