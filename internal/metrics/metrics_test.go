package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/engine"
	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/gesture"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Tick()
		m.TickError(errors.New("boom"))
		m.Sample(capture.AxisX)
		m.SetMode(engine.Training)
		m.SetStreamClients(3)
		m.Publish(engine.Output{Kind: engine.KindPrediction, Label: "jump"})
	})
}

func TestMetrics_Ticks(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.Tick()
	m.Tick()
	m.TickError(features.ErrSignalTooShort)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickErrors.WithLabelValues("SignalTooShort")))
}

func TestMetrics_Samples(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.Sample(capture.AxisX)
	m.Sample(capture.AxisX)
	m.Sample(capture.AxisZ)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Samples.WithLabelValues("x")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Samples.WithLabelValues("z")))
}

func TestMetrics_Publish(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.Publish(engine.Output{Kind: engine.KindPrediction, Label: "jump"})
	m.Publish(engine.Output{Kind: engine.KindPrediction, Label: "jump"})
	m.Publish(engine.Output{Kind: engine.KindRecorded, Label: "run"})
	m.Publish(engine.Output{Kind: engine.KindCondition, Err: gesture.ErrModelNotReady})
	m.Publish(engine.Output{Kind: engine.KindRefit, Took: 20 * time.Millisecond})
	m.Publish(engine.Output{Kind: engine.KindRefit, Err: gesture.ErrNotEnoughData})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("jump")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recorded.WithLabelValues("run")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conditions.WithLabelValues("ModelNotReady")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refits.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refits.WithLabelValues("NotEnoughData")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RefitDuration, "natya_refit_duration_seconds"))
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.SetMode(engine.Predicting)
	m.SetStreamClients(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mode))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.StreamClients))
}
