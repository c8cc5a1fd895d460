package engine

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ayusman/natya/internal/features"
)

// Kind classifies an Output.
type Kind string

const (
	// KindPrediction carries a predicted label.
	KindPrediction Kind = "prediction"
	// KindCondition carries an error shown in place of a label.
	KindCondition Kind = "condition"
	// KindRecorded reports a vector appended to the training set.
	KindRecorded Kind = "recorded"
	// KindRefit reports the result of a refit.
	KindRefit Kind = "refit"
)

// Output is what the engine hands to the display side.
type Output struct {
	Kind  Kind
	Label string
	Err   error
	At    time.Time
	// Took is set on refit outputs.
	Took time.Duration
	// Vector is the recorded feature vector on recorded outputs.
	Vector features.Vector
}

// Condition returns the display name of o.Err, or "" when there is none.
func (o Output) Condition() string {
	return Condition(o.Err)
}

type outputJSON struct {
	Kind      Kind      `json:"kind"`
	Label     string    `json:"label,omitempty"`
	Condition string    `json:"condition,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
	TookMS    float64   `json:"took_ms,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (o Output) MarshalJSON() ([]byte, error) {
	out := outputJSON{
		Kind:      o.Kind,
		Label:     o.Label,
		Condition: o.Condition(),
		At:        o.At,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	if o.Took > 0 {
		out.TookMS = float64(o.Took) / float64(time.Millisecond)
	}
	return json.Marshal(out)
}

// Sink receives outputs. Publish must not block for long; it is called from
// the tick loop and the refit lane.
type Sink interface {
	Publish(Output)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Output)

// Publish calls f(o).
func (f SinkFunc) Publish(o Output) { f(o) }

// MultiSink fans outputs out to several sinks. Nil entries are skipped.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewMultiSink creates a MultiSink over sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

// Add registers another sink.
func (m *MultiSink) Add(s Sink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	m.sinks = append(m.sinks, s)
	m.mu.Unlock()
}

// Publish forwards o to every registered sink in order.
func (m *MultiSink) Publish(o Output) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sinks {
		s.Publish(o)
	}
}
