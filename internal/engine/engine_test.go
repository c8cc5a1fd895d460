package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/gesture"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := New(opts)
	t.Cleanup(e.Close)
	return e
}

// window fills a fresh buffer with the given per-axis signals and extracts
// the feature vector of the full window.
func window(t *testing.T, capacity int, x, y, z func(i int) float64) features.Vector {
	t.Helper()

	buf, err := capture.NewBuffer(capacity)
	require.NoError(t, err)

	at := time.Unix(0, 0)
	for i := 0; i < capacity; i++ {
		at = at.Add(10 * time.Millisecond)
		buf.Push(capture.AxisX, capture.Sample{Value: x(i), At: at})
		buf.Push(capture.AxisY, capture.Sample{Value: y(i), At: at})
		buf.Push(capture.AxisZ, capture.Sample{Value: z(i), At: at})
	}

	v, err := features.Extract(buf.Snapshot())
	require.NoError(t, err)
	return v
}

func constant(c float64) func(int) float64 {
	return func(int) float64 { return c }
}

// firstHalf yields a for the first four samples and b afterwards.
func firstHalf(a, b float64) func(int) float64 {
	return func(i int) float64 {
		if i < 4 {
			return a
		}
		return b
	}
}

// squareWave has period 4: 1, 1, -1, -1, ...
func squareWave(i int) float64 {
	if i%4 < 2 {
		return 1
	}
	return -1
}

func recordSession(t *testing.T, e *Engine, label string, v features.Vector, n int) {
	t.Helper()

	require.NoError(t, e.SelectLabel(label))
	require.NoError(t, e.SetRecording(true))
	for i := 0; i < n; i++ {
		out, ok := e.Ingest(v)
		require.True(t, ok)
		require.Equal(t, KindRecorded, out.Kind)
		require.Equal(t, label, out.Label)
	}
}

func TestEngine_JumpRunScenario(t *testing.T) {
	e := newTestEngine(t, Options{})

	// (1,0,0) four times then (0,1,0) four times averages to a flat 1/3
	v := window(t, 8, firstHalf(1, 0), firstHalf(0, 1), constant(0))
	v2 := window(t, 8, squareWave, constant(0), constant(0))
	require.Len(t, v, 3)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, v, 1e-12)
	assert.InDelta(t, math.Sqrt2/6, v2[1], 1e-12)

	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(Training))

	recordSession(t, e, "jump", v, 5)
	err := e.SetRecording(false)
	require.ErrorIs(t, err, gesture.ErrNotEnoughData)

	recordSession(t, e, "run", v2, 5)
	require.NoError(t, e.SetRecording(false))
	e.Flush()

	st := e.Status()
	assert.True(t, st.ModelReady)
	assert.Empty(t, st.LastRefitError)
	assert.Equal(t, []LabelStatus{{"jump", 5}, {"run", 5}}, st.Labels)

	require.NoError(t, e.SetMode(Predicting))
	require.NoError(t, e.SetRecording(true))

	out, ok := e.Ingest(v)
	require.True(t, ok)
	assert.Equal(t, KindPrediction, out.Kind)
	assert.Equal(t, "jump", out.Label)

	out, ok = e.Ingest(v2)
	require.True(t, ok)
	assert.Equal(t, KindPrediction, out.Kind)
	assert.Equal(t, "run", out.Label)
}

func TestEngine_IngestRejectsShortVector(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(Training))
	recordSession(t, e, "jump", features.Vector{0, 0, 0}, 2)

	require.NoError(t, e.SelectLabel("run"))
	out, ok := e.Ingest(features.Vector{0, 0.25})
	require.True(t, ok)
	assert.Equal(t, KindCondition, out.Kind)
	assert.ErrorIs(t, out.Err, gesture.ErrDimensionMismatch)
	assert.Equal(t, "DimensionMismatch", Condition(out.Err))

	recordSession(t, e, "run", features.Vector{0, 0.25, 0}, 2)
	require.NoError(t, e.SetRecording(false))
	e.Flush()
	st := e.Status()
	assert.True(t, st.ModelReady)
	assert.Empty(t, st.LastRefitError)
	assert.Equal(t, []LabelStatus{{"jump", 2}, {"run", 2}}, st.Labels)
}

func TestEngine_TrainingToggleWithOneLabel(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, Options{Sink: sink})

	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.SetMode(Training))
	recordSession(t, e, "jump", features.Vector{0, 0, 0}, 3)

	err := e.SetRecording(false)
	if !errors.Is(err, gesture.ErrNotEnoughData) {
		t.Fatalf("SetRecording(false) error = %v, want ErrNotEnoughData", err)
	}
	assert.False(t, e.Recording())

	e.Flush()
	assert.Empty(t, sink.outputs(), "no refit should have been queued")
	assert.False(t, e.Status().ModelReady)
}

func TestEngine_RecordingWhileInactive(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.SelectLabel("jump"))

	require.NoError(t, e.SetRecording(true))
	assert.False(t, e.Recording())

	_, ok := e.Ingest(features.Vector{1, 2, 3})
	assert.False(t, ok)

	require.NoError(t, e.SetRecording(false))
	assert.Equal(t, []LabelStatus{{"jump", 0}}, e.Status().Labels)
}

func TestEngine_StartRecordingWithoutSelection(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.SetMode(Training))

	err := e.SetRecording(true)
	assert.ErrorIs(t, err, ErrNoLabelSelected)
	assert.ErrorIs(t, err, gesture.ErrUnknownLabel)
	assert.False(t, e.Recording())
}

func TestEngine_SelectUnknownLabel(t *testing.T) {
	e := newTestEngine(t, Options{})

	err := e.SelectLabel("throw")
	assert.ErrorIs(t, err, gesture.ErrUnknownLabel)
}

func TestEngine_DuplicateLabel(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddLabel("jump"))

	assert.ErrorIs(t, e.AddLabel("jump"), gesture.ErrDuplicateLabel)
	assert.Equal(t, []string{"jump"}, e.Labels())
}

func TestEngine_PredictBeforeFit(t *testing.T) {
	e := newTestEngine(t, Options{})

	_, err := e.Predict(features.Vector{0, 0, 0})
	assert.ErrorIs(t, err, gesture.ErrModelNotReady)

	require.NoError(t, e.SetMode(Predicting))
	require.NoError(t, e.SetRecording(true))

	out, ok := e.Ingest(features.Vector{0, 0, 0})
	require.True(t, ok)
	assert.Equal(t, KindCondition, out.Kind)
	assert.Equal(t, "ModelNotReady", out.Condition())
}

func TestEngine_PredictingWithoutRecording(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.SetMode(Predicting))

	_, ok := e.Ingest(features.Vector{0, 0, 0})
	assert.False(t, ok)
}

func TestEngine_RefitNotEnoughDataKeepsModel(t *testing.T) {
	e := newTestEngine(t, Options{})
	a := features.Vector{0, 0, 0}
	b := features.Vector{0, 0.3, 0}

	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(Training))
	recordSession(t, e, "jump", a, 3)
	recordSession(t, e, "run", b, 3)
	require.NoError(t, e.Refit())

	require.NoError(t, e.SetRecording(false))
	require.NoError(t, e.RemoveLabel("run"))

	err := e.Refit()
	require.ErrorIs(t, err, gesture.ErrNotEnoughData)
	assert.Contains(t, e.Status().LastRefitError, "not enough data")

	got, err := e.Predict(b)
	require.NoError(t, err)
	assert.Equal(t, "run", got)
}

func TestEngine_RemoveLabelWhileRecording(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(Training))
	recordSession(t, e, "jump", features.Vector{1, 1}, 2)

	err := e.RemoveLabel("jump")
	assert.ErrorIs(t, err, ErrRecordingAborted)
	assert.ErrorIs(t, err, gesture.ErrUnknownLabel)

	st := e.Status()
	assert.False(t, st.Recording)
	assert.Empty(t, st.Selected)
	assert.Equal(t, []LabelStatus{{"run", 0}}, st.Labels)

	// the removed label cannot be recorded into anymore
	assert.ErrorIs(t, e.SetRecording(true), ErrNoLabelSelected)
}

func TestEngine_RemoveUnknownLabel(t *testing.T) {
	e := newTestEngine(t, Options{})
	assert.ErrorIs(t, e.RemoveLabel("throw"), gesture.ErrUnknownLabel)
}

func TestEngine_SetModeResetsRecording(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(Training))
	recordSession(t, e, "jump", features.Vector{0, 0}, 2)

	require.NoError(t, e.SetMode(Predicting))
	assert.False(t, e.Recording())
	assert.Equal(t, Predicting, e.Mode())

	require.NoError(t, e.SetMode(Training))
	assert.False(t, e.Recording())

	assert.ErrorIs(t, e.SetMode(Mode(7)), ErrInvalidMode)
	assert.Equal(t, Training, e.Mode())
}

func TestEngine_RefitPublishesOutput(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, Options{Sink: sink})

	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(Training))
	recordSession(t, e, "jump", features.Vector{0, 0}, 2)
	recordSession(t, e, "run", features.Vector{1, 1}, 2)
	require.NoError(t, e.SetRecording(false))
	e.Flush()

	outs := sink.outputs()
	require.Len(t, outs, 1)
	assert.Equal(t, KindRefit, outs[0].Kind)
	assert.NoError(t, outs[0].Err)
}

func TestEngine_RefitBusy(t *testing.T) {
	fake := newBlockingClassifier()
	e := newTestEngine(t, Options{Classifier: fake, QueueSize: 1})

	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(Training))
	recordSession(t, e, "jump", features.Vector{0}, 1)
	require.ErrorIs(t, e.SetRecording(false), gesture.ErrNotEnoughData)

	recordSession(t, e, "run", features.Vector{1}, 1)
	require.NoError(t, e.SetRecording(false))
	<-fake.started

	// the lane is busy with the first refit; one more fits in the queue
	recordSession(t, e, "run", features.Vector{1}, 1)
	require.NoError(t, e.SetRecording(false))

	recordSession(t, e, "run", features.Vector{1}, 1)
	err := e.SetRecording(false)
	assert.ErrorIs(t, err, ErrRefitBusy)
	assert.False(t, e.Recording())

	// ticks keep flowing while the lane is blocked
	require.NoError(t, e.SetRecording(true))
	_, ok := e.Ingest(features.Vector{1})
	assert.True(t, ok)
	require.NoError(t, e.SetMode(Inactive))

	close(fake.release)
	e.Flush()
	assert.Equal(t, 2, fake.fits())
}

func TestEngine_Closed(t *testing.T) {
	e := New(Options{})
	e.Close()
	e.Close()

	assert.ErrorIs(t, e.Refit(), ErrClosed)
	e.Flush()
}

func TestEngine_CloseAbandonsRunningFit(t *testing.T) {
	fake := newBlockingClassifier()
	sink := &recordingSink{}
	e := New(Options{Classifier: fake, Sink: sink})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.SelectLabel("jump"))
	require.NoError(t, e.SetMode(Training))
	require.NoError(t, e.SetRecording(true))
	e.Ingest(features.Vector{1, 0})

	refitErr := make(chan error, 1)
	go func() { refitErr <- e.Refit() }()
	<-fake.started

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return while a fit was running")
	}

	select {
	case err := <-refitErr:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Refit() did not return after Close()")
	}
	assert.Zero(t, fake.fits())
	for _, o := range sink.outputs() {
		assert.NotEqual(t, KindRefit, o.Kind)
	}
}

func TestEngine_ConcurrentIngestAndControl(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SelectLabel("jump"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			e.Ingest(features.Vector{float64(i % 3), 0})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = e.SetMode(Mode(i % 3))
			_ = e.SetRecording(i%2 == 0)
			_ = e.Status()
		}
	}()
	wg.Wait()
	e.Flush()
}

func TestCondition(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{gesture.ErrNotEnoughData, "NotEnoughData"},
		{gesture.ErrModelNotReady, "ModelNotReady"},
		{gesture.ErrUnknownLabel, "UnknownLabel"},
		{gesture.ErrDuplicateLabel, "DuplicateLabel"},
		{ErrNoLabelSelected, "NoLabelSelected"},
		{ErrRecordingAborted, "RecordingAborted"},
		{capture.ErrWindowNotFull, "WindowNotFull"},
		{features.ErrSignalTooShort, "SignalTooShort"},
		{features.ErrMismatchedBufferLengths, "MismatchedBufferLengths"},
		{ErrRefitBusy, "RefitBusy"},
		{errors.New("boom"), "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Condition(tt.err))
		})
	}
}

func TestOutput_MarshalJSON(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	b, err := json.Marshal(Output{Kind: KindPrediction, Label: "jump", At: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"prediction","label":"jump","at":"2026-01-02T03:04:05Z"}`, string(b))

	b, err = json.Marshal(Output{Kind: KindCondition, Err: gesture.ErrModelNotReady, At: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"condition","condition":"ModelNotReady","error":"model not ready","at":"2026-01-02T03:04:05Z"}`, string(b))
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Inactive, Training, Predicting} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMode(" Training ")
	require.NoError(t, err)
	assert.Equal(t, Training, got)

	_, err = ParseMode("sleeping")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, nil)
	m.Add(b)

	m.Publish(Output{Kind: KindPrediction, Label: "run"})

	assert.Len(t, a.outputs(), 1)
	assert.Len(t, b.outputs(), 1)
}

type recordingSink struct {
	mu  sync.Mutex
	out []Output
}

func (s *recordingSink) Publish(o Output) {
	s.mu.Lock()
	s.out = append(s.out, o)
	s.mu.Unlock()
}

func (s *recordingSink) outputs() []Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Output(nil), s.out...)
}

// blockingClassifier blocks every Fit until release is closed or the fit is
// canceled.
type blockingClassifier struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu    sync.Mutex
	count int
}

func newBlockingClassifier() *blockingClassifier {
	return &blockingClassifier{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *blockingClassifier) Fit(ctx context.Context, _ []features.Vector, _ []string) error {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return nil
}

func (c *blockingClassifier) Predict(features.Vector) (string, error) {
	return "", gesture.ErrModelNotReady
}

func (c *blockingClassifier) Ready() bool { return false }

func (c *blockingClassifier) fits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
