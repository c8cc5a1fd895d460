// Package engine implements the training/prediction state machine that sits
// between feature extraction and the classifier.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/gesture"
)

// DefaultQueueSize is the default capacity of the refit lane.
const DefaultQueueSize = 4

// Options configures an Engine.
type Options struct {
	// Classifier is trained and queried by the engine. Defaults to an SVM
	// with DefaultSVMConfig.
	Classifier gesture.Classifier

	// Sink receives refit outputs. Optional.
	Sink Sink

	// QueueSize is the number of refits that may wait on the lane.
	QueueSize int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// LabelStatus reports one registered label.
type LabelStatus struct {
	Name       string `json:"name"`
	Recordings int    `json:"recordings"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	Mode           Mode          `json:"mode"`
	Recording      bool          `json:"recording"`
	Selected       string        `json:"selected,omitempty"`
	Labels         []LabelStatus `json:"labels"`
	ModelReady     bool          `json:"model_ready"`
	LastRefitError string        `json:"last_refit_error,omitempty"`
}

type refitJob struct {
	flush bool
	done  chan error
}

// Engine owns the mode, the recording flag, the selected label and the
// gesture store. One mutex guards all of them; refits run on a separate
// goroutine and swap the classifier model atomically.
type Engine struct {
	mu           sync.Mutex
	mode         Mode
	recording    bool
	selected     string
	store        *gesture.Store
	lastRefitErr error

	classifier gesture.Classifier
	sink       Sink
	now        func() time.Time

	jobs      chan refitJob
	ctx       context.Context
	cancel    context.CancelFunc
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an Engine in Inactive mode and starts its refit lane.
func New(opts Options) *Engine {
	if opts.Classifier == nil {
		opts.Classifier = gesture.NewSVM(gesture.DefaultSVMConfig())
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		ctx:        ctx,
		cancel:     cancel,
		mode:       Inactive,
		store:      gesture.NewStore(),
		classifier: opts.Classifier,
		sink:       opts.Sink,
		now:        opts.Now,
		jobs:       make(chan refitJob, opts.QueueSize),
		stop:       make(chan struct{}),
	}

	e.wg.Add(1)
	go e.refitLoop()

	return e
}

// Close stops the refit lane. A fit in progress is abandoned and refits
// still waiting in the queue are dropped; the current model stays.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		close(e.stop)
	})
	e.wg.Wait()
}

// Mode returns the current mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches to m from any mode. Recording always resets to false and
// no refit is queued.
func (e *Engine) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.mode = m
	e.recording = false
	return nil
}

// AddLabel registers a new label.
func (e *Engine) AddLabel(label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.AddLabel(label)
}

// RemoveLabel unregisters label and drops its recordings. Removing the label
// that is being recorded ends the session without a refit and returns
// ErrRecordingAborted once the label is gone.
func (e *Engine) RemoveLabel(label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.RemoveLabel(label); err != nil {
		return err
	}

	if e.selected != label {
		return nil
	}
	e.selected = ""
	if e.mode == Training && e.recording {
		e.recording = false
		return fmt.Errorf("%w: label %q removed", ErrRecordingAborted, label)
	}
	return nil
}

// SelectLabel chooses the label that training sessions record into.
func (e *Engine) SelectLabel(label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.Has(label) {
		return fmt.Errorf("%w: %q", gesture.ErrUnknownLabel, label)
	}
	e.selected = label
	return nil
}

// Labels returns the registered labels in registration order.
func (e *Engine) Labels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Labels()
}

// SetRecording starts or ends a recording session.
//
// In Inactive mode it does nothing. In Training mode, starting requires a
// selected label and ending a session queues a refit over the whole store,
// or returns ErrNotEnoughData when fewer than two labels have recordings.
// In Predicting mode it toggles whether vectors are classified.
func (e *Engine) SetRecording(on bool) error {
	e.mu.Lock()

	switch e.mode {
	case Inactive:
		e.mu.Unlock()
		return nil

	case Predicting:
		e.recording = on
		e.mu.Unlock()
		return nil
	}

	if on {
		defer e.mu.Unlock()
		if e.recording {
			return nil
		}
		if e.selected == "" || !e.store.Has(e.selected) {
			return ErrNoLabelSelected
		}
		e.recording = true
		return nil
	}

	if !e.recording {
		e.mu.Unlock()
		return nil
	}
	e.recording = false
	withData := len(e.store.LabelsWithRecordings())
	e.mu.Unlock()

	if withData < 2 {
		return fmt.Errorf("%w: %d labels with recordings, need 2", gesture.ErrNotEnoughData, withData)
	}
	return e.enqueue(refitJob{})
}

// Recording reports whether a session is in progress.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// Listening reports whether Ingest would currently consume a vector.
func (e *Engine) Listening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording && e.mode != Inactive
}

// Ingest feeds one feature vector through the state machine. The boolean is
// false when the vector was ignored.
func (e *Engine) Ingest(v features.Vector) (Output, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.recording {
		return Output{}, false
	}

	switch e.mode {
	case Training:
		if err := e.store.Record(e.selected, v); err != nil {
			return Output{Kind: KindCondition, Err: err, At: e.now()}, true
		}
		return Output{Kind: KindRecorded, Label: e.selected, At: e.now(), Vector: v.Clone()}, true

	case Predicting:
		label, err := e.classifier.Predict(v)
		if err != nil {
			return Output{Kind: KindCondition, Err: err, At: e.now()}, true
		}
		return Output{Kind: KindPrediction, Label: label, At: e.now()}, true
	}

	return Output{}, false
}

// Predict classifies v with the current model regardless of mode.
func (e *Engine) Predict(v features.Vector) (string, error) {
	return e.classifier.Predict(v)
}

// Refit retrains the classifier on the whole store and waits for the result.
// On failure the previous model stays in place.
func (e *Engine) Refit() error {
	done := make(chan error, 1)
	select {
	case e.jobs <- refitJob{done: done}:
	case <-e.stop:
		return ErrClosed
	}

	select {
	case err := <-done:
		return err
	case <-e.stop:
		return ErrClosed
	}
}

// Flush waits until every refit queued before the call has completed.
func (e *Engine) Flush() {
	done := make(chan error, 1)
	select {
	case e.jobs <- refitJob{flush: true, done: done}:
	case <-e.stop:
		return
	}

	select {
	case <-done:
	case <-e.stop:
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	labels := e.store.Labels()
	st := Status{
		Mode:       e.mode,
		Recording:  e.recording,
		Selected:   e.selected,
		Labels:     make([]LabelStatus, len(labels)),
		ModelReady: e.classifier.Ready(),
	}
	for i, l := range labels {
		st.Labels[i] = LabelStatus{Name: l, Recordings: e.store.Count(l)}
	}
	if e.lastRefitErr != nil {
		st.LastRefitError = e.lastRefitErr.Error()
	}
	return st
}

func (e *Engine) enqueue(job refitJob) error {
	select {
	case <-e.stop:
		return ErrClosed
	default:
	}

	select {
	case e.jobs <- job:
		return nil
	default:
		return ErrRefitBusy
	}
}

func (e *Engine) refitLoop() {
	defer e.wg.Done()

	for {
		select {
		case job := <-e.jobs:
			var err error
			if !job.flush {
				err = e.refit()
			}
			if job.done != nil {
				job.done <- err
			}
		case <-e.stop:
			return
		}
	}
}

// refit copies the store under the lock and fits outside it.
func (e *Engine) refit() error {
	e.mu.Lock()
	samples, labels := e.store.AllSamplesAndLabels()
	e.mu.Unlock()

	start := e.now()
	err := e.classifier.Fit(e.ctx, samples, labels)
	took := e.now().Sub(start)
	if e.ctx.Err() != nil {
		return ErrClosed
	}

	e.mu.Lock()
	e.lastRefitErr = err
	e.mu.Unlock()

	if e.sink != nil {
		e.sink.Publish(Output{Kind: KindRefit, Err: err, At: e.now(), Took: took})
	}
	return err
}
