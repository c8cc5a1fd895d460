// Package app wires a sensor source, the sample buffer, feature extraction
// and the recognition engine into a running pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/engine"
	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/metrics"
	"github.com/ayusman/natya/internal/sensor"
)

// Pipeline timing defaults.
const (
	// DefaultTick is the interval between feature extractions.
	DefaultTick = 50 * time.Millisecond
	// DefaultRetryDelay is the wait before restarting a failed source.
	DefaultRetryDelay = time.Second
)

// Config holds configuration options for the application.
type Config struct {
	Capacity   int
	Tick       time.Duration
	RetryDelay time.Duration
	Source     sensor.Source
	SVM        gesture.SVMConfig
	Labels     []string
	Metrics    *metrics.Metrics
	Sinks      []engine.Sink
}

// App is the running pipeline: source readings go into the buffer, and every
// tick the buffer window is turned into a feature vector for the engine.
type App struct {
	config    Config
	buffer    *capture.Buffer
	extractor *features.Extractor
	engine    *engine.Engine
	sink      *engine.MultiSink
	metrics   *metrics.Metrics
	tickLog   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an App and registers the initial labels.
func New(config Config) (*App, error) {
	if config.Capacity == 0 {
		config.Capacity = capture.DefaultCapacity
	}
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}

	buf, err := capture.NewBuffer(config.Capacity)
	if err != nil {
		return nil, err
	}

	sink := engine.NewMultiSink()
	if config.Metrics != nil {
		sink.Add(config.Metrics)
	}
	for _, s := range config.Sinks {
		sink.Add(s)
	}

	a := &App{
		config:    config,
		buffer:    buf,
		extractor: features.NewExtractor(),
		sink:      sink,
		metrics:   config.Metrics,
		tickLog: log.With().Str("component", "pipeline").Logger().
			Sample(&zerolog.BurstSampler{Burst: 5, Period: 10 * time.Second}),
	}
	a.engine = engine.New(engine.Options{
		Classifier: gesture.NewSVM(config.SVM),
		Sink:       sink,
	})

	for _, l := range config.Labels {
		if err := a.engine.AddLabel(l); err != nil {
			a.engine.Close()
			return nil, fmt.Errorf("register label %q: %w", l, err)
		}
	}

	return a, nil
}

// Engine returns the recognition engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Buffer returns the sample buffer.
func (a *App) Buffer() *capture.Buffer {
	return a.buffer
}

// AddSink registers another output sink.
func (a *App) AddSink(s engine.Sink) {
	a.sink.Add(s)
}

// Push appends one reading to the buffer.
func (a *App) Push(r sensor.Reading) {
	a.buffer.Push(r.Axis, r.Sample())
	a.metrics.Sample(r.Axis)
}

// Start runs the source and the tick loop until Stop is called or ctx ends.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.config.Source == nil {
		return errors.New("no sensor source configured")
	}

	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(2)
	go a.runSource(ctx)
	go a.runPipeline(ctx)

	log.Info().Str("source", a.config.Source.Name()).Int("capacity", a.config.Capacity).
		Dur("tick", a.config.Tick).Msg("pipeline started")
	return nil
}

// Stop halts the source and the tick loop and waits for them to exit.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()

	log.Info().Msg("pipeline stopped")
}

// Close stops the pipeline and the engine's refit lane.
func (a *App) Close() {
	a.Stop()
	a.engine.Close()
}

// runSource keeps the source running, restarting it after failures.
func (a *App) runSource(ctx context.Context) {
	defer a.wg.Done()

	src := a.config.Source
	for {
		err := src.Run(ctx, a.Push)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			log.Info().Str("source", src.Name()).Msg("source finished")
			return
		}

		log.Error().Err(err).Str("source", src.Name()).Dur("retry", a.config.RetryDelay).Msg("source failed")
		a.buffer.Reset()

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.config.RetryDelay):
		}
	}
}
