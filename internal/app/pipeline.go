package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/engine"
)

// runPipeline extracts a feature vector from the buffer on every tick and
// hands it to the engine.
func (a *App) runPipeline(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick()
		}
	}
}

// Tick runs one pipeline step. Nothing is extracted until the buffer holds a
// full window, so every vector has the same length. Skipped ticks and
// failures are logged and counted; the buffer is left as it is.
func (a *App) Tick() (engine.Output, bool) {
	a.metrics.Tick()
	a.metrics.SetMode(a.engine.Mode())

	if !a.engine.Listening() {
		return engine.Output{}, false
	}

	snap := a.buffer.Snapshot()
	if n := snap.Len(); n < a.buffer.Capacity() {
		err := fmt.Errorf("%w: %d of %d samples", capture.ErrWindowNotFull, n, a.buffer.Capacity())
		a.metrics.TickError(err)
		a.tickLog.Debug().Err(err).Msg("skipping tick")
		return engine.Output{}, false
	}

	v, err := a.extractor.Extract(snap)
	if err != nil {
		a.metrics.TickError(err)
		a.tickLog.Warn().Err(err).Int("samples", a.buffer.Len()).Msg("feature extraction failed")
		return engine.Output{}, false
	}

	out, ok := a.engine.Ingest(v)
	if !ok {
		return engine.Output{}, false
	}

	switch out.Kind {
	case engine.KindCondition:
		a.tickLog.Warn().Err(out.Err).Str("mode", a.engine.Mode().String()).Msg("tick produced a condition")
	case engine.KindPrediction:
		a.tickLog.Debug().Str("label", out.Label).Msg("prediction")
	}

	a.sink.Publish(out)
	return out, true
}
