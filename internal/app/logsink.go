package app

import (
	"github.com/rs/zerolog"

	"github.com/ayusman/natya/internal/engine"
)

// LogSink returns a sink that writes every output to logger. Recorded
// vectors go to debug, refit failures and conditions to warn.
func LogSink(logger zerolog.Logger) engine.Sink {
	return engine.SinkFunc(func(o engine.Output) {
		var ev *zerolog.Event
		switch {
		case o.Kind == engine.KindRecorded:
			ev = logger.Debug().Int("dims", len(o.Vector))
		case o.Err != nil:
			ev = logger.Warn().Err(o.Err).Str("condition", o.Condition())
		default:
			ev = logger.Info()
		}
		if o.Label != "" {
			ev = ev.Str("label", o.Label)
		}
		if o.Kind == engine.KindRefit {
			ev = ev.Dur("took", o.Took)
		}
		ev.Str("kind", string(o.Kind)).Msg("output")
	})
}
