package hook

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/natya/internal/engine"
)

// Sink is an engine.Sink that runs the hook when the predicted label
// differs from the previous prediction. Runs happen one at a time on a
// background goroutine; while a run is in progress only the newest change
// is kept.
type Sink struct {
	exec *Executor

	mu   sync.Mutex
	last string

	pending   chan Request
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewSink starts the runner goroutine.
func NewSink(exec *Executor) *Sink {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		exec:    exec,
		pending: make(chan Request, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Publish implements engine.Sink.
func (s *Sink) Publish(o engine.Output) {
	if o.Kind != engine.KindPrediction {
		return
	}

	s.mu.Lock()
	if o.Label == s.last {
		s.mu.Unlock()
		return
	}
	req := Request{Label: o.Label, Previous: s.last, At: o.At}
	s.last = o.Label

	select {
	case s.pending <- req:
	default:
		select {
		case <-s.pending:
		default:
		}
		s.pending <- req
	}
	s.mu.Unlock()
}

// Close stops the runner, killing a hook that is still running.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Sink) run() {
	defer close(s.done)
	for {
		select {
		case req := <-s.pending:
			if _, err := s.exec.Execute(s.ctx, &req); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Str("label", req.Label).Msg("activity hook failed")
				continue
			}
			log.Debug().Str("label", req.Label).Str("previous", req.Previous).Msg("activity hook ran")
		case <-s.ctx.Done():
			return
		}
	}
}
