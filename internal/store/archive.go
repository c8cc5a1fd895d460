package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/natya/internal/engine"
)

// DefaultArchiveQueue is the number of outputs an Archive buffers before
// dropping.
const DefaultArchiveQueue = 256

// Archive writes engine outputs of one session to the store. Publish never
// blocks; a background goroutine performs the inserts.
type Archive struct {
	store   *Store
	session *Session

	queue     chan engine.Output
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	dropped int
}

// NewArchive starts a new session and its writer goroutine.
func NewArchive(s *Store, queueSize int) (*Archive, error) {
	if queueSize <= 0 {
		queueSize = DefaultArchiveQueue
	}

	sess := &Session{}
	if err := s.Sessions().Create(sess); err != nil {
		return nil, err
	}

	a := &Archive{
		store:   s,
		session: sess,
		queue:   make(chan engine.Output, queueSize),
		done:    make(chan struct{}),
	}
	go a.run()

	log.Info().Str("session", sess.ID).Str("path", s.Path()).Msg("archiving session")
	return a, nil
}

// SessionID returns the ID of the archived session.
func (a *Archive) SessionID() string {
	return a.session.ID
}

// Publish implements engine.Sink.
func (a *Archive) Publish(o engine.Output) {
	select {
	case a.queue <- o:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

// Dropped returns how many outputs were discarded because the queue was full.
func (a *Archive) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close writes everything queued, marks the session as ended and stops the
// writer. It does not close the store. Publish must not be called after Close.
func (a *Archive) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.queue)
		<-a.done
		err = a.store.Sessions().End(a.session.ID, time.Now())
	})
	return err
}

func (a *Archive) run() {
	defer close(a.done)

	for o := range a.queue {
		if err := a.write(o); err != nil {
			log.Warn().Err(err).Str("session", a.session.ID).Str("kind", string(o.Kind)).Msg("archive write failed")
		}
	}
}

func (a *Archive) write(o engine.Output) error {
	if o.Kind == engine.KindRecorded {
		return a.store.Recordings().Add(&Recording{
			SessionID:  a.session.ID,
			Label:      o.Label,
			Vector:     o.Vector,
			RecordedAt: o.At,
		})
	}
	return a.store.Outputs().Add(a.session.ID, o)
}
