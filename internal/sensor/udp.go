package sensor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// maxDatagram bounds one DIPPID datagram.
const maxDatagram = 64 * 1024

// UDPSource listens for DIPPID datagrams, one JSON message per packet.
type UDPSource struct {
	addr string

	mu        sync.Mutex
	bound     net.Addr
	ready     chan struct{}
	readyOnce sync.Once
}

// NewUDPSource creates a source listening on addr, e.g. ":5700".
func NewUDPSource(addr string) *UDPSource {
	return &UDPSource{addr: addr, ready: make(chan struct{})}
}

// Name implements Source.
func (s *UDPSource) Name() string { return "udp " + s.addr }

// Addr blocks until the socket is bound and returns its local address.
func (s *UDPSource) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.bound, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run implements Source.
func (s *UDPSource) Run(ctx context.Context, emit func(Reading)) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.bound = conn.LocalAddr()
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	log.Info().Str("source", "udp").Str("addr", conn.LocalAddr().String()).Msg("listening for DIPPID datagrams")

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("read udp: %w", err)
		}

		rs, err := ParseDIPPID(buf[:n], time.Now())
		if err != nil {
			log.Debug().Err(err).Str("source", "udp").Msg("dropping datagram")
			continue
		}
		for _, r := range rs {
			emit(r)
		}
	}
}
