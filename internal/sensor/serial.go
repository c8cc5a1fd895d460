package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// PortOpener opens a serial device. Tests replace it to avoid real hardware.
type PortOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

// OpenSerialPort opens a real serial device.
func OpenSerialPort(path string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(path, mode)
}

// SerialSource reads newline-delimited DIPPID messages from a serial line.
type SerialSource struct {
	path string
	mode *serial.Mode
	open PortOpener
}

// NewSerialSource creates a source for the device at path.
func NewSerialSource(path string, baud int) *SerialSource {
	return &SerialSource{
		path: path,
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		open: OpenSerialPort,
	}
}

// WithOpener replaces the function used to open the port.
func (s *SerialSource) WithOpener(open PortOpener) *SerialSource {
	s.open = open
	return s
}

// Name implements Source.
func (s *SerialSource) Name() string { return "serial " + s.path }

// Run implements Source.
func (s *SerialSource) Run(ctx context.Context, emit func(Reading)) error {
	port, err := s.open(s.path, s.mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.path, err)
	}
	defer port.Close()

	log.Info().Str("source", "serial").Str("port", s.path).Int("baud", s.mode.BaudRate).Msg("reading DIPPID lines")

	lines := make(chan string)
	scanErr := make(chan error, 1)

	// Scan blocks on the port; closing the port on cancellation unblocks it.
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(port)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read serial port: %w", err)
					}
				default:
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return io.EOF
			}
			if line == "" {
				continue
			}

			rs, err := ParseDIPPID([]byte(line), time.Now())
			if err != nil {
				log.Debug().Err(err).Str("source", "serial").Msg("dropping line")
				continue
			}
			for _, r := range rs {
				emit(r)
			}
		}
	}
}
