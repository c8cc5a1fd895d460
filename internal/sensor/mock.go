package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ayusman/natya/internal/capture"
)

// MockSource replays a fixed list of readings.
type MockSource struct {
	readings []Reading
	interval time.Duration
	loop     bool
}

// NewMockSource creates a source that emits readings one by one, sleeping
// interval between them. With loop set it starts over at the end.
func NewMockSource(readings []Reading, interval time.Duration, loop bool) *MockSource {
	return &MockSource{readings: readings, interval: interval, loop: loop}
}

// Name implements Source.
func (m *MockSource) Name() string { return "mock" }

// Run implements Source. Without loop it returns nil after the last reading.
func (m *MockSource) Run(ctx context.Context, emit func(Reading)) error {
	if len(m.readings) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	var tick <-chan time.Time
	if m.interval > 0 {
		t := time.NewTicker(m.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		for _, r := range m.readings {
			if tick != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-tick:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}
			emit(r)
		}
		if !m.loop {
			return nil
		}
	}
}

// ReadDIPPIDLines parses newline-delimited DIPPID messages, such as a
// recorded serial capture. Each line gets a timestamp step apart from the
// previous one, starting at start.
func ReadDIPPIDLines(r io.Reader, start time.Time, step time.Duration) ([]Reading, error) {
	var out []Reading
	scan := bufio.NewScanner(r)
	at := start
	line := 0
	for scan.Scan() {
		line++
		if len(scan.Bytes()) == 0 {
			continue
		}
		rs, err := ParseDIPPID(scan.Bytes(), at)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rs...)
		at = at.Add(step)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DemoReadings returns two seconds of synthetic motion: a second of rest
// followed by a second of periodic shaking along x.
func DemoReadings(start time.Time) []Reading {
	const n = 100
	step := 10 * time.Millisecond

	out := make([]Reading, 0, 2*n*capture.NumAxes)
	at := start
	for i := 0; i < 2*n; i++ {
		x := 0.0
		if i >= n {
			x = math.Sin(2 * math.Pi * float64(i) / 4)
		}
		out = append(out,
			Reading{Axis: capture.AxisX, Value: x, At: at},
			Reading{Axis: capture.AxisY, Value: 0, At: at},
			Reading{Axis: capture.AxisZ, Value: 1, At: at},
		)
		at = at.Add(step)
	}
	return out
}
