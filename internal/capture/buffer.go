// Package capture holds the sliding sample windows fed by the accelerometer stream.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Default window settings
const (
	DefaultCapacity = 32
	NumAxes         = 3
)

var (
	// ErrInvalidCapacity is returned when a buffer is created with a non-positive size.
	ErrInvalidCapacity = errors.New("buffer capacity must be positive")
	// ErrWindowNotFull is returned when a window is read before every axis
	// holds capacity samples.
	ErrWindowNotFull = errors.New("window not full")
)

// Axis identifies one accelerometer channel.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns the lowercase axis name.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis converts "x", "y" or "z" into an Axis.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Sample is a single timestamped reading on one axis.
type Sample struct {
	Value float64
	At    time.Time
}

// Snapshot is an aligned copy of the three windows, oldest sample first.
type Snapshot struct {
	X []float64
	Y []float64
	Z []float64
}

// Len returns the number of aligned samples per axis.
func (s Snapshot) Len() int {
	return len(s.X)
}

// ring is a fixed-size circular window for one axis.
type ring struct {
	data  []Sample
	head  int // index of the oldest sample
	count int
}

func (r *ring) push(s Sample) {
	capacity := len(r.data)
	if r.count < capacity {
		r.data[(r.head+r.count)%capacity] = s
		r.count++
		return
	}
	// Full: overwrite the oldest and advance
	r.data[r.head] = s
	r.head = (r.head + 1) % capacity
}

// last copies the newest n values, oldest first.
func (r *ring) last(n int) []float64 {
	out := make([]float64, n)
	capacity := len(r.data)
	start := r.head + r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%capacity].Value
	}
	return out
}

// Buffer keeps the most recent samples for each of the three axes.
// It is safe for concurrent use by one feed and one reader.
type Buffer struct {
	capacity int
	axes     [NumAxes]ring
	mu       sync.Mutex
}

// NewBuffer creates a Buffer holding up to capacity samples per axis.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	b := &Buffer{capacity: capacity}
	for i := range b.axes {
		b.axes[i].data = make([]Sample, capacity)
	}
	return b, nil
}

// Capacity returns the configured window size.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Push appends a sample to the given axis, evicting the oldest one when full.
// Samples for an unknown axis are dropped.
func (b *Buffer) Push(axis Axis, s Sample) {
	if axis < AxisX || axis > AxisZ {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.axes[axis].push(s)
}

// Snapshot returns the newest aligned samples of all three axes.
// When the axes were fed unevenly, every axis is cut to the shortest one.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.lenLocked()
	return Snapshot{
		X: b.axes[AxisX].last(n),
		Y: b.axes[AxisY].last(n),
		Z: b.axes[AxisZ].last(n),
	}
}

// Len returns the number of aligned samples currently available.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.lenLocked()
}

// Full reports whether every axis holds a complete window.
func (b *Buffer) Full() bool {
	return b.Len() == b.capacity
}

// Reset discards all buffered samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.axes {
		b.axes[i].head = 0
		b.axes[i].count = 0
	}
}

func (b *Buffer) lenLocked() int {
	n := b.axes[0].count
	for i := 1; i < NumAxes; i++ {
		if b.axes[i].count < n {
			n = b.axes[i].count
		}
	}
	return n
}
