// Package features turns accelerometer windows into frequency-domain feature vectors.
package features

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/natya/internal/capture"
)

// MinWindow is the shortest window that yields a non-empty feature vector.
const MinWindow = 4

var (
	// ErrMismatchedBufferLengths is returned when the three axes differ in length.
	ErrMismatchedBufferLengths = errors.New("mismatched buffer lengths")
	// ErrSignalTooShort is returned when the window has fewer than MinWindow samples.
	ErrSignalTooShort = errors.New("signal too short")
)

// Vector is a magnitude spectrum without the DC bin and the mirrored half.
type Vector []float64

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// VectorLen returns the feature vector length produced for a window of n samples.
func VectorLen(n int) int {
	if n < MinWindow {
		return 0
	}
	return n/2 - 1
}

// Extractor computes feature vectors, reusing one FFT plan per window length.
// It is safe for concurrent use.
type Extractor struct {
	mu    sync.Mutex
	plans map[int]*fourier.FFT
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{plans: make(map[int]*fourier.FFT)}
}

// Extract averages the three axes pointwise, transforms the combined signal and
// returns |c_k|/N for k in [1, N/2), a vector of floor(N/2)-1 values.
// Windows shorter than MinWindow are rejected with ErrSignalTooShort rather
// than yielding an empty vector, so N = 2 and N = 3 are errors too.
func (e *Extractor) Extract(s capture.Snapshot) (Vector, error) {
	signal, err := combine(s)
	if err != nil {
		return nil, err
	}

	n := len(signal)

	// gonum plans carry scratch space, so one caller at a time per plan
	e.mu.Lock()
	plan, ok := e.plans[n]
	if !ok {
		plan = fourier.NewFFT(n)
		e.plans[n] = plan
	}
	coeffs := plan.Coefficients(nil, signal)
	e.mu.Unlock()

	return magnitudes(coeffs, n), nil
}

// Extract is a convenience wrapper that uses a fresh FFT plan. It has the same
// window requirements as Extractor.Extract.
func Extract(s capture.Snapshot) (Vector, error) {
	signal, err := combine(s)
	if err != nil {
		return nil, err
	}

	n := len(signal)
	coeffs := fourier.NewFFT(n).Coefficients(nil, signal)
	return magnitudes(coeffs, n), nil
}

// combine validates the snapshot and returns the mean of the three axes.
func combine(s capture.Snapshot) ([]float64, error) {
	n := len(s.X)
	if len(s.Y) != n || len(s.Z) != n {
		return nil, fmt.Errorf("%w: x=%d y=%d z=%d", ErrMismatchedBufferLengths, len(s.X), len(s.Y), len(s.Z))
	}
	if n < MinWindow {
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrSignalTooShort, n, MinWindow)
	}

	combined := make([]float64, n)
	floats.AddTo(combined, s.X, s.Y)
	floats.Add(combined, s.Z)
	floats.Scale(1.0/capture.NumAxes, combined)
	return combined, nil
}

func magnitudes(coeffs []complex128, n int) Vector {
	out := make(Vector, VectorLen(n))
	for i := range out {
		out[i] = cmplx.Abs(coeffs[i+1]) / float64(n)
	}
	return out
}
