// Package gesture provides the labeled training set and the classifier trained on it.
package gesture

import (
	"fmt"
	"strings"

	"github.com/ayusman/natya/internal/features"
)

// Store maps activity labels to the feature vectors recorded under them.
// Labels keep their registration order. Store is not safe for concurrent
// use; the engine serializes access.
type Store struct {
	order      []string
	recordings map[string][]features.Vector
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		order:      make([]string, 0),
		recordings: make(map[string][]features.Vector),
	}
}

// AddLabel registers a new label.
func (s *Store) AddLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidLabel)
	}
	if _, ok := s.recordings[label]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
	}

	s.order = append(s.order, label)
	s.recordings[label] = nil
	return nil
}

// RemoveLabel unregisters a label and drops everything recorded under it.
func (s *Store) RemoveLabel(label string) error {
	if _, ok := s.recordings[label]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}

	delete(s.recordings, label)
	for i, l := range s.order {
		if l == label {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether label is registered.
func (s *Store) Has(label string) bool {
	_, ok := s.recordings[label]
	return ok
}

// Record appends a copy of v to the recordings of label. Every recorded
// vector must have the same length as the ones already stored; a mismatch
// returns ErrDimensionMismatch and leaves the store unchanged.
func (s *Store) Record(label string, v features.Vector) error {
	if _, ok := s.recordings[label]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	if len(v) == 0 {
		return fmt.Errorf("%w: empty feature vector", ErrDimensionMismatch)
	}
	if dim := s.Dim(); dim > 0 && len(v) != dim {
		return fmt.Errorf("%w: got %d features, store holds %d", ErrDimensionMismatch, len(v), dim)
	}

	s.recordings[label] = append(s.recordings[label], v.Clone())
	return nil
}

// Dim returns the length of the stored vectors, or 0 while the store holds none.
func (s *Store) Dim() int {
	for _, l := range s.order {
		if rec := s.recordings[l]; len(rec) > 0 {
			return len(rec[0])
		}
	}
	return 0
}

// Labels returns the registered labels in registration order.
func (s *Store) Labels() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the number of vectors recorded under label.
func (s *Store) Count(label string) int {
	return len(s.recordings[label])
}

// LabelsWithRecordings returns the labels that have at least one vector.
func (s *Store) LabelsWithRecordings() []string {
	var out []string
	for _, l := range s.order {
		if len(s.recordings[l]) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// AllSamplesAndLabels flattens the store into parallel slices suitable for
// Classifier.Fit, ordered by label then by recording order. The vectors are copies.
func (s *Store) AllSamplesAndLabels() ([]features.Vector, []string) {
	var (
		samples []features.Vector
		labels  []string
	)
	for _, l := range s.order {
		for _, v := range s.recordings[l] {
			samples = append(samples, v.Clone())
			labels = append(labels, l)
		}
	}
	return samples, labels
}
