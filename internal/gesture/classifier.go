package gesture

import (
	"context"

	"github.com/ayusman/natya/internal/features"
)

// Classifier is a multi-class model trained on labeled feature vectors.
//
// Fit replaces any previous model atomically: a Predict that started before
// the swap finishes against the old model. Implementations must be safe for
// one concurrent Fit alongside any number of Predict calls.
type Classifier interface {
	// Fit trains a new model. It requires len(samples) == len(labels) and at
	// least two distinct labels; on failure the previous model stays in place.
	// A Fit abandoned because ctx ended returns ctx.Err() and also keeps the
	// previous model.
	Fit(ctx context.Context, samples []features.Vector, labels []string) error

	// Predict returns one of the labels seen by the last successful Fit.
	// It returns ErrModelNotReady before the first successful Fit.
	Predict(sample features.Vector) (string, error)

	// Ready reports whether a fitted model is available.
	Ready() bool
}

// distinctLabels returns labels in order of first appearance.
func distinctLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}
