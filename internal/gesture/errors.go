package gesture

import "errors"

var (
	// ErrDuplicateLabel is returned when a label is registered twice.
	ErrDuplicateLabel = errors.New("duplicate label")
	// ErrUnknownLabel is returned when a label is not registered.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrInvalidLabel is returned for empty or blank label names.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrNotEnoughData is returned when fewer than two labels have recordings.
	ErrNotEnoughData = errors.New("not enough data")
	// ErrModelNotReady is returned when predicting before the first successful fit.
	ErrModelNotReady = errors.New("model not ready")
	// ErrLengthMismatch is returned when samples and labels differ in length.
	ErrLengthMismatch = errors.New("samples and labels differ in length")
	// ErrDimensionMismatch is returned when feature vectors differ in length.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
)
