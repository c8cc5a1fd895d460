package engine

import (
	"errors"
	"fmt"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/gesture"
)

var (
	// ErrNoLabelSelected is returned when a training session starts without a
	// selected label. It matches gesture.ErrUnknownLabel.
	ErrNoLabelSelected = fmt.Errorf("%w: no label selected", gesture.ErrUnknownLabel)
	// ErrRecordingAborted is returned when the label being recorded is removed.
	// It matches gesture.ErrUnknownLabel.
	ErrRecordingAborted = fmt.Errorf("%w: recording aborted", gesture.ErrUnknownLabel)
	// ErrRefitBusy is returned when the refit lane is full.
	ErrRefitBusy = errors.New("refit queue full")
	// ErrInvalidMode is returned for unknown mode names or values.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("engine closed")
)

// Condition returns the display name for err, as shown in place of a label.
func Condition(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRecordingAborted):
		return "RecordingAborted"
	case errors.Is(err, ErrNoLabelSelected):
		return "NoLabelSelected"
	case errors.Is(err, gesture.ErrNotEnoughData):
		return "NotEnoughData"
	case errors.Is(err, gesture.ErrModelNotReady):
		return "ModelNotReady"
	case errors.Is(err, gesture.ErrUnknownLabel):
		return "UnknownLabel"
	case errors.Is(err, gesture.ErrDuplicateLabel):
		return "DuplicateLabel"
	case errors.Is(err, gesture.ErrInvalidLabel):
		return "InvalidLabel"
	case errors.Is(err, gesture.ErrDimensionMismatch):
		return "DimensionMismatch"
	case errors.Is(err, gesture.ErrLengthMismatch):
		return "LengthMismatch"
	case errors.Is(err, capture.ErrWindowNotFull):
		return "WindowNotFull"
	case errors.Is(err, features.ErrSignalTooShort):
		return "SignalTooShort"
	case errors.Is(err, features.ErrMismatchedBufferLengths):
		return "MismatchedBufferLengths"
	case errors.Is(err, ErrRefitBusy):
		return "RefitBusy"
	case errors.Is(err, ErrInvalidMode):
		return "InvalidMode"
	case errors.Is(err, ErrClosed):
		return "Closed"
	default:
		return "Error"
	}
}
