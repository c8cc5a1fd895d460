package engine

import (
	"fmt"
	"strings"
)

// Mode is the top-level state of the engine.
type Mode int

const (
	// Inactive ignores all incoming feature vectors.
	Inactive Mode = iota
	// Training appends vectors to the selected label while recording.
	Training
	// Predicting classifies vectors while recording.
	Predicting
)

var modeNames = [...]string{
	Inactive:   "inactive",
	Training:   "training",
	Predicting: "predicting",
}

func (m Mode) String() string {
	if m < Inactive || m > Predicting {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= Inactive && m <= Predicting
}

// ParseMode converts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return Mode(m), nil
		}
	}
	return Inactive, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
