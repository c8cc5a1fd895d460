// Package sensor reads accelerometer feeds and emits per-axis readings.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/natya/internal/capture"
)

var (
	// ErrNoAccelerometer is returned for messages without accelerometer data.
	ErrNoAccelerometer = errors.New("message has no accelerometer data")
	// ErrUnknownSource is returned by New for an unknown source kind.
	ErrUnknownSource = errors.New("unknown source kind")
)

// Reading is one accelerometer value on one axis.
type Reading struct {
	Axis  capture.Axis
	Value float64
	At    time.Time
}

// Sample converts r to a buffer sample.
func (r Reading) Sample() capture.Sample {
	return capture.Sample{Value: r.Value, At: r.At}
}

// Source produces readings until ctx is cancelled or the feed fails.
//
// Run blocks. It calls emit from a single goroutine and returns ctx.Err()
// after cancellation.
type Source interface {
	Run(ctx context.Context, emit func(Reading)) error
	Name() string
}

// Kind selects a Source implementation.
type Kind string

const (
	KindUDP    Kind = "udp"
	KindSerial Kind = "serial"
	KindMQTT   Kind = "mqtt"
	KindMock   Kind = "mock"
)

// ParseKind converts a source name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindUDP, KindSerial, KindMQTT, KindMock:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

// Config holds configuration for all source kinds. Only the fields of the
// selected kind are used.
type Config struct {
	Kind Kind

	// UDPAddr is the listen address for DIPPID datagrams.
	UDPAddr string

	// SerialPort is the device path, e.g. /dev/ttyUSB0.
	SerialPort string
	// SerialBaud is the line speed.
	SerialBaud int

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	// MockInterval is the delay between readings of the mock source.
	MockInterval time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Kind:         KindUDP,
		UDPAddr:      ":5700",
		SerialBaud:   115200,
		MQTTBroker:   "tcp://localhost:1883",
		MQTTTopic:    "natya/imu",
		MQTTClientID: "natya",
		MockInterval: 10 * time.Millisecond,
	}
}

// New builds the source selected by cfg.Kind.
func New(cfg Config) (Source, error) {
	switch cfg.Kind {
	case KindUDP:
		return NewUDPSource(cfg.UDPAddr), nil
	case KindSerial:
		return NewSerialSource(cfg.SerialPort, cfg.SerialBaud), nil
	case KindMQTT:
		return NewMQTTSource(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID), nil
	case KindMock:
		return NewMockSource(DemoReadings(time.Now()), cfg.MockInterval, true), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Kind)
	}
}
