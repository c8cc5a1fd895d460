package sensor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/natya/internal/capture"
)

type vec3 struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// dippidMessage is a DIPPID capability update. Capabilities other than the
// accelerometer are ignored.
type dippidMessage struct {
	Accelerometer *vec3 `json:"accelerometer"`
}

// imuMessage is the flat IMU payload published by networked IMU producers.
type imuMessage struct {
	Ax *float64 `json:"ax"`
	Ay *float64 `json:"ay"`
	Az *float64 `json:"az"`
}

// ParseDIPPID decodes one DIPPID message. It returns one reading per axis
// present in the accelerometer capability, in x, y, z order.
func ParseDIPPID(data []byte, at time.Time) ([]Reading, error) {
	var msg dippidMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode dippid message: %w", err)
	}
	if msg.Accelerometer == nil {
		return nil, ErrNoAccelerometer
	}
	return readings(at, msg.Accelerometer.X, msg.Accelerometer.Y, msg.Accelerometer.Z)
}

// ParsePayload accepts either a DIPPID message or a flat {"ax","ay","az"}
// IMU payload.
func ParsePayload(data []byte, at time.Time) ([]Reading, error) {
	rs, err := ParseDIPPID(data, at)
	if err == nil {
		return rs, nil
	}

	var msg imuMessage
	if jerr := json.Unmarshal(data, &msg); jerr != nil {
		return nil, err
	}
	return readings(at, msg.Ax, msg.Ay, msg.Az)
}

func readings(at time.Time, x, y, z *float64) ([]Reading, error) {
	var out []Reading
	for axis, v := range [capture.NumAxes]*float64{x, y, z} {
		if v == nil {
			continue
		}
		out = append(out, Reading{Axis: capture.Axis(axis), Value: *v, At: at})
	}
	if len(out) == 0 {
		return nil, ErrNoAccelerometer
	}
	return out, nil
}
