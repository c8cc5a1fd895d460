package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/natya/internal/sensor"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 32, s.Capacity)
	assert.Equal(t, 50*time.Millisecond, s.Tick)
	assert.Equal(t, sensor.KindUDP, s.Source.Kind)
	assert.Equal(t, ":5700", s.Source.UDPAddr)
	assert.Equal(t, ":8080", s.HTTPAddr)
	assert.Equal(t, []string{"jump", "run", "throw"}, s.Labels)
	assert.Equal(t, 1.0, s.SVM.C)
	assert.Empty(t, s.ArchivePath)
	assert.Empty(t, s.HookCommand)
	assert.Equal(t, 5*time.Second, s.HookTimeout)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "natya.yaml", `
buffer:
  capacity: 64
  tick: 20ms
source:
  kind: serial
  serialPort: /dev/ttyACM0
  serialBaud: 9600
mqtt:
  broker: tcp://broker:1883
  publishTopic: natya/predictions
server:
  addr: 127.0.0.1:9090
archive:
  path: /tmp/natya.db
hook:
  command: /usr/local/bin/on-activity
  timeout: 2s
labels: [wave, clap]
svm:
  c: 10
  gamma: 0.5
log:
  level: debug
  format: json
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, s.Capacity)
	assert.Equal(t, 20*time.Millisecond, s.Tick)
	assert.Equal(t, sensor.KindSerial, s.Source.Kind)
	assert.Equal(t, "/dev/ttyACM0", s.Source.SerialPort)
	assert.Equal(t, 9600, s.Source.SerialBaud)
	assert.Equal(t, "natya/predictions", s.PublishTopic)
	assert.Equal(t, "127.0.0.1:9090", s.HTTPAddr)
	assert.Equal(t, "/tmp/natya.db", s.ArchivePath)
	assert.Equal(t, "/usr/local/bin/on-activity", s.HookCommand)
	assert.Equal(t, 2*time.Second, s.HookTimeout)
	assert.Equal(t, []string{"wave", "clap"}, s.Labels)
	assert.Equal(t, 10.0, s.SVM.C)
	assert.Equal(t, 0.5, s.SVM.Gamma)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeFile(t, "natya.yaml", "buffer:\n  capacity: 16\n")
	t.Setenv(EnvConfigFile, path)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, s.Capacity)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "natya.yaml", "buffer:\n  capacity: 16\n")
	t.Setenv("NATYA_CAPACITY", "128")
	t.Setenv("NATYA_TICK", "5ms")
	t.Setenv("NATYA_SOURCE", "MQTT")
	t.Setenv("NATYA_MQTT_TOPIC", "imu/left")
	t.Setenv("NATYA_LABELS", "walk, sit ,")
	t.Setenv("NATYA_SVM_GAMMA", "0.25")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 128, s.Capacity)
	assert.Equal(t, 5*time.Millisecond, s.Tick)
	assert.Equal(t, sensor.KindMQTT, s.Source.Kind)
	assert.Equal(t, "imu/left", s.Source.MQTTTopic)
	assert.Equal(t, []string{"walk", "sit"}, s.Labels)
	assert.Equal(t, 0.25, s.SVM.Gamma)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.yaml", "buffer: [1, 2"))
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("bad tick", func(t *testing.T) {
		_, err := Load(writeFile(t, "tick.yaml", "buffer:\n  tick: soon\n"))
		assert.ErrorContains(t, err, "buffer.tick")
	})

	t.Run("bad hook timeout", func(t *testing.T) {
		t.Setenv("NATYA_HOOK_TIMEOUT", "later")
		_, err := Load(writeFile(t, "ok.yaml", ""))
		assert.ErrorContains(t, err, "NATYA_HOOK_TIMEOUT")
	})

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("NATYA_CAPACITY", "lots")
		_, err := Load(writeFile(t, "ok.yaml", ""))
		assert.ErrorContains(t, err, "NATYA_CAPACITY")
	})
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"capacity too small", func(s *Settings) { s.Capacity = 3 }, "capacity"},
		{"zero tick", func(s *Settings) { s.Tick = 0 }, "tick"},
		{"unknown source", func(s *Settings) { s.Source.Kind = "usb" }, "unknown source"},
		{"serial without port", func(s *Settings) { s.Source.Kind = sensor.KindSerial }, "requires a port"},
		{"mqtt without topic", func(s *Settings) {
			s.Source.Kind = sensor.KindMQTT
			s.Source.MQTTTopic = ""
		}, "broker and a topic"},
		{"publish without broker", func(s *Settings) {
			s.PublishTopic = "out"
			s.Source.MQTTBroker = ""
		}, "publishing requires a broker"},
		{"hook without timeout", func(s *Settings) {
			s.HookCommand = "notify"
			s.HookTimeout = 0
		}, "hook timeout"},
		{"blank label", func(s *Settings) { s.Labels = []string{"jump", " "} }, "blank"},
		{"duplicate label", func(s *Settings) { s.Labels = []string{"jump", "jump"} }, "duplicate"},
		{"non-positive C", func(s *Settings) { s.SVM.C = 0 }, "svm.c"},
		{"negative gamma", func(s *Settings) { s.SVM.Gamma = -1 }, "svm.gamma"},
		{"bad log level", func(s *Settings) { s.LogLevel = "loud" }, "log level"},
		{"bad log format", func(s *Settings) { s.LogFormat = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "NATYA_TEST_DOTENV=from-file\n")
	t.Setenv("NATYA_TEST_DOTENV", "")
	os.Unsetenv("NATYA_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("NATYA_TEST_DOTENV"))
}
