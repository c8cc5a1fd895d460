// Package config loads natya settings from a YAML file, .env files and
// NATYA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/natya/internal/capture"
	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/sensor"
)

// EnvConfigFile names the YAML file when no path is given to Load.
const EnvConfigFile = "NATYA_CONFIG"

// Settings is the resolved runtime configuration.
type Settings struct {
	Capacity     int
	Tick         time.Duration
	Source       sensor.Config
	PublishTopic string
	HTTPAddr     string
	ArchivePath  string
	HookCommand  string
	HookTimeout  time.Duration
	Labels       []string
	SVM          gesture.SVMConfig
	LogLevel     string
	LogFormat    string
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Buffer struct {
		Capacity int    `yaml:"capacity"`
		Tick     string `yaml:"tick"`
	} `yaml:"buffer"`

	Source struct {
		Kind       string `yaml:"kind"`
		UDPAddr    string `yaml:"udpAddr"`
		SerialPort string `yaml:"serialPort"`
		SerialBaud int    `yaml:"serialBaud"`
	} `yaml:"source"`

	MQTT struct {
		Broker       string `yaml:"broker"`
		Topic        string `yaml:"topic"`
		ClientID     string `yaml:"clientID"`
		PublishTopic string `yaml:"publishTopic"`
	} `yaml:"mqtt"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Archive struct {
		Path string `yaml:"path"`
	} `yaml:"archive"`

	Hook struct {
		Command string `yaml:"command"`
		Timeout string `yaml:"timeout"`
	} `yaml:"hook"`

	Labels []string `yaml:"labels"`

	SVM struct {
		C     float64 `yaml:"c"`
		Gamma float64 `yaml:"gamma"`
	} `yaml:"svm"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Capacity:    capture.DefaultCapacity,
		Tick:        50 * time.Millisecond,
		Source:      sensor.DefaultConfig(),
		HTTPAddr:    ":8080",
		HookTimeout: 5 * time.Second,
		Labels:      []string{"jump", "run", "throw"},
		SVM:         gesture.DefaultSVMConfig(),
		LogLevel:    "info",
		LogFormat:   "console",
	}
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path, or the file named by NATYA_CONFIG when
// path is empty, then applies environment overrides and validates the
// result. Without any file the defaults are used.
func Load(path string) (Settings, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}

	s := Default()
	if path != "" {
		if err := s.mergeFile(path); err != nil {
			return Settings{}, err
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if file.Buffer.Capacity != 0 {
		s.Capacity = file.Buffer.Capacity
	}
	if file.Buffer.Tick != "" {
		d, err := time.ParseDuration(file.Buffer.Tick)
		if err != nil {
			return fmt.Errorf("buffer.tick: %w", err)
		}
		s.Tick = d
	}

	if file.Source.Kind != "" {
		s.Source.Kind = sensor.Kind(strings.ToLower(file.Source.Kind))
	}
	setString(&s.Source.UDPAddr, file.Source.UDPAddr)
	setString(&s.Source.SerialPort, file.Source.SerialPort)
	if file.Source.SerialBaud != 0 {
		s.Source.SerialBaud = file.Source.SerialBaud
	}

	setString(&s.Source.MQTTBroker, file.MQTT.Broker)
	setString(&s.Source.MQTTTopic, file.MQTT.Topic)
	setString(&s.Source.MQTTClientID, file.MQTT.ClientID)
	setString(&s.PublishTopic, file.MQTT.PublishTopic)

	setString(&s.HTTPAddr, file.Server.Addr)
	setString(&s.ArchivePath, file.Archive.Path)
	setString(&s.HookCommand, file.Hook.Command)
	if file.Hook.Timeout != "" {
		d, err := time.ParseDuration(file.Hook.Timeout)
		if err != nil {
			return fmt.Errorf("hook.timeout: %w", err)
		}
		s.HookTimeout = d
	}

	if file.Labels != nil {
		s.Labels = file.Labels
	}

	if file.SVM.C != 0 {
		s.SVM.C = file.SVM.C
	}
	if file.SVM.Gamma != 0 {
		s.SVM.Gamma = file.SVM.Gamma
	}

	setString(&s.LogLevel, file.Log.Level)
	setString(&s.LogFormat, file.Log.Format)
	return nil
}

func (s *Settings) applyEnv() error {
	var errs []error

	if v := os.Getenv("NATYA_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("NATYA_CAPACITY", err))
		if err == nil {
			s.Capacity = n
		}
	}
	if v := os.Getenv("NATYA_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("NATYA_TICK", err))
		if err == nil {
			s.Tick = d
		}
	}
	if v := os.Getenv("NATYA_SOURCE"); v != "" {
		s.Source.Kind = sensor.Kind(strings.ToLower(v))
	}
	setString(&s.Source.UDPAddr, os.Getenv("NATYA_UDP_ADDR"))
	setString(&s.Source.SerialPort, os.Getenv("NATYA_SERIAL_PORT"))
	if v := os.Getenv("NATYA_SERIAL_BAUD"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("NATYA_SERIAL_BAUD", err))
		if err == nil {
			s.Source.SerialBaud = n
		}
	}
	setString(&s.Source.MQTTBroker, os.Getenv("NATYA_MQTT_BROKER"))
	setString(&s.Source.MQTTTopic, os.Getenv("NATYA_MQTT_TOPIC"))
	setString(&s.Source.MQTTClientID, os.Getenv("NATYA_MQTT_CLIENT_ID"))
	setString(&s.PublishTopic, os.Getenv("NATYA_PUBLISH_TOPIC"))
	setString(&s.HTTPAddr, os.Getenv("NATYA_HTTP_ADDR"))
	setString(&s.ArchivePath, os.Getenv("NATYA_ARCHIVE_PATH"))
	setString(&s.HookCommand, os.Getenv("NATYA_HOOK_COMMAND"))
	if v := os.Getenv("NATYA_HOOK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("NATYA_HOOK_TIMEOUT", err))
		if err == nil {
			s.HookTimeout = d
		}
	}
	if v := os.Getenv("NATYA_LABELS"); v != "" {
		s.Labels = splitList(v)
	}
	if v := os.Getenv("NATYA_SVM_C"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, envErr("NATYA_SVM_C", err))
		if err == nil {
			s.SVM.C = f
		}
	}
	if v := os.Getenv("NATYA_SVM_GAMMA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, envErr("NATYA_SVM_GAMMA", err))
		if err == nil {
			s.SVM.Gamma = f
		}
	}
	setString(&s.LogLevel, os.Getenv("NATYA_LOG_LEVEL"))
	setString(&s.LogFormat, os.Getenv("NATYA_LOG_FORMAT"))

	return errors.Join(errs...)
}

// Validate checks that the settings can run a pipeline.
func (s Settings) Validate() error {
	if s.Capacity < features.MinWindow {
		return fmt.Errorf("buffer capacity must be at least %d, got %d", features.MinWindow, s.Capacity)
	}
	if s.Tick <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", s.Tick)
	}

	if _, err := sensor.ParseKind(string(s.Source.Kind)); err != nil {
		return err
	}
	switch s.Source.Kind {
	case sensor.KindUDP:
		if s.Source.UDPAddr == "" {
			return fmt.Errorf("udp source requires an address")
		}
	case sensor.KindSerial:
		if s.Source.SerialPort == "" {
			return fmt.Errorf("serial source requires a port")
		}
		if s.Source.SerialBaud <= 0 {
			return fmt.Errorf("serial baud rate must be positive, got %d", s.Source.SerialBaud)
		}
	case sensor.KindMQTT:
		if s.Source.MQTTBroker == "" || s.Source.MQTTTopic == "" {
			return fmt.Errorf("mqtt source requires a broker and a topic")
		}
	}
	if s.PublishTopic != "" && s.Source.MQTTBroker == "" {
		return fmt.Errorf("mqtt publishing requires a broker")
	}

	if s.HTTPAddr == "" {
		return fmt.Errorf("http address cannot be empty")
	}
	if s.HookCommand != "" && s.HookTimeout <= 0 {
		return fmt.Errorf("hook timeout must be positive, got %s", s.HookTimeout)
	}

	seen := make(map[string]bool, len(s.Labels))
	for _, l := range s.Labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("labels cannot be blank")
		}
		if seen[l] {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}

	if s.SVM.C <= 0 {
		return fmt.Errorf("svm.c must be positive, got %g", s.SVM.C)
	}
	if s.SVM.Gamma < 0 {
		return fmt.Errorf("svm.gamma cannot be negative, got %g", s.SVM.Gamma)
	}

	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	if s.LogFormat != "console" && s.LogFormat != "json" {
		return fmt.Errorf("log format must be console or json, got %q", s.LogFormat)
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}
