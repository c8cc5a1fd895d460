package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/natya/internal/app"
	"github.com/ayusman/natya/internal/config"
	"github.com/ayusman/natya/internal/engine"
	"github.com/ayusman/natya/internal/hook"
	"github.com/ayusman/natya/internal/metrics"
	"github.com/ayusman/natya/internal/mqttsink"
	"github.com/ayusman/natya/internal/sensor"
	"github.com/ayusman/natya/internal/server"
	"github.com/ayusman/natya/internal/store"
)

type serveOptions struct {
	configPath string
	envFile    string
	staticDir  string
	logLevel   string
	source     string
}

func (o *serveOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	f.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	f.StringVar(&o.staticDir, "static", "", "directory served at / (default: first web directory found)")
	f.StringVar(&o.logLevel, "log-level", "", "override log.level")
	f.StringVar(&o.source, "source", "", "override source.kind (udp, serial, mqtt, mock)")
}

func runServe(ctx context.Context, opts *serveOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}
	settings, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		settings.LogLevel = opts.logLevel
	}
	if opts.source != "" {
		kind, err := sensor.ParseKind(opts.source)
		if err != nil {
			return err
		}
		settings.Source.Kind = kind
		if err := settings.Validate(); err != nil {
			return err
		}
	}
	if err := setupLogging(settings.LogLevel, settings.LogFormat); err != nil {
		return err
	}

	src, err := sensor.New(settings.Source)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(reg)

	hub := server.NewHub(m)
	sinks := []engine.Sink{hub, app.LogSink(log.With().Str("component", "output").Logger())}

	var st *store.Store
	if settings.ArchivePath != "" {
		if err := os.MkdirAll(filepath.Dir(settings.ArchivePath), 0755); err != nil {
			return fmt.Errorf("create archive directory: %w", err)
		}
		st, err = store.New(settings.ArchivePath)
		if err != nil {
			return err
		}
		defer st.Close()

		archive, err := store.NewArchive(st, 0)
		if err != nil {
			return err
		}
		defer func() {
			if err := archive.Close(); err != nil {
				log.Error().Err(err).Msg("close archive")
			}
		}()
		sinks = append(sinks, archive)
	}

	if settings.PublishTopic != "" {
		pub, err := mqttsink.New(mqttsink.Options{
			Broker:   settings.Source.MQTTBroker,
			Topic:    settings.PublishTopic,
			ClientID: settings.Source.MQTTClientID + "-out",
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	if settings.HookCommand != "" {
		exec, err := hook.NewExecutor(settings.HookCommand, settings.HookTimeout)
		if err != nil {
			return err
		}
		h := hook.NewSink(exec)
		defer h.Close()
		sinks = append(sinks, h)
		log.Info().Str("command", settings.HookCommand).Msg("activity hook enabled")
	}

	a, err := app.New(app.Config{
		Capacity: settings.Capacity,
		Tick:     settings.Tick,
		Source:   src,
		SVM:      settings.SVM,
		Labels:   settings.Labels,
		Metrics:  m,
		Sinks:    sinks,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}

	staticDir := opts.staticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.Info().Str("dir", staticDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		Engine:    a.Engine(),
		Store:     st,
		Hub:       hub,
		Gatherer:  reg,
		StaticDir: staticDir,
	})

	log.Info().
		Str("version", version).
		Str("source", src.Name()).
		Int("capacity", settings.Capacity).
		Dur("tick", settings.Tick).
		Strs("labels", settings.Labels).
		Msg("natya started")

	err = srv.ListenAndServe(ctx, settings.HTTPAddr)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info().Msg("shutting down")
	return nil
}

func setupLogging(level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
	return nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.natya/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".natya", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
