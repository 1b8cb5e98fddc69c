package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/OmarFaruqJibon/NexoVoice-AI/config"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/audio"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/backend"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/console"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/control"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/metrics"
)

var version = "dev" // set via ldflags at build time

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "voicechat",
		Short:         "Talk to the voice assistant from the terminal",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Listen, send each utterance to the backend and play the reply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, configPath)
		},
	})
	root.AddCommand(newSendCmd(&configPath))

	return root
}

// loadConfig falls back to defaults only when the default config file is
// missing; an explicit path must exist.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

func runChat(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	stats := metrics.New(registry)

	machine := application.NewMachine(
		createMicrophone(cfg, logger),
		backend.NewClient(cfg.Backend.URL, cfg.Backend.FieldName, config.Duration(cfg.Backend.Timeout), logger),
		createPlayer(cfg, logger),
		machineOptions(cfg),
		logger,
		console.NewRenderer(cmd.OutOrStdout()),
		stats,
		application.ObserverFunc(func(t application.Transition) {
			logger.Info("session status",
				"session", t.Snapshot.SessionID,
				"from", t.From,
				"to", t.To,
				"error", t.Snapshot.Error,
			)
		}),
	)

	logger.Info("starting voice chat",
		"capture", cfg.Capture.Source,
		"playback", cfg.Playback.Output,
		"backend", cfg.Backend.URL,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return machine.Run(gctx)
	})
	if cfg.Control.Enabled {
		server := control.NewServer(cfg.Control.Addr, cfg.Control.AuthToken, machine, stats.Handler(), logger)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}
	keyboard := console.NewKeyboard(cmd.InOrStdin(), cmd.OutOrStdout(), machine)
	g.Go(func() error {
		return keyboard.Run(gctx)
	})
	if cfg.Session.AutoStart || !cfg.Control.Enabled {
		machine.Start()
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, console.ErrQuit) {
		logger.Error("voice chat error", "error", err)
		return err
	}
	logger.Info("shutting down")
	return nil
}

func machineOptions(cfg *config.Config) application.Options {
	return application.Options{
		Capture: application.CaptureConfig{
			PreferredMIMETypes: cfg.Capture.MIMETypes,
			Filename:           cfg.Capture.Filename,
			StopDelay:          config.Duration(cfg.Capture.StopDelay),
			VAD: application.MonitorConfig{
				Threshold:    cfg.VAD.Threshold,
				Silence:      config.Duration(cfg.VAD.Silence),
				PollInterval: config.Duration(cfg.VAD.PollInterval),
			},
		},
		AutoRelisten:    *cfg.Session.AutoRelisten,
		DisableAutoplay: !*cfg.Playback.Autoplay,
	}
}

func createMicrophone(cfg *config.Config, logger *slog.Logger) application.Microphone {
	switch cfg.Capture.Source {
	case "file":
		return audio.NewFileSource(cfg.Capture.FileDir)
	default:
		return audio.NewMicrophoneSource(audio.MicrophoneConfig{
			SampleRate:      cfg.Capture.SampleRate,
			FramesPerBuffer: cfg.Capture.FramesPerBuffer,
			FFTSize:         cfg.VAD.FFTSize,
			Smoothing:       cfg.VAD.Smoothing,
		}, logger)
	}
}

func createPlayer(cfg *config.Config, logger *slog.Logger) application.Player {
	switch cfg.Playback.Output {
	case "file":
		return audio.NewFileSink(filepath.Clean(cfg.Playback.Dir), logger)
	default:
		return audio.NewSpeaker(logger)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
