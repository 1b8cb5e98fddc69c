package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Capture  CaptureConfig  `yaml:"capture"`
	VAD      VADConfig      `yaml:"vad"`
	Session  SessionConfig  `yaml:"session"`
	Playback PlaybackConfig `yaml:"playback"`
	Control  ControlConfig  `yaml:"control"`
	Log      LogConfig      `yaml:"log"`
}

type BackendConfig struct {
	URL       string `yaml:"url"`
	FieldName string `yaml:"field_name"`
	Timeout   string `yaml:"timeout"`
}

type CaptureConfig struct {
	Source          string   `yaml:"source"`
	FileDir         string   `yaml:"file_dir"`
	SampleRate      int      `yaml:"sample_rate"`
	FramesPerBuffer int      `yaml:"frames_per_buffer"`
	MIMETypes       []string `yaml:"mime_types"`
	Filename        string   `yaml:"filename"`
	StopDelay       string   `yaml:"stop_delay"`
}

type VADConfig struct {
	Threshold    float64 `yaml:"threshold"`
	Silence      string  `yaml:"silence"`
	PollInterval string  `yaml:"poll_interval"`
	FFTSize      int     `yaml:"fft_size"`
	Smoothing    float64 `yaml:"smoothing"`
}

type SessionConfig struct {
	AutoRelisten *bool `yaml:"auto_relisten"`
	AutoStart    bool  `yaml:"auto_start"`
}

type PlaybackConfig struct {
	Output   string `yaml:"output"`
	Dir      string `yaml:"dir"`
	Autoplay *bool  `yaml:"autoplay"`
}

type ControlConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at path. Variables from a .env file next to the
// working directory are loaded first and ${VAR} references are expanded.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = "http://localhost:8000/voice-chat"
	}
	if c.Backend.FieldName == "" {
		c.Backend.FieldName = "audio"
	}
	if c.Backend.Timeout == "" {
		c.Backend.Timeout = "60s"
	}
	if c.Capture.Source == "" {
		c.Capture.Source = "microphone"
	}
	if c.Capture.FileDir == "" {
		c.Capture.FileDir = "./audio"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.FramesPerBuffer == 0 {
		c.Capture.FramesPerBuffer = 1024
	}
	if len(c.Capture.MIMETypes) == 0 {
		c.Capture.MIMETypes = []string{"audio/webm", "audio/ogg", "audio/wav"}
	}
	if c.Capture.Filename == "" {
		c.Capture.Filename = "voice"
	}
	if c.Capture.StopDelay == "" {
		c.Capture.StopDelay = "150ms"
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.02
	}
	if c.VAD.Silence == "" {
		c.VAD.Silence = "1500ms"
	}
	if c.VAD.PollInterval == "" {
		c.VAD.PollInterval = "16ms"
	}
	if c.VAD.FFTSize == 0 {
		c.VAD.FFTSize = 2048
	}
	if c.VAD.Smoothing == 0 {
		c.VAD.Smoothing = 0.8
	}
	if c.Session.AutoRelisten == nil {
		enabled := true
		c.Session.AutoRelisten = &enabled
	}
	if c.Playback.Output == "" {
		c.Playback.Output = "speaker"
	}
	if c.Playback.Dir == "" {
		c.Playback.Dir = "./replies"
	}
	if c.Playback.Autoplay == nil {
		enabled := true
		c.Playback.Autoplay = &enabled
	}
	if c.Control.Addr == "" {
		c.Control.Addr = "127.0.0.1:8089"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.VAD.Threshold < 0 || c.VAD.Threshold > 1 {
		return fmt.Errorf("vad.threshold must be between 0 and 1, got %g", c.VAD.Threshold)
	}
	if c.VAD.FFTSize < 32 || c.VAD.FFTSize&(c.VAD.FFTSize-1) != 0 {
		return fmt.Errorf("vad.fft_size must be a power of two >= 32, got %d", c.VAD.FFTSize)
	}
	if c.VAD.Smoothing < 0 || c.VAD.Smoothing >= 1 {
		return fmt.Errorf("vad.smoothing must be in [0, 1), got %g", c.VAD.Smoothing)
	}
	for name, value := range map[string]string{
		"backend.timeout":    c.Backend.Timeout,
		"capture.stop_delay": c.Capture.StopDelay,
		"vad.silence":        c.VAD.Silence,
		"vad.poll_interval":  c.VAD.PollInterval,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	switch c.Capture.Source {
	case "microphone", "file":
	default:
		return fmt.Errorf("unknown capture.source %q", c.Capture.Source)
	}
	switch c.Playback.Output {
	case "speaker", "file":
	default:
		return fmt.Errorf("unknown playback.output %q", c.Playback.Output)
	}
	return nil
}

// Duration parses a duration that validate has already checked.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
