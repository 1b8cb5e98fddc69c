//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

type MicrophoneConfig struct {
	SampleRate      int
	FramesPerBuffer int
	FFTSize         int
	Smoothing       float64
}

// MicrophoneSource stub when portaudio is not available
type MicrophoneSource struct {
	logger *slog.Logger
}

func NewMicrophoneSource(_ MicrophoneConfig, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) MIMETypes() []string {
	return []string{"audio/wav"}
}

func (m *MicrophoneSource) Open(_ context.Context, _ string) (application.AudioStream, error) {
	return nil, fmt.Errorf("%w: microphone source not available, rebuild with -tags portaudio", domain.ErrPermissionDenied)
}
