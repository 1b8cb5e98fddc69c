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

// Speaker stub when portaudio is not available. Replies are decoded so their
// duration is known, but playback is always blocked.
type Speaker struct {
	logger *slog.Logger
}

func NewSpeaker(logger *slog.Logger) *Speaker {
	return &Speaker{logger: logger}
}

func (s *Speaker) Load(_ context.Context, data []byte, contentType string) (application.Track, error) {
	dt, err := newDecodedTrack(data, contentType)
	if err != nil {
		return nil, err
	}
	return &blockedTrack{decodedTrack: dt}, nil
}

type blockedTrack struct {
	*decodedTrack
}

func (t *blockedTrack) Play() error {
	return fmt.Errorf("%w: speaker not available, rebuild with -tags portaudio", domain.ErrPlaybackBlocked)
}

func (t *blockedTrack) Pause() {}

func (t *blockedTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}
