//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

const outputFramesPerBuffer = 1024

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
	return &speakerTrack{decodedTrack: dt, logger: s.logger}, nil
}

type speakerTrack struct {
	*decodedTrack
	logger *slog.Logger

	paused  bool
	running bool
}

func (t *speakerTrack) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.rewindLocked(); err != nil {
		return err
	}
	t.paused = false
	if t.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initializing portaudio: %v", domain.ErrPlaybackBlocked, err)
	}

	out := make([]float32, outputFramesPerBuffer*2)
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(t.format.SampleRate), outputFramesPerBuffer, out)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: opening output stream: %v", domain.ErrPlaybackBlocked, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: starting output stream: %v", domain.ErrPlaybackBlocked, err)
	}

	t.running = true
	go t.loop(stream, out)
	return nil
}

func (t *speakerTrack) loop(stream *portaudio.Stream, out []float32) {
	defer func() {
		stream.Stop()
		stream.Close()
		portaudio.Terminate()
	}()

	buf := make([][2]float64, outputFramesPerBuffer)
	for {
		t.mu.Lock()
		if t.paused || t.closed {
			t.running = false
			t.mu.Unlock()
			return
		}
		n, ok := t.streamer.Stream(buf)
		t.mu.Unlock()

		for i := range buf {
			if i < n {
				out[2*i] = float32(buf[i][0])
				out[2*i+1] = float32(buf[i][1])
			} else {
				out[2*i], out[2*i+1] = 0, 0
			}
		}
		if err := stream.Write(); err != nil {
			t.logger.Warn("writing to output stream", "error", err)
		}

		if !ok || n < len(buf) {
			t.mu.Lock()
			t.running = false
			t.markEndedLocked()
			t.mu.Unlock()
			return
		}
	}
}

func (t *speakerTrack) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
}

func (t *speakerTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}
