//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

const wavMIMEType = "audio/wav"

type MicrophoneConfig struct {
	SampleRate      int
	FramesPerBuffer int
	FFTSize         int
	Smoothing       float64
}

type MicrophoneSource struct {
	cfg    MicrophoneConfig
	logger *slog.Logger
}

func NewMicrophoneSource(cfg MicrophoneConfig, logger *slog.Logger) *MicrophoneSource {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = 1024
	}
	return &MicrophoneSource{cfg: cfg, logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) MIMETypes() []string {
	return []string{wavMIMEType}
}

func (m *MicrophoneSource) Open(_ context.Context, mimeType string) (application.AudioStream, error) {
	if mimeType != wavMIMEType {
		return nil, fmt.Errorf("microphone cannot record %s", mimeType)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initializing portaudio: %v", domain.ErrPermissionDenied, err)
	}

	in := make([]int16, m.cfg.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.cfg.SampleRate), m.cfg.FramesPerBuffer, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: opening input stream: %v", domain.ErrPermissionDenied, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: starting input stream: %v", domain.ErrPermissionDenied, err)
	}

	s := &micStream{
		stream:     stream,
		in:         in,
		sampleRate: m.cfg.SampleRate,
		analyser:   NewAnalyser(m.cfg.FFTSize, m.cfg.Smoothing),
		fragments:  make(chan []byte, 1),
		finalize:   make(chan struct{}),
		closed:     make(chan struct{}),
		loopDone:   make(chan struct{}),
		samples:    make([]int16, 0, m.cfg.SampleRate*5),
		logger:     m.logger,
	}
	go s.captureLoop()

	m.logger.Info("microphone started", "sampleRate", m.cfg.SampleRate)
	return s, nil
}

type micStream struct {
	stream     *portaudio.Stream
	in         []int16
	sampleRate int
	analyser   *Analyser
	logger     *slog.Logger

	fragments chan []byte
	finalize  chan struct{}
	closed    chan struct{}
	loopDone  chan struct{}

	finalizeOnce sync.Once
	closeOnce    sync.Once

	samples []int16
}

func (s *micStream) Fragments() <-chan []byte { return s.fragments }
func (s *micStream) Level() float64           { return s.analyser.Level() }
func (s *micStream) MIMEType() string         { return wavMIMEType }

func (s *micStream) Finalize() {
	s.finalizeOnce.Do(func() { close(s.finalize) })
}

func (s *micStream) captureLoop() {
	defer close(s.loopDone)
	defer close(s.fragments)

	for {
		select {
		case <-s.closed:
			return
		case <-s.finalize:
			s.flush()
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			if err != portaudio.InputOverflowed {
				s.logger.Warn("reading from stream", "error", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		s.analyser.WriteInt16(s.in)
		s.samples = append(s.samples, s.in...)
	}
}

func (s *micStream) flush() {
	if len(s.samples) == 0 {
		return
	}
	data, err := EncodeWAV(s.samples, s.sampleRate)
	if err != nil {
		s.logger.Error("encoding capture", "error", err)
		return
	}
	select {
	case s.fragments <- data:
	case <-s.closed:
	}
}

func (s *micStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		<-s.loopDone
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("stopping stream: %w", stopErr)
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing stream: %w", closeErr)
		}
		portaudio.Terminate()
	})
	return err
}
