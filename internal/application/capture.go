package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

const DefaultStopDelay = 150 * time.Millisecond

var DefaultMIMETypes = []string{"audio/webm", "audio/ogg", "audio/wav"}

type CaptureConfig struct {
	PreferredMIMETypes []string
	// Filename is the upload file name without extension.
	Filename string
	// StopDelay postpones the finalize request so the tail of the last word
	// is kept. The delay is scheduled with VAD.AfterFunc.
	StopDelay time.Duration
	VAD       MonitorConfig
}

// CaptureHooks are invoked from capture goroutines; implementations must
// hand the work back to the owning event loop.
type CaptureHooks struct {
	OnFragment func(data []byte)
	OnFinished func()
	OnSilence  func()
}

// Capture owns the microphone stream of the active session, its fragment
// buffer and the voice activity monitor watching it. Apart from Open, its
// methods must be called from a single goroutine.
type Capture struct {
	mic    Microphone
	cfg    CaptureConfig
	logger *slog.Logger

	session       *domain.Session
	stream        AudioStream
	monitor       *Monitor
	cancelMonitor context.CancelFunc
	finalizeTimer Timer
	stopping      bool
}

func NewCapture(mic Microphone, cfg CaptureConfig, logger *slog.Logger) *Capture {
	if len(cfg.PreferredMIMETypes) == 0 {
		cfg.PreferredMIMETypes = DefaultMIMETypes
	}
	if cfg.Filename == "" {
		cfg.Filename = "voice"
	}
	if cfg.StopDelay < 0 {
		cfg.StopDelay = 0
	}
	cfg.VAD = cfg.VAD.withDefaults()
	return &Capture{
		mic:    mic,
		cfg:    cfg,
		logger: logger,
	}
}

// Open requests microphone access. It may block on a permission prompt and
// is safe to call from any goroutine.
func (c *Capture) Open(ctx context.Context) (AudioStream, error) {
	mimeType := ChooseMIMEType(c.cfg.PreferredMIMETypes, c.mic.MIMETypes())

	stream, err := c.mic.Open(ctx, mimeType)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	return stream, nil
}

// Begin takes ownership of stream for session and arms the monitor.
func (c *Capture) Begin(ctx context.Context, session *domain.Session, stream AudioStream, hooks CaptureHooks) {
	c.Abort()

	session.ResetChunks()
	c.session = session
	c.stream = stream
	c.stopping = false

	monCtx, cancel := context.WithCancel(ctx)
	c.cancelMonitor = cancel
	c.monitor = NewMonitor(c.cfg.VAD, hooks.OnSilence, c.logger.With("session", session.ID))
	go c.monitor.Run(monCtx, stream)

	go func() {
		for data := range stream.Fragments() {
			hooks.OnFragment(data)
		}
		hooks.OnFinished()
	}()

	c.logger.Info("recording started",
		"session", session.ID,
		"device", c.mic.Name(),
		"mime_type", stream.MIMEType(),
	)
}

func (c *Capture) Active() bool {
	return c.stream != nil
}

// OnChunk buffers a fragment for the active session.
func (c *Capture) OnChunk(data []byte) {
	if c.session == nil || c.stream == nil {
		return
	}
	c.session.AppendChunk(data)
}

// Stop requests finalization. Only the first call has an effect; it returns
// false for every later call and when nothing is recording.
func (c *Capture) Stop() bool {
	if c.stream == nil || c.stopping {
		return false
	}
	c.stopping = true
	c.teardownMonitor()

	stream := c.stream
	if c.cfg.StopDelay == 0 {
		stream.Finalize()
		return true
	}
	c.finalizeTimer = c.cfg.VAD.AfterFunc(c.cfg.StopDelay, stream.Finalize)
	return true
}

// Finish releases the hardware and assembles the clip from the buffered
// fragments.
func (c *Capture) Finish() domain.Clip {
	mimeType := ""
	if c.stream != nil {
		mimeType = c.stream.MIMEType()
	}

	var data []byte
	if c.session != nil {
		data = c.session.Assemble()
	}

	c.release()

	return domain.Clip{
		Data:     data,
		MIMEType: mimeType,
		Filename: c.cfg.Filename + FileExtension(mimeType),
	}
}

// Abort drops the active stream without producing a clip.
func (c *Capture) Abort() {
	c.release()
}

func (c *Capture) release() {
	c.teardownMonitor()
	if c.finalizeTimer != nil {
		c.finalizeTimer.Stop()
		c.finalizeTimer = nil
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.logger.Warn("releasing microphone", "error", err)
		}
		c.stream = nil
	}
	c.session = nil
	c.stopping = false
}

func (c *Capture) teardownMonitor() {
	if c.cancelMonitor != nil {
		c.cancelMonitor()
		c.cancelMonitor = nil
	}
	if c.monitor != nil {
		c.monitor.Close()
		c.monitor = nil
	}
}
