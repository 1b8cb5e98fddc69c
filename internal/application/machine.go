package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

type Options struct {
	Capture      CaptureConfig
	AutoRelisten bool
	// DisableAutoplay leaves the reply loaded until Play is called.
	DisableAutoplay bool
}

// Machine sequences one voice chat session at a time: permission, capture,
// upload, playback and the optional relisten loop. All session state is owned
// by the goroutine running Run; every other method only posts events to it.
type Machine struct {
	capture   *Capture
	uploader  Uploader
	player    Player
	observers []Observer
	opts      Options
	logger    *slog.Logger
	newID     func() string

	events chan event
	done   chan struct{}
	ctx    context.Context

	status   domain.Status
	session  *domain.Session
	track    Track
	watching <-chan struct{}
	unwatch  chan struct{}
	playing  bool

	mu       sync.RWMutex
	snap     Snapshot
	snapTrk  Track
	trkAtEnd bool
}

func NewMachine(
	mic Microphone,
	uploader Uploader,
	player Player,
	opts Options,
	logger *slog.Logger,
	observers ...Observer,
) *Machine {
	m := &Machine{
		capture:   NewCapture(mic, opts.Capture, logger),
		uploader:  uploader,
		player:    player,
		observers: observers,
		opts:      opts,
		logger:    logger,
		newID:     uuid.NewString,
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		ctx:       context.Background(),
		status:    domain.StatusIdle,
	}
	m.snap = Snapshot{Status: domain.StatusIdle, AutoRelisten: opts.AutoRelisten}
	return m
}

type event interface{}

type (
	startEvent struct{ auto bool }
	stopEvent  struct {
		sessionID string
		reason    string
	}
	playEvent   struct{}
	pauseEvent  struct{}
	openedEvent struct {
		sessionID string
		stream    AudioStream
		err       error
	}
	fragmentEvent struct {
		sessionID string
		data      []byte
	}
	finalizedEvent struct{ sessionID string }
	uploadedEvent  struct {
		sessionID string
		reply     *domain.Reply
		track     Track
		err       error
	}
	playbackEndedEvent struct {
		track Track
		done  <-chan struct{}
	}
)

// Run processes events until ctx is done. It must be called once.
func (m *Machine) Run(ctx context.Context) error {
	m.ctx = ctx
	defer close(m.done)
	defer m.shutdown()

	m.logger.Info("voice chat ready", "auto_relisten", m.opts.AutoRelisten)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

// Start begins a new session unless one is already in progress.
func (m *Machine) Start() { m.post(startEvent{}) }

// Stop ends the current recording. Calling it when nothing is recording is a
// no-op.
func (m *Machine) Stop() { m.post(stopEvent{reason: "user"}) }

func (m *Machine) Play() { m.post(playEvent{}) }

func (m *Machine) Pause() { m.post(pauseEvent{}) }

// Done is closed once Run has returned.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Snapshot returns the current state, including live playback progress.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snap
	track := m.snapTrk
	atEnd := m.trkAtEnd
	m.mu.RUnlock()

	if track != nil {
		s.Duration = track.Duration()
		if !atEnd {
			s.Position = track.Position()
		}
	}
	return s
}

func (m *Machine) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Machine) handle(ev event) {
	switch ev := ev.(type) {
	case startEvent:
		m.handleStart(ev.auto)
	case stopEvent:
		m.handleStop(ev)
	case playEvent:
		m.handlePlay()
	case pauseEvent:
		m.handlePause()
	case openedEvent:
		m.handleOpened(ev)
	case fragmentEvent:
		if m.isCurrent(ev.sessionID) && m.status == domain.StatusRecording {
			m.capture.OnChunk(ev.data)
		}
	case finalizedEvent:
		m.handleFinalized(ev)
	case uploadedEvent:
		m.handleUploaded(ev)
	case playbackEndedEvent:
		m.handlePlaybackEnded(ev)
	default:
		m.logger.Warn("unknown event", "type", fmt.Sprintf("%T", ev))
	}
}

func (m *Machine) isCurrent(sessionID string) bool {
	return m.session != nil && m.session.ID == sessionID
}

func (m *Machine) handleStart(auto bool) {
	if m.status.Busy() {
		m.logger.Warn("start ignored, session in progress", "status", m.status)
		return
	}

	m.releaseTrack()

	session := domain.NewSession(m.newID(), time.Now())
	m.session = session
	m.setStatus(domain.StatusRequestingPermission)

	m.logger.Info("requesting microphone", "session", session.ID, "auto", auto)

	ctx := m.ctx
	go func() {
		stream, err := m.capture.Open(ctx)
		m.post(openedEvent{sessionID: session.ID, stream: stream, err: err})
	}()
}

func (m *Machine) handleOpened(ev openedEvent) {
	if !m.isCurrent(ev.sessionID) || m.status != domain.StatusRequestingPermission {
		if ev.stream != nil {
			ev.stream.Close()
		}
		return
	}
	if ev.err != nil {
		m.fail(ev.err)
		return
	}

	id := ev.sessionID
	m.capture.Begin(m.ctx, m.session, ev.stream, CaptureHooks{
		OnFragment: func(data []byte) { m.post(fragmentEvent{sessionID: id, data: data}) },
		OnFinished: func() { m.post(finalizedEvent{sessionID: id}) },
		OnSilence:  func() { m.post(stopEvent{sessionID: id, reason: "silence"}) },
	})
	m.setStatus(domain.StatusRecording)
}

func (m *Machine) handleStop(ev stopEvent) {
	if ev.sessionID != "" && !m.isCurrent(ev.sessionID) {
		return
	}
	if m.status != domain.StatusRecording {
		m.logger.Debug("stop ignored, not recording", "status", m.status)
		return
	}
	if m.capture.Stop() {
		m.logger.Info("stopping recording", "session", m.session.ID, "reason", ev.reason)
	}
}

func (m *Machine) handleFinalized(ev finalizedEvent) {
	if !m.isCurrent(ev.sessionID) || m.status != domain.StatusRecording {
		return
	}

	chunks := m.session.ChunkCount()
	clip := m.capture.Finish()
	m.setStatus(domain.StatusProcessing)

	if len(clip.Data) == 0 {
		m.fail(domain.ErrEmptyCapture)
		return
	}

	m.logger.Info("recording finalized",
		"session", ev.sessionID,
		"chunks", chunks,
		"bytes", len(clip.Data),
		"mime_type", clip.MIMEType,
	)

	ctx := m.ctx
	go func() {
		reply, err := m.uploader.Upload(ctx, clip)
		if err != nil {
			m.post(uploadedEvent{sessionID: ev.sessionID, err: err})
			return
		}
		track, err := m.player.Load(ctx, reply.Data, reply.ContentType)
		if err != nil {
			err = fmt.Errorf("preparing reply audio: %w", err)
		}
		m.post(uploadedEvent{sessionID: ev.sessionID, reply: reply, track: track, err: err})
	}()
}

func (m *Machine) handleUploaded(ev uploadedEvent) {
	if !m.isCurrent(ev.sessionID) || m.status != domain.StatusProcessing {
		if ev.track != nil {
			ev.track.Close()
		}
		return
	}
	if ev.err != nil {
		m.fail(ev.err)
		return
	}

	m.logger.Info("reply received",
		"session", ev.sessionID,
		"bytes", len(ev.reply.Data),
		"content_type", ev.reply.ContentType,
		"duration", ev.track.Duration(),
	)

	m.session.ResultAudio = ev.reply
	m.track = ev.track
	m.playing = false
	m.setStatus(domain.StatusReady)

	if !m.opts.DisableAutoplay {
		m.play()
	}
}

func (m *Machine) handlePlay() {
	if m.status != domain.StatusReady || m.track == nil || m.playing {
		return
	}
	m.play()
}

func (m *Machine) play() {
	if err := m.track.Play(); err != nil {
		if errors.Is(err, domain.ErrPlaybackBlocked) {
			m.logger.Warn("autoplay blocked, waiting for manual play", "error", err)
		} else {
			m.logger.Warn("starting playback", "error", err)
		}
		return
	}

	m.playing = true
	m.mu.Lock()
	m.trkAtEnd = false
	m.mu.Unlock()

	if done := m.track.Done(); done != m.watching {
		m.stopWatching()
		m.watching = done
		cancel := make(chan struct{})
		m.unwatch = cancel
		track := m.track
		ctx := m.ctx
		go func() {
			select {
			case <-done:
				m.post(playbackEndedEvent{track: track, done: done})
			case <-cancel:
			case <-ctx.Done():
			}
		}()
	}
	m.refresh()
}

func (m *Machine) handlePause() {
	if m.track == nil || !m.playing {
		return
	}
	m.track.Pause()
	m.playing = false
	m.refresh()
}

func (m *Machine) handlePlaybackEnded(ev playbackEndedEvent) {
	if ev.track != m.track || ev.done != m.watching {
		return
	}
	m.stopWatching()
	m.playing = false
	m.mu.Lock()
	m.trkAtEnd = true
	m.mu.Unlock()
	m.refresh()

	m.logger.Info("playback finished", "session", m.session.ID)

	if m.opts.AutoRelisten && m.status == domain.StatusReady {
		m.handleStart(true)
	}
}

// fail releases the stream and timers before entering the error state.
func (m *Machine) fail(err error) {
	m.capture.Abort()

	msg := domain.UserMessage(err)
	if m.session != nil {
		m.session.Error = msg
	}
	m.logger.Error("session failed", "session", m.sessionID(), "error", err)
	m.setStatus(domain.StatusError)
}

func (m *Machine) releaseTrack() {
	if m.track == nil {
		return
	}
	if m.playing {
		m.track.Pause()
	}
	if err := m.track.Close(); err != nil {
		m.logger.Warn("closing reply track", "error", err)
	}
	m.track = nil
	m.stopWatching()
	m.playing = false
}

// stopWatching ends the goroutine waiting for the current play-through.
// A closed track never completes its Done channel.
func (m *Machine) stopWatching() {
	if m.unwatch != nil {
		close(m.unwatch)
		m.unwatch = nil
	}
	m.watching = nil
}

func (m *Machine) shutdown() {
	m.capture.Abort()
	m.releaseTrack()
	m.refresh()
}

func (m *Machine) sessionID() string {
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

func (m *Machine) setStatus(to domain.Status) {
	from := m.status
	m.status = to
	if m.session != nil {
		m.session.Status = to
	}
	snap := m.refresh()

	m.logger.Debug("status changed", "session", snap.SessionID, "from", from, "to", to)

	t := Transition{From: from, To: to, Snapshot: snap}
	for _, o := range m.observers {
		o.OnTransition(t)
	}
}

func (m *Machine) refresh() Snapshot {
	s := Snapshot{
		SessionID:    m.sessionID(),
		Status:       m.status,
		Playing:      m.playing,
		AutoRelisten: m.opts.AutoRelisten,
	}
	if m.session != nil {
		s.Error = m.session.Error
	}
	s.HasReply = m.track != nil

	m.mu.Lock()
	m.snap = s
	m.snapTrk = m.track
	atEnd := m.trkAtEnd
	m.mu.Unlock()

	if m.track != nil {
		s.Duration = m.track.Duration()
		if !atEnd {
			s.Position = m.track.Position()
		}
	}
	return s
}
