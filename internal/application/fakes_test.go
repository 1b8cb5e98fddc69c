package application_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

type fakeStream struct {
	mimeType  string
	fragments chan []byte
	level     atomic.Value

	endOnce   sync.Once
	finalized int32
	closed    int32
}

func newFakeStream(mimeType string) *fakeStream {
	s := &fakeStream{mimeType: mimeType, fragments: make(chan []byte, 16)}
	s.level.Store(0.5)
	return s
}

func (s *fakeStream) emit(data []byte)         { s.fragments <- data }
func (s *fakeStream) setLevel(l float64)       { s.level.Store(l) }
func (s *fakeStream) Fragments() <-chan []byte { return s.fragments }
func (s *fakeStream) Level() float64           { return s.level.Load().(float64) }
func (s *fakeStream) MIMEType() string         { return s.mimeType }
func (s *fakeStream) finalizeCount() int32     { return atomic.LoadInt32(&s.finalized) }
func (s *fakeStream) isClosed() bool           { return atomic.LoadInt32(&s.closed) > 0 }

func (s *fakeStream) end() {
	s.endOnce.Do(func() { close(s.fragments) })
}

func (s *fakeStream) Finalize() {
	atomic.AddInt32(&s.finalized, 1)
	s.end()
}

func (s *fakeStream) Close() error {
	atomic.AddInt32(&s.closed, 1)
	s.end()
	return nil
}

type fakeMic struct {
	supported []string

	mu      sync.Mutex
	err     error
	opens   int
	streams chan *fakeStream
}

func newFakeMic(supported ...string) *fakeMic {
	return &fakeMic{supported: supported, streams: make(chan *fakeStream, 8)}
}

func (m *fakeMic) Name() string        { return "fake" }
func (m *fakeMic) MIMETypes() []string { return m.supported }

func (m *fakeMic) Open(_ context.Context, mimeType string) (application.AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.err != nil {
		return nil, m.err
	}
	s := newFakeStream(mimeType)
	m.streams <- s
	return s, nil
}

func (m *fakeMic) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *fakeMic) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

type fakeUploader struct {
	mu    sync.Mutex
	clips []domain.Clip
	reply *domain.Reply
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, clip domain.Clip) (*domain.Reply, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.clips = append(u.clips, clip)
	if u.err != nil {
		return nil, u.err
	}
	if u.reply != nil {
		return u.reply, nil
	}
	return &domain.Reply{Data: []byte("reply-audio"), ContentType: "audio/wav"}, nil
}

func (u *fakeUploader) uploaded() []domain.Clip {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]domain.Clip(nil), u.clips...)
}

type fakeTrack struct {
	mu       sync.Mutex
	playErr  error
	playing  bool
	attempts int
	plays    int
	done     chan struct{}
	ended    bool
	closed   bool
}

func (t *fakeTrack) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.playErr != nil {
		return t.playErr
	}
	if t.ended {
		t.done = make(chan struct{})
		t.ended = false
	}
	t.playing = true
	t.plays++
	return nil
}

func (t *fakeTrack) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = false
}

func (t *fakeTrack) Position() time.Duration { return 500 * time.Millisecond }
func (t *fakeTrack) Duration() time.Duration { return 2 * time.Second }

func (t *fakeTrack) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// finish simulates the end of the current play-through.
func (t *fakeTrack) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		t.ended = true
		t.playing = false
		close(t.done)
	}
}

func (t *fakeTrack) setPlayErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playErr = err
}

func (t *fakeTrack) isPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *fakeTrack) playAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *fakeTrack) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakePlayer struct {
	playErr error
	loadErr error
	tracks  chan *fakeTrack
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{tracks: make(chan *fakeTrack, 8)}
}

func (p *fakePlayer) Load(_ context.Context, _ []byte, _ string) (application.Track, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	t := &fakeTrack{playErr: p.playErr, done: make(chan struct{})}
	p.tracks <- t
	return t, nil
}

// transitions collects every status change the machine reports.
type transitions chan application.Transition

func (c transitions) OnTransition(t application.Transition) {
	c <- t
}
