package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/faiface/beep"
)

var errTrackClosed = errors.New("track closed")

// decodedTrack holds the decoded reply and the play-through bookkeeping
// shared by the speaker and the file sink.
type decodedTrack struct {
	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	done     chan struct{}
	ended    bool
	closed   bool
}

func newDecodedTrack(data []byte, contentType string) (*decodedTrack, error) {
	s, f, err := Decode(data, contentType)
	if err != nil {
		return nil, err
	}
	return &decodedTrack{
		streamer: s,
		format:   f,
		done:     make(chan struct{}),
	}, nil
}

func (t *decodedTrack) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.format.SampleRate.D(t.streamer.Position())
}

func (t *decodedTrack) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.format.SampleRate.D(t.streamer.Len())
}

func (t *decodedTrack) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// rewindLocked starts a new play-through if the previous one ended.
func (t *decodedTrack) rewindLocked() error {
	if t.closed {
		return errTrackClosed
	}
	if !t.ended {
		return nil
	}
	if err := t.streamer.Seek(0); err != nil {
		return err
	}
	t.ended = false
	t.done = make(chan struct{})
	return nil
}

func (t *decodedTrack) markEndedLocked() {
	if t.ended {
		return
	}
	t.ended = true
	close(t.done)
}

func (t *decodedTrack) closeLocked() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.streamer.Close()
}
