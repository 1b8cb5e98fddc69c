package application

import (
	"context"
	"time"
)

// Microphone is the permission-gated capture device.
type Microphone interface {
	// Open asks for access and starts capturing in the given container type.
	// A refusal is reported as domain.ErrPermissionDenied.
	Open(ctx context.Context, mimeType string) (AudioStream, error)
	// MIMETypes lists the container types the device can record, native first.
	MIMETypes() []string
	Name() string
}

// AudioStream is a live capture handle for one session.
type AudioStream interface {
	// Fragments delivers encoded fragments in arrival order. The channel is
	// closed once the final fragment has been delivered after Finalize.
	Fragments() <-chan []byte
	// Level returns the current normalized energy in [0,1].
	Level() float64
	// Finalize asks the recorder to flush pending data and end the stream.
	Finalize()
	// Close releases the hardware. Safe to call more than once.
	Close() error
	MIMEType() string
}

// Player prepares reply audio for playback.
type Player interface {
	Load(ctx context.Context, data []byte, contentType string) (Track, error)
}

// Track is a loaded reply. Play may fail with domain.ErrPlaybackBlocked, in
// which case the track stays loaded for a manual retry. Position and Duration
// may be called from any goroutine.
type Track interface {
	// Play starts or resumes playback. After the end was reached it rewinds.
	Play() error
	Pause()
	Position() time.Duration
	Duration() time.Duration
	// Done is closed when the current play-through reaches the end. The next
	// Play after that starts a new play-through with a fresh channel.
	Done() <-chan struct{}
	Close() error
}

// ChooseMIMEType returns the first preferred type the device supports and
// falls back to the device's native type.
func ChooseMIMEType(preferred, supported []string) string {
	for _, p := range preferred {
		for _, s := range supported {
			if p == s {
				return p
			}
		}
	}
	if len(supported) > 0 {
		return supported[0]
	}
	if len(preferred) > 0 {
		return preferred[0]
	}
	return "audio/wav"
}

func FileExtension(mimeType string) string {
	switch mimeType {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".bin"
	}
}
