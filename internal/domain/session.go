package domain

import "time"

type Status string

const (
	StatusIdle                 Status = "idle"
	StatusRequestingPermission Status = "requesting-permission"
	StatusRecording            Status = "recording"
	StatusProcessing           Status = "processing"
	StatusReady                Status = "ready"
	StatusError                Status = "error"
)

// Busy reports whether a session holds (or is about to hold) the microphone
// or an in-flight upload. A new session cannot start while busy.
func (s Status) Busy() bool {
	switch s {
	case StatusRequestingPermission, StatusRecording, StatusProcessing:
		return true
	default:
		return false
	}
}

// Clip is the finalized capture handed to the upload stage.
type Clip struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Reply is the backend's synthesized audio, kept opaque.
type Reply struct {
	Data        []byte
	ContentType string
}

// Session is one recording to reply cycle.
type Session struct {
	ID        string
	Status    Status
	StartedAt time.Time

	chunks [][]byte

	ResultAudio *Reply
	Error       string
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Status:    StatusRequestingPermission,
		StartedAt: now,
	}
}

// AppendChunk records a captured fragment. Empty fragments are dropped.
func (s *Session) AppendChunk(fragment []byte) bool {
	if len(fragment) == 0 {
		return false
	}
	s.chunks = append(s.chunks, fragment)
	return true
}

func (s *Session) ResetChunks() {
	s.chunks = nil
}

func (s *Session) ChunkCount() int {
	return len(s.chunks)
}

// Assemble concatenates the buffered fragments in arrival order.
func (s *Session) Assemble() []byte {
	size := 0
	for _, c := range s.chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}
