package application

import (
	"time"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

// Snapshot is a point-in-time copy of the machine state for presentation.
type Snapshot struct {
	SessionID    string
	Status       domain.Status
	Error        string
	HasReply     bool
	Playing      bool
	Position     time.Duration
	Duration     time.Duration
	AutoRelisten bool
}

type Transition struct {
	From     domain.Status
	To       domain.Status
	Snapshot Snapshot
}

// Observer is notified of every status change. Implementations must not
// block; they run on the machine's event loop.
type Observer interface {
	OnTransition(t Transition)
}

type ObserverFunc func(t Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }
