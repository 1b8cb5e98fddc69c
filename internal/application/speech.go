package application

import (
	"context"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

// Uploader sends a finished clip to the voice backend and returns the
// synthesized reply.
type Uploader interface {
	Upload(ctx context.Context, clip domain.Clip) (*domain.Reply, error)
}
