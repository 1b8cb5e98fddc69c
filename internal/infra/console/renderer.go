// Package console renders session transitions as status lines on a terminal.
package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

var statusMessages = map[domain.Status]string{
	domain.StatusIdle:                 "Ready to chat",
	domain.StatusRequestingPermission: "Requesting microphone access...",
	domain.StatusRecording:            "Listening... Speak now",
	domain.StatusProcessing:           "Processing your message...",
	domain.StatusReady:                "AI response ready",
	domain.StatusError:                "Error occurred",
}

var statusColors = map[domain.Status]lipgloss.Color{
	domain.StatusIdle:                 lipgloss.Color("#60A5FA"),
	domain.StatusRequestingPermission: lipgloss.Color("#FACC15"),
	domain.StatusRecording:            lipgloss.Color("#F87171"),
	domain.StatusProcessing:           lipgloss.Color("#C084FC"),
	domain.StatusReady:                lipgloss.Color("#4ADE80"),
	domain.StatusError:                lipgloss.Color("#F87171"),
}

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// StatusMessage is the human-readable text for a status.
func StatusMessage(s domain.Status) string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return string(s)
}

type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) OnTransition(t application.Transition) {
	style := lipgloss.NewStyle().Bold(true).Foreground(statusColors[t.To])
	line := style.Render(StatusMessage(t.To))

	switch t.To {
	case domain.StatusError:
		if t.Snapshot.Error != "" {
			line += " " + errorStyle.Render(t.Snapshot.Error)
		}
	case domain.StatusReady:
		if t.Snapshot.Duration > 0 {
			line += " " + dimStyle.Render(FormatTime(t.Snapshot.Duration))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, line)
}

// FormatTime renders a duration as m:ss.
func FormatTime(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
