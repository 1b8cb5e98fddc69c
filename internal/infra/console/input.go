package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
)

// Controls is the part of the session machine the keyboard drives.
type Controls interface {
	Start()
	Stop()
	Play()
	Pause()
	Snapshot() application.Snapshot
}

const keyHelp = "Enter: talk / stop   p: play / pause   q: quit"

// ErrQuit is returned by Run when the user asks to leave.
var ErrQuit = errors.New("quit")

// Keyboard maps terminal lines onto the chat buttons: an empty line starts a
// session or stops the recording, "p" toggles playback and "q" quits.
type Keyboard struct {
	in       io.Reader
	out      io.Writer
	controls Controls
}

func NewKeyboard(in io.Reader, out io.Writer, controls Controls) *Keyboard {
	return &Keyboard{in: in, out: out, controls: controls}
}

// Run returns when ctx is done, on "q", or when input ends.
func (k *Keyboard) Run(ctx context.Context) error {
	fmt.Fprintln(k.out, dimStyle.Render(keyHelp))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(k.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := k.handle(strings.ToLower(strings.TrimSpace(line))); quit {
				return ErrQuit
			}
		}
	}
}

func (k *Keyboard) handle(key string) bool {
	snap := k.controls.Snapshot()

	switch key {
	case "", "s":
		switch {
		case snap.Status == domain.StatusRecording:
			k.controls.Stop()
		case !snap.Status.Busy():
			k.controls.Start()
		}
	case "p":
		if snap.Playing {
			k.controls.Pause()
		} else {
			k.controls.Play()
		}
	case "q":
		return true
	default:
		fmt.Fprintln(k.out, dimStyle.Render(keyHelp))
	}
	return false
}
