package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNetwork          = errors.New("upload failed")
	ErrPlaybackBlocked  = errors.New("playback blocked")
	ErrEmptyCapture     = errors.New("no audio captured")
)

// UploadError describes a non-success response from the voice backend.
type UploadError struct {
	StatusCode int
	Detail     string
}

func (e *UploadError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

func (e *UploadError) Unwrap() error {
	return ErrNetwork
}

// UserMessage turns a session failure into the short text shown to the user.
func UserMessage(err error) string {
	var upErr *UploadError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone permission denied."
	case errors.Is(err, ErrEmptyCapture):
		return "No audio was captured."
	case errors.As(err, &upErr):
		if upErr.Detail != "" {
			return upErr.Detail
		}
		return "Server error"
	case errors.Is(err, ErrNetwork):
		return "Could not reach the voice service."
	default:
		return "Something went wrong."
	}
}
