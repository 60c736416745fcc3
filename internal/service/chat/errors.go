package chat

import (
	"errors"
	"strings"
)

var (
	ErrEmptyInput          = errors.New("message text is required")
	ErrSessionBusy         = errors.New("session is waiting for a reply")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionClosed       = errors.New("session closed")
	ErrBookingNotOpen      = errors.New("booking form is not open")
	ErrInvalidBookingDraft = errors.New("invalid booking draft")
)

// InvalidDraftError lists the booking fields that were left blank.
type InvalidDraftError struct {
	Missing []string
}

func (e *InvalidDraftError) Error() string {
	return "booking draft is missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *InvalidDraftError) Unwrap() error {
	return ErrInvalidBookingDraft
}
