package chat

import "time"

// Phase is the turn-taking state of a session.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseAwaitingResponse Phase = "awaiting_response"
)

// SessionState is a point-in-time copy of a conversation, safe to render.
type SessionState struct {
	ID            string       `json:"id"`
	CreatedAt     time.Time    `json:"createdAt"`
	Phase         Phase        `json:"phase"`
	Messages      []Message    `json:"messages"`
	InputLocked   bool         `json:"inputLocked"`
	BookingActive bool         `json:"bookingActive"`
	Draft         BookingDraft `json:"draft"`
}

// EventType names a session change pushed to subscribers.
type EventType string

const (
	EventMessage EventType = "message"
	EventState   EventType = "state"
	EventClosed  EventType = "closed"
)

// Event is a session change notification.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"sessionId"`
	Message   *Message      `json:"message,omitempty"`
	State     *SessionState `json:"state,omitempty"`
}
