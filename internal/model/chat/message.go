package chat

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one immutable turn in a session transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	ReplyTo   string    `json:"replyTo,omitempty"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
