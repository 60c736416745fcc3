package chat

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/novatos-ai/assistant/backend/internal/analysis/intent"
	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
	"github.com/novatos-ai/assistant/backend/internal/model/profile"
	"github.com/novatos-ai/assistant/backend/internal/service/notify"
)

// DefaultBookingOpenDelay is the pause between the booking reply and the form.
const DefaultBookingOpenDelay = time.Second

const subscriberBuffer = 16

// Responder produces the assistant reply for a classified utterance.
type Responder interface {
	Respond(ctx context.Context, utterance string, label intent.Label) (string, error)
}

// SessionConfig carries the collaborators shared by every session.
type SessionConfig struct {
	Responder Responder
	Notifier  notify.Notifier
	Profile   profile.Profile
	// BookingOpenDelay <= 0 opens the form before the reply is delivered.
	BookingOpenDelay time.Duration
	Logger           *zap.Logger
}

// Session owns one conversation: its transcript, the turn lock and the
// booking sub-flow. All methods are safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time

	responder Responder
	notifier  notify.Notifier
	profile   profile.Profile
	delay     time.Duration
	logger    *zap.Logger

	mu            sync.Mutex
	phase         chatmodel.Phase
	messages      []chatmodel.Message
	bookingActive bool
	draft         chatmodel.BookingDraft
	bookingTimer  *time.Timer
	closed        bool
	entropy       io.Reader
	subs          map[int]chan chatmodel.Event
	nextSub       int
}

// NewSession starts a conversation seeded with the assistant's opening line.
func NewSession(id string, cfg SessionConfig) (*Session, error) {
	if cfg.Responder == nil {
		return nil, fmt.Errorf("session requires a responder")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(cfg.Logger)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		id:        id,
		createdAt: time.Now().UTC(),
		responder: cfg.Responder,
		notifier:  notifier,
		profile:   cfg.Profile,
		delay:     cfg.BookingOpenDelay,
		logger:    logger.With(zap.String("session_id", id)),
		phase:     chatmodel.PhaseIdle,
		messages:  make([]chatmodel.Message, 0, 16),
		entropy:   ulid.Monotonic(rand.Reader, 0),
		subs:      make(map[int]chan chatmodel.Event),
	}
	s.appendLocked(chatmodel.SenderAssistant, cfg.Profile.OpeningLine, "", "")
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Submit accepts a user utterance and returns the recorded user message. The
// returned channel yields the assistant reply once it has been appended and
// is then closed. The channel is closed without a value when the
// session is closed before the reply arrives.
//
// The reply is produced on a context detached from ctx: once accepted, a turn
// always completes.
func (s *Session) Submit(ctx context.Context, text string) (chatmodel.Message, <-chan chatmodel.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatmodel.Message{}, nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chatmodel.Message{}, nil, ErrSessionClosed
	}
	if s.phase != chatmodel.PhaseIdle {
		s.mu.Unlock()
		return chatmodel.Message{}, nil, ErrSessionBusy
	}

	label := intent.Classify(text)
	userMsg := s.appendLocked(chatmodel.SenderUser, text, "", label)
	s.phase = chatmodel.PhaseAwaitingResponse
	s.publishStateLocked()
	s.mu.Unlock()

	s.logger.Debug("utterance accepted",
		zap.String("message_id", userMsg.ID),
		zap.String("intent", string(label)),
	)

	done := make(chan chatmodel.Message, 1)
	go s.reply(context.WithoutCancel(ctx), userMsg, label, done)
	return userMsg, done, nil
}

func (s *Session) reply(ctx context.Context, userMsg chatmodel.Message, label intent.Label, done chan<- chatmodel.Message) {
	defer close(done)

	text, err := s.responder.Respond(ctx, userMsg.Text, label)
	if err != nil {
		s.logger.Error("reply generation failed", zap.String("reply_to", userMsg.ID), zap.Error(err))
		text = s.apology()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	msg := s.appendLocked(chatmodel.SenderAssistant, text, userMsg.ID, label)
	s.phase = chatmodel.PhaseIdle
	if label == intent.Booking && err == nil {
		s.scheduleBookingLocked()
	}
	s.publishStateLocked()
	s.mu.Unlock()

	done <- msg
}

func (s *Session) apology() string {
	return fmt.Sprintf("I apologize, but I'm having trouble processing your request right now. Please try again or contact us directly at %s for assistance.",
		s.profile.ContactEmail)
}

func (s *Session) scheduleBookingLocked() {
	if s.delay <= 0 {
		s.openBookingLocked()
		return
	}
	if s.bookingTimer != nil {
		s.bookingTimer.Stop()
	}
	s.bookingTimer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.openBookingLocked()
		s.publishStateLocked()
	})
}

func (s *Session) openBookingLocked() {
	if s.bookingActive {
		return
	}
	s.bookingActive = true
	s.draft = chatmodel.BookingDraft{}
}

// UpdateDraft merges the non-blank fields of update into the open draft.
func (s *Session) UpdateDraft(update chatmodel.BookingDraft) (chatmodel.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chatmodel.SessionState{}, ErrSessionClosed
	}
	if !s.bookingActive {
		return chatmodel.SessionState{}, ErrBookingNotOpen
	}
	s.draft = s.draft.Merge(update.Normalize())
	s.publishStateLocked()
	return s.snapshotLocked(), nil
}

// SubmitBooking completes the booking sub-flow. draft is merged over any
// fields collected with UpdateDraft; every field must end up non-blank.
// A notifier failure does not fail the call, it only changes the wording of
// the returned confirmation.
func (s *Session) SubmitBooking(ctx context.Context, draft chatmodel.BookingDraft) (chatmodel.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chatmodel.Message{}, ErrSessionClosed
	}
	if !s.bookingActive {
		s.mu.Unlock()
		return chatmodel.Message{}, ErrBookingNotOpen
	}
	final := s.draft.Merge(draft.Normalize())
	if missing := final.Missing(); len(missing) > 0 {
		s.mu.Unlock()
		return chatmodel.Message{}, &InvalidDraftError{Missing: missing}
	}
	s.bookingActive = false
	s.draft = chatmodel.BookingDraft{}
	s.publishStateLocked()
	s.mu.Unlock()

	notified := true
	if err := s.notifier.NotifyBooking(context.WithoutCancel(ctx), final); err != nil {
		notified = false
		s.logger.Error("booking notification failed", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.appendLocked(chatmodel.SenderAssistant, s.confirmation(final, notified), "", intent.Booking)
	s.publishStateLocked()
	return msg, nil
}

func (s *Session) confirmation(d chatmodel.BookingDraft, notified bool) string {
	var b strings.Builder
	b.WriteString("Perfect! I've collected your information for a demo appointment:\n\n")
	fmt.Fprintf(&b, "📅 %s at %s\n", d.Date, d.Time)
	fmt.Fprintf(&b, "👤 %s\n", d.Name)
	fmt.Fprintf(&b, "📧 %s\n", d.Email)
	fmt.Fprintf(&b, "📞 %s\n", d.Phone)
	fmt.Fprintf(&b, "🤖 Service: %s\n\n", d.Service)
	if notified {
		b.WriteString("Our team has been notified and will contact you within 24 hours to confirm your demo appointment.\n\n")
		fmt.Fprintf(&b, "You can also book directly through our calendar: %s\n\n", s.profile.BookingURL)
	} else {
		b.WriteString("We've recorded your request and will contact you within 24 hours to confirm your demo appointment.\n\n")
		fmt.Fprintf(&b, "We had trouble submitting it to our team automatically, so please also book directly at %s or contact us at %s.\n\n",
			s.profile.BookingURL, s.profile.ContactEmail)
	}
	b.WriteString("Is there anything else I can help you with?")
	return b.String()
}

// CancelBooking closes the booking form and discards the draft.
func (s *Session) CancelBooking() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.bookingActive {
		return ErrBookingNotOpen
	}
	s.bookingActive = false
	s.draft = chatmodel.BookingDraft{}
	s.publishStateLocked()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() chatmodel.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers for session events. Events are dropped for a
// subscriber whose buffer is full. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan chatmodel.Event, func()) {
	ch := make(chan chatmodel.Event, subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Close ends the session. Pending replies are discarded and subscribers
// receive a closed event before their channels are closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.bookingTimer != nil {
		s.bookingTimer.Stop()
	}
	s.publishLocked(chatmodel.Event{Type: chatmodel.EventClosed, SessionID: s.id})
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) appendLocked(sender chatmodel.Sender, text, replyTo string, label intent.Label) chatmodel.Message {
	now := time.Now().UTC()
	msg := chatmodel.Message{
		ID:        ulid.MustNew(ulid.Timestamp(now), s.entropy).String(),
		SessionID: s.id,
		Sender:    sender,
		Text:      text,
		ReplyTo:   replyTo,
		Intent:    string(label),
		CreatedAt: now,
	}
	s.messages = append(s.messages, msg)
	s.publishLocked(chatmodel.Event{Type: chatmodel.EventMessage, SessionID: s.id, Message: &msg})
	return msg
}

func (s *Session) snapshotLocked() chatmodel.SessionState {
	messages := make([]chatmodel.Message, len(s.messages))
	copy(messages, s.messages)
	return chatmodel.SessionState{
		ID:            s.id,
		CreatedAt:     s.createdAt,
		Phase:         s.phase,
		Messages:      messages,
		InputLocked:   s.phase == chatmodel.PhaseAwaitingResponse,
		BookingActive: s.bookingActive,
		Draft:         s.draft,
	}
}

func (s *Session) publishStateLocked() {
	state := s.snapshotLocked()
	s.publishLocked(chatmodel.Event{Type: chatmodel.EventState, SessionID: s.id, State: &state})
}

func (s *Session) publishLocked(evt chatmodel.Event) {
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
