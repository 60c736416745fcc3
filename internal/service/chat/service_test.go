package chat_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
	"github.com/novatos-ai/assistant/backend/internal/model/profile"
	"github.com/novatos-ai/assistant/backend/internal/service/ai"
	chat "github.com/novatos-ai/assistant/backend/internal/service/chat"
)

type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	release chan struct{}
	started chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, _ ai.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.reply, g.err
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubNotifier struct {
	mu     sync.Mutex
	err    error
	drafts []chatmodel.BookingDraft
}

func (n *stubNotifier) NotifyBooking(_ context.Context, d chatmodel.BookingDraft) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drafts = append(n.drafts, d)
	return n.err
}

func newSession(t *testing.T, gen ai.Generator, notifier *stubNotifier, delay time.Duration) *chat.Session {
	t.Helper()
	orch, err := ai.NewOrchestrator(ai.OrchestratorConfig{
		Generator: gen,
		Responses: ai.DefaultResponses(profile.Seed()),
	})
	require.NoError(t, err)

	cfg := chat.SessionConfig{
		Responder:        orch,
		Profile:          profile.Seed(),
		BookingOpenDelay: delay,
	}
	if notifier != nil {
		cfg.Notifier = notifier
	}
	sess, err := chat.NewSession("test-session", cfg)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func awaitReply(t *testing.T, ch <-chan chatmodel.Message) chatmodel.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "reply channel closed without a message")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		return chatmodel.Message{}
	}
}

func validDraft() chatmodel.BookingDraft {
	return chatmodel.BookingDraft{
		Name:    "A",
		Email:   "a@b.com",
		Phone:   "123",
		Service: "X",
		Date:    "2025-01-01",
		Time:    "9:00 AM",
	}
}

func openBooking(t *testing.T, sess *chat.Session) {
	t.Helper()
	_, ch, err := sess.Submit(context.Background(), "book a demo")
	require.NoError(t, err)
	awaitReply(t, ch)
	require.True(t, sess.Snapshot().BookingActive)
}

func TestNewSessionSeedsGreeting(t *testing.T) {
	sess := newSession(t, nil, nil, 0)
	state := sess.Snapshot()

	require.Len(t, state.Messages, 1)
	assert.Equal(t, chatmodel.SenderAssistant, state.Messages[0].Sender)
	assert.Equal(t, profile.Seed().OpeningLine, state.Messages[0].Text)
	assert.Equal(t, chatmodel.PhaseIdle, state.Phase)
	assert.False(t, state.InputLocked)
	assert.False(t, state.BookingActive)
}

func TestSubmitGreetingUsesCannedReply(t *testing.T) {
	gen := &stubGenerator{reply: "generated"}
	sess := newSession(t, gen, nil, 0)

	user, ch, err := sess.Submit(context.Background(), "hello")
	require.NoError(t, err)
	reply := awaitReply(t, ch)

	state := sess.Snapshot()
	require.Len(t, state.Messages, 3)
	assert.Equal(t, user, state.Messages[1])
	assert.Equal(t, chatmodel.SenderUser, user.Sender)
	assert.Equal(t, "greeting", user.Intent)
	assert.Equal(t, "hello", user.Text)
	assert.Equal(t, reply, state.Messages[2])
	assert.Equal(t, user.ID, reply.ReplyTo)
	assert.Equal(t, ai.DefaultResponses(profile.Seed())["greeting"], reply.Text)
	assert.Equal(t, chatmodel.PhaseIdle, state.Phase)
	assert.Zero(t, gen.callCount())
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	sess := newSession(t, nil, nil, 0)
	for _, text := range []string{"", "   ", "\n\t"} {
		_, _, err := sess.Submit(context.Background(), text)
		assert.ErrorIs(t, err, chat.ErrEmptyInput)
	}
	assert.Len(t, sess.Snapshot().Messages, 1)
}

func TestSubmitWhileAwaitingIsRejected(t *testing.T) {
	gen := &stubGenerator{
		reply:   "Refunds are handled case by case.",
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	sess := newSession(t, gen, nil, 0)

	_, ch, err := sess.Submit(context.Background(), "tell me about your refund policy")
	require.NoError(t, err)
	<-gen.started

	state := sess.Snapshot()
	assert.True(t, state.InputLocked)
	assert.Equal(t, chatmodel.PhaseAwaitingResponse, state.Phase)

	_, _, err = sess.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, chat.ErrSessionBusy)
	assert.Len(t, sess.Snapshot().Messages, 2)

	close(gen.release)
	reply := awaitReply(t, ch)
	assert.Equal(t, "Refunds are handled case by case.", reply.Text)

	state = sess.Snapshot()
	assert.Len(t, state.Messages, 3)
	assert.False(t, state.InputLocked)
}

func TestSubmitWithEmptyCorpusStillReplies(t *testing.T) {
	gen := &stubGenerator{reply: "x"}
	sess := newSession(t, gen, nil, 0)

	_, ch, err := sess.Submit(context.Background(), "tell me about your refund policy")
	require.NoError(t, err)
	reply := awaitReply(t, ch)

	assert.Equal(t, ai.FallbackReply, reply.Text)
	assert.Len(t, sess.Snapshot().Messages, 3)
	assert.Equal(t, 1, gen.callCount())
}

func TestSubmitGenerationFailureApologizes(t *testing.T) {
	sess := newSession(t, &stubGenerator{err: errors.New("quota exceeded")}, nil, 0)

	_, ch, err := sess.Submit(context.Background(), "tell me about your refund policy")
	require.NoError(t, err)
	reply := awaitReply(t, ch)

	assert.Contains(t, reply.Text, "I apologize")
	assert.Contains(t, reply.Text, profile.Seed().ContactEmail)
	assert.False(t, sess.Snapshot().InputLocked)
}

func TestSubmitWithoutGeneratorApologizes(t *testing.T) {
	sess := newSession(t, nil, nil, 0)

	_, ch, err := sess.Submit(context.Background(), "asdkj qweq")
	require.NoError(t, err)
	reply := awaitReply(t, ch)
	assert.Contains(t, reply.Text, profile.Seed().ContactEmail)
}

func TestSubmitSurvivesCallerCancellation(t *testing.T) {
	gen := &stubGenerator{reply: "We answer within a day."}
	sess := newSession(t, gen, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ch, err := sess.Submit(ctx, "how fast do you answer tickets")
	require.NoError(t, err)

	reply := awaitReply(t, ch)
	assert.Equal(t, "We answer within a day.", reply.Text)
}

func TestMessageIDsAreOrdered(t *testing.T) {
	sess := newSession(t, nil, nil, 0)
	for _, text := range []string{"hello", "what's your pricing", "thanks"} {
		_, ch, err := sess.Submit(context.Background(), text)
		require.NoError(t, err)
		awaitReply(t, ch)
	}

	messages := sess.Snapshot().Messages
	require.Len(t, messages, 7)
	ids := make([]string, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
		seen[m.ID] = struct{}{}
	}
	assert.True(t, sort.StringsAreSorted(ids))
	assert.Len(t, seen, len(messages))
}

func TestBookingFlow(t *testing.T) {
	notifier := &stubNotifier{}
	sess := newSession(t, nil, notifier, 0)
	openBooking(t, sess)

	before := len(sess.Snapshot().Messages)
	msg, err := sess.SubmitBooking(context.Background(), validDraft())
	require.NoError(t, err)

	state := sess.Snapshot()
	assert.False(t, state.BookingActive)
	assert.Equal(t, chatmodel.BookingDraft{}, state.Draft)
	assert.Equal(t, chatmodel.PhaseIdle, state.Phase)
	require.Len(t, state.Messages, before+1)
	assert.Equal(t, msg, state.Messages[before])

	for _, field := range []string{"A", "a@b.com", "123", "X", "2025-01-01", "9:00 AM"} {
		assert.Contains(t, msg.Text, field)
	}
	assert.Contains(t, msg.Text, "has been notified")

	require.Len(t, notifier.drafts, 1)
	assert.Equal(t, validDraft(), notifier.drafts[0])
}

func TestBookingRejectsIncompleteDraft(t *testing.T) {
	notifier := &stubNotifier{}
	sess := newSession(t, nil, notifier, 0)
	openBooking(t, sess)
	before := len(sess.Snapshot().Messages)

	draft := validDraft()
	draft.Phone = " "
	_, err := sess.SubmitBooking(context.Background(), draft)
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrInvalidBookingDraft)

	var invalid *chat.InvalidDraftError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"phone"}, invalid.Missing)

	state := sess.Snapshot()
	assert.True(t, state.BookingActive)
	assert.Len(t, state.Messages, before)
	assert.Empty(t, notifier.drafts)
}

func TestBookingNotifierFailureStillConfirms(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("smtp down")}
	sess := newSession(t, nil, notifier, 0)
	openBooking(t, sess)

	msg, err := sess.SubmitBooking(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "recorded your request")
	assert.NotContains(t, msg.Text, "has been notified")
	assert.Contains(t, msg.Text, profile.Seed().BookingURL)
	assert.Contains(t, msg.Text, profile.Seed().ContactEmail)
	assert.False(t, sess.Snapshot().BookingActive)
}

func TestBookingRequiresOpenForm(t *testing.T) {
	sess := newSession(t, nil, &stubNotifier{}, 0)

	_, err := sess.SubmitBooking(context.Background(), validDraft())
	assert.ErrorIs(t, err, chat.ErrBookingNotOpen)
	assert.ErrorIs(t, sess.CancelBooking(), chat.ErrBookingNotOpen)
	_, err = sess.UpdateDraft(validDraft())
	assert.ErrorIs(t, err, chat.ErrBookingNotOpen)
	assert.Len(t, sess.Snapshot().Messages, 1)
}

func TestCancelBookingClearsDraft(t *testing.T) {
	sess := newSession(t, nil, &stubNotifier{}, 0)
	openBooking(t, sess)

	state, err := sess.UpdateDraft(chatmodel.BookingDraft{Name: " Ann ", Email: "ann@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", state.Draft.Name)
	before := len(state.Messages)

	require.NoError(t, sess.CancelBooking())
	state = sess.Snapshot()
	assert.False(t, state.BookingActive)
	assert.Equal(t, chatmodel.BookingDraft{}, state.Draft)
	assert.Len(t, state.Messages, before)
}

func TestSubmitBookingMergesCollectedFields(t *testing.T) {
	notifier := &stubNotifier{}
	sess := newSession(t, nil, notifier, 0)
	openBooking(t, sess)

	_, err := sess.UpdateDraft(chatmodel.BookingDraft{Name: "A", Email: "a@b.com", Phone: "123"})
	require.NoError(t, err)

	_, err = sess.SubmitBooking(context.Background(), chatmodel.BookingDraft{Service: "X", Date: "2025-01-01", Time: "9:00 AM"})
	require.NoError(t, err)
	require.Len(t, notifier.drafts, 1)
	assert.Equal(t, validDraft(), notifier.drafts[0])
}

func TestBookingOpensAfterDelay(t *testing.T) {
	sess := newSession(t, nil, &stubNotifier{}, 30*time.Millisecond)

	_, ch, err := sess.Submit(context.Background(), "I'd like to book a demo")
	require.NoError(t, err)
	awaitReply(t, ch)
	assert.False(t, sess.Snapshot().BookingActive)

	require.Eventually(t, func() bool {
		return sess.Snapshot().BookingActive
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	sess := newSession(t, nil, nil, 0)
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	_, ch, err := sess.Submit(context.Background(), "hello")
	require.NoError(t, err)
	reply := awaitReply(t, ch)

	var got []chatmodel.Event
	for len(got) < 4 {
		select {
		case evt := <-events:
			got = append(got, evt)
		case <-time.After(time.Second):
			t.Fatalf("received %d events, want 4", len(got))
		}
	}

	assert.Equal(t, chatmodel.EventMessage, got[0].Type)
	assert.Equal(t, "hello", got[0].Message.Text)
	assert.Equal(t, chatmodel.EventState, got[1].Type)
	assert.True(t, got[1].State.InputLocked)
	assert.Equal(t, chatmodel.EventMessage, got[2].Type)
	assert.Equal(t, reply.ID, got[2].Message.ID)
	assert.Equal(t, chatmodel.EventState, got[3].Type)
	assert.False(t, got[3].State.InputLocked)
}

func TestCloseNotifiesSubscribersAndDropsPendingReply(t *testing.T) {
	gen := &stubGenerator{reply: "late", release: make(chan struct{}), started: make(chan struct{}, 1)}
	sess := newSession(t, gen, nil, 0)
	events, unsubscribe := sess.Subscribe()

	_, ch, err := sess.Submit(context.Background(), "asdkj qweq")
	require.NoError(t, err)
	<-gen.started

	sess.Close()
	close(gen.release)

	_, ok := <-ch
	assert.False(t, ok)

	var last chatmodel.Event
	for evt := range events {
		last = evt
	}
	assert.Equal(t, chatmodel.EventClosed, last.Type)
	unsubscribe()

	_, _, err = sess.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, chat.ErrSessionClosed)
	assert.Len(t, sess.Snapshot().Messages, 2)
}

func newService(t *testing.T, ttl time.Duration) *chat.Service {
	t.Helper()
	orch, err := ai.NewOrchestrator(ai.OrchestratorConfig{Responses: ai.DefaultResponses(profile.Seed())})
	require.NoError(t, err)
	svc := chat.NewService(chat.ServiceConfig{
		Session:         chat.SessionConfig{Responder: orch, Profile: profile.Seed()},
		TTL:             ttl,
		CleanupInterval: 10 * time.Millisecond,
	})
	t.Cleanup(svc.Shutdown)
	return svc
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(t, time.Minute)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 1, svc.Count())
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(t, time.Minute)
	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	assert.ErrorIs(t, svc.CloseSession(context.Background(), "missing"), chat.ErrSessionNotFound)
}

func TestServiceCloseSession(t *testing.T) {
	svc := newService(t, time.Minute)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.CloseSession(ctx, session.ID()))

	assert.True(t, session.Closed())
	_, err = svc.GetSession(ctx, session.ID())
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceEvictsIdleSessions(t *testing.T) {
	svc := newService(t, 20*time.Millisecond)
	session, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	require.Eventually(t, session.Closed, time.Second, 5*time.Millisecond)
	_, err = svc.GetSession(context.Background(), session.ID())
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}
