package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
	"github.com/novatos-ai/assistant/backend/internal/model/profile"
	"github.com/novatos-ai/assistant/backend/internal/service/ai"
	chatservice "github.com/novatos-ai/assistant/backend/internal/service/chat"
)

func newChatService(t *testing.T) *chatservice.Service {
	t.Helper()
	orch, err := ai.NewOrchestrator(ai.OrchestratorConfig{Responses: ai.DefaultResponses(profile.Seed())})
	require.NoError(t, err)
	svc := chatservice.NewService(chatservice.ServiceConfig{
		Session: chatservice.SessionConfig{Responder: orch, Profile: profile.Seed()},
	})
	t.Cleanup(svc.Shutdown)
	return svc
}

type sseEvent struct {
	name string
	data chatmodel.Event
}

func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	var evt sseEvent
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			evt.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt.data))
		case line == "" && evt.name != "":
			return evt
		}
	}
}

func TestEventsStream(t *testing.T) {
	chatSvc := newChatService(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	r := chi.NewRouter()
	New(chatSvc, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/session/" + session.ID() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	assert.Equal(t, "state", first.name)
	require.NotNil(t, first.data.State)
	assert.Len(t, first.data.State.Messages, 1)

	_, replies, err := session.Submit(context.Background(), "hello")
	require.NoError(t, err)
	select {
	case <-replies:
	case <-time.After(time.Second):
		t.Fatal("no reply")
	}

	userEvt := readEvent(t, reader)
	assert.Equal(t, "message", userEvt.name)
	require.NotNil(t, userEvt.data.Message)
	assert.Equal(t, "hello", userEvt.data.Message.Text)

	assert.Equal(t, "state", readEvent(t, reader).name)
	assert.Equal(t, "message", readEvent(t, reader).name)
	assert.Equal(t, "state", readEvent(t, reader).name)

	require.NoError(t, chatSvc.CloseSession(context.Background(), session.ID()))
	assert.Equal(t, "closed", readEvent(t, reader).name)
}

func TestEventsUnknownSession(t *testing.T) {
	r := chi.NewRouter()
	New(newChatService(t), nil).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/session/missing/events", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
