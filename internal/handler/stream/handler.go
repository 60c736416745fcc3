package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
	chatService "github.com/novatos-ai/assistant/backend/internal/service/chat"
	"github.com/novatos-ai/assistant/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler pushes session events to the widget via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	logger    *zap.Logger
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, logger: logger, heartbeat: defaultHeartbeat}
}

// RegisterRoutes mounts the server-sent events route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/events", h.handleEvents)
}

// handleEvents sends the current state first, then every session event until
// the client disconnects or the session closes.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	state := session.Snapshot()
	if err := utils.SendSSEEvent(w, flusher, string(chatmodel.EventState), chatmodel.Event{
		Type:      chatmodel.EventState,
		SessionID: sessionID,
		State:     &state,
	}); err != nil {
		return
	}

	h.logger.Debug("event stream opened", zap.String("session_id", sessionID))
	defer h.logger.Debug("event stream closed", zap.String("session_id", sessionID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(evt.Type), evt); err != nil {
				return
			}
			if evt.Type == chatmodel.EventClosed {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
