package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatHandler "github.com/novatos-ai/assistant/backend/internal/handler/chat"
	"github.com/novatos-ai/assistant/backend/internal/middleware"
	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
	chatService "github.com/novatos-ai/assistant/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Inbound message types.
const (
	TypeMessage       = "message"
	TypeDraft         = "draft"
	TypeBooking       = "booking"
	TypeCancelBooking = "cancel_booking"
)

// Handler serves a chat session over a websocket.
type Handler struct {
	chatSvc  *chatService.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates a websocket handler. Browsers connecting from an origin outside
// allowedOrigins are refused during the handshake; clients that send no
// Origin header are let through.
func New(chatSvc *chatService.Service, logger *zap.Logger, allowedOrigins []string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	originAllowed := middleware.OriginAllowed(allowedOrigins)
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

type textPayload struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type errorPayload struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

// conn serialises writes; gorilla allows one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket upgrades the request and pumps frames until either side
// closes.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer wsConn.Close()

	logger := h.logger.With(zap.String("session_id", sessionID))
	logger.Debug("websocket connected")

	c := &conn{ws: wsConn}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	state := session.Snapshot()
	if err := c.writeJSON(outgoingMessage{
		Type:      string(chatmodel.EventState),
		SessionID: sessionID,
		Data:      state,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		return
	}

	go h.pingLoop(ctx, c)
	go h.forwardEvents(ctx, cancel, c, events)

	for {
		var msg inboundMessage
		if err := wsConn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("websocket read error", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(c, http.StatusBadRequest, "session mismatch", nil)
			continue
		}

		h.handleMessage(ctx, c, session, &msg)
	}
}

// handleMessage dispatches one inbound frame. Replies and state changes reach
// the client through the session event subscription, not from here.
func (h *Handler) handleMessage(ctx context.Context, c *conn, session *chatService.Session, msg *inboundMessage) {
	var err error
	switch msg.Type {
	case TypeMessage:
		var payload textPayload
		if err = json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, http.StatusBadRequest, "invalid message payload", nil)
			return
		}
		_, _, err = session.Submit(ctx, payload.Text)
	case TypeDraft:
		var draft chatmodel.BookingDraft
		if err = json.Unmarshal(msg.Data, &draft); err != nil {
			h.sendError(c, http.StatusBadRequest, "invalid draft payload", nil)
			return
		}
		_, err = session.UpdateDraft(draft)
	case TypeBooking:
		var draft chatmodel.BookingDraft
		if len(msg.Data) > 0 {
			if err = json.Unmarshal(msg.Data, &draft); err != nil {
				h.sendError(c, http.StatusBadRequest, "invalid booking payload", nil)
				return
			}
		}
		_, err = session.SubmitBooking(ctx, draft)
	case TypeCancelBooking:
		err = session.CancelBooking()
	default:
		h.sendError(c, http.StatusBadRequest, "unknown message type: "+msg.Type, nil)
		return
	}

	if err != nil {
		var missing []string
		var invalid *chatService.InvalidDraftError
		if errors.As(err, &invalid) {
			missing = invalid.Missing
		}
		h.sendError(c, chatHandler.StatusFor(err), err.Error(), missing)
	}
}

func (h *Handler) forwardEvents(ctx context.Context, cancel context.CancelFunc, c *conn, events <-chan chatmodel.Event) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			var data interface{}
			switch {
			case evt.Message != nil:
				data = evt.Message
			case evt.State != nil:
				data = evt.State
			}
			if err := c.writeJSON(outgoingMessage{
				Type:      string(evt.Type),
				SessionID: evt.SessionID,
				Data:      data,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				return
			}
			if evt.Type == chatmodel.EventClosed {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeTimeout))
				// unblocks the read loop
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (h *Handler) sendError(c *conn, code int, message string, missing []string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      errorPayload{Code: code, Message: message, Missing: missing},
		Timestamp: time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		h.logger.Debug("websocket write error failed", zap.Error(err))
	}
}

// pingLoop keeps idle connections alive.
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
