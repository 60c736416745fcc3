package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
	chatService "github.com/novatos-ai/assistant/backend/internal/service/chat"
	"github.com/novatos-ai/assistant/backend/pkg/utils"
)

// Handler exposes chat sessions over REST.
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
}

// New creates a chat handler.
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, logger: logger}
}

// RegisterRoutes mounts the session, message and booking routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Delete("/session/{sessionID}", h.handleCloseSession)
	r.Post("/session/{sessionID}/messages", h.handleSubmit)
	r.Patch("/session/{sessionID}/booking", h.handleUpdateDraft)
	r.Post("/session/{sessionID}/booking", h.handleSubmitBooking)
	r.Delete("/session/{sessionID}/booking", h.handleCancelBooking)
}

type submitResponse struct {
	Message chatmodel.Message  `json:"message"`
	Reply   *chatmodel.Message `json:"reply,omitempty"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit waits for the assistant reply unless ?async=true. If the client
// goes away first the turn still completes inside the session.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userMsg, replies, err := session.Submit(r.Context(), payload.Text)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	resp := submitResponse{Message: userMsg}
	if r.URL.Query().Get("async") == "true" {
		utils.RespondJSON(w, http.StatusAccepted, resp)
		return
	}

	select {
	case reply, ok := <-replies:
		if !ok {
			utils.RespondJSON(w, http.StatusAccepted, resp)
			return
		}
		resp.Reply = &reply
		utils.RespondJSON(w, http.StatusOK, resp)
	case <-r.Context().Done():
		h.logger.Debug("client left before reply", zap.String("session_id", session.ID()))
	}
}

func (h *Handler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var draft chatmodel.BookingDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := session.UpdateDraft(draft)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var draft chatmodel.BookingDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := session.SubmitBooking(r.Context(), draft)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, msg)
}

func (h *Handler) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := session.CancelBooking(); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatService.Session, bool) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var invalid *chatService.InvalidDraftError
	if errors.As(err, &invalid) {
		utils.RespondMissing(w, err.Error(), invalid.Missing)
		return
	}

	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("session request failed", zap.Error(err))
	}
	utils.RespondError(w, status, err.Error())
}

// StatusFor maps session errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrInvalidBookingDraft):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chatService.ErrSessionBusy), errors.Is(err, chatService.ErrBookingNotOpen):
		return http.StatusConflict
	case errors.Is(err, chatService.ErrSessionNotFound), errors.Is(err, chatService.ErrSessionClosed):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
