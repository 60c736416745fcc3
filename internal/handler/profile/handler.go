package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/novatos-ai/assistant/backend/internal/model/profile"
	"github.com/novatos-ai/assistant/backend/pkg/utils"
)

// Handler serves the public assistant profile.
type Handler struct {
	profile profile.Profile
}

// New creates a profile handler.
func New(p profile.Profile) *Handler {
	return &Handler{profile: p}
}

// RegisterRoutes mounts the profile and booking option routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleProfile)
	r.Get("/booking/options", h.handleBookingOptions)
}

func (h *Handler) handleProfile(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profile)
}

type bookingOptions struct {
	Services   []string `json:"services"`
	TimeSlots  []string `json:"timeSlots"`
	BookingURL string   `json:"bookingUrl"`
}

// handleBookingOptions lists what the booking form offers.
func (h *Handler) handleBookingOptions(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, bookingOptions{
		Services:   h.profile.Services,
		TimeSlots:  h.profile.TimeSlots,
		BookingURL: h.profile.BookingURL,
	})
}
