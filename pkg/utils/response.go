package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorBody is the JSON shape of every failed API call. Missing lists booking
// fields that failed validation.
type ErrorBody struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// RespondJSON writes payload with the given status. Encoding failures happen
// after the header is sent, so they are only logged.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}

// RespondError writes an ErrorBody carrying only a message.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}

// RespondMissing reports a booking draft that lacks required fields.
func RespondMissing(w http.ResponseWriter, message string, missing []string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: message, Missing: missing})
}
