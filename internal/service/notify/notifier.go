package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
)

// ErrNotifierFailed wraps every delivery failure of a booking notification.
var ErrNotifierFailed = errors.New("booking notification failed")

// BookingSubject is the subject line used for booking notifications.
const BookingSubject = "New Appointment Booking via AI Chatbot"

// Notifier forwards a submitted booking to the team.
type Notifier interface {
	NotifyBooking(ctx context.Context, draft chatmodel.BookingDraft) error
}

// BookingRequest is the wire form of a booking notification.
type BookingRequest struct {
	ClientName      string    `json:"client_name"`
	ClientEmail     string    `json:"client_email"`
	ClientPhone     string    `json:"client_phone"`
	ServiceType     string    `json:"service_type"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	Subject         string    `json:"subject"`
	RequestedAt     time.Time `json:"requested_at"`
}

// NewBookingRequest converts a draft into its notification payload.
func NewBookingRequest(d chatmodel.BookingDraft, now time.Time) BookingRequest {
	return BookingRequest{
		ClientName:      d.Name,
		ClientEmail:     d.Email,
		ClientPhone:     d.Phone,
		ServiceType:     d.Service,
		AppointmentDate: d.Date,
		AppointmentTime: d.Time,
		Subject:         BookingSubject,
		RequestedAt:     now.UTC(),
	}
}

// LogNotifier records bookings in the service log only. It is the default
// when no delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier that logs through logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// NotifyBooking logs the booking.
func (n *LogNotifier) NotifyBooking(ctx context.Context, draft chatmodel.BookingDraft) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrNotifierFailed, err)
	}
	n.logger.Info("booking request received",
		zap.String("client_name", draft.Name),
		zap.String("client_email", draft.Email),
		zap.String("service_type", draft.Service),
		zap.String("appointment_date", draft.Date),
		zap.String("appointment_time", draft.Time),
	)
	return nil
}
