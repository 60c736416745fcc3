package notify

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
)

// MailConfig holds SMTP delivery settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier emails bookings to the team inbox.
type MailNotifier struct {
	sender mailSender
	from   string
	to     string
}

// NewMailNotifier builds an SMTP notifier.
func NewMailNotifier(cfg MailConfig) (*MailNotifier, error) {
	if cfg.Host == "" || cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("smtp notifier requires host, from and recipient")
	}
	return &MailNotifier{
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

// NotifyBooking sends the booking email. The SMTP exchange itself cannot be
// interrupted, so ctx is only checked before dialing.
func (n *MailNotifier) NotifyBooking(ctx context.Context, draft chatmodel.BookingDraft) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotifierFailed, err)
	}
	if err := n.sender.DialAndSend(n.buildMessage(draft)); err != nil {
		return fmt.Errorf("%w: smtp: %w", ErrNotifierFailed, err)
	}
	return nil
}

func (n *MailNotifier) buildMessage(d chatmodel.BookingDraft) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	if d.Email != "" {
		m.SetHeader("Reply-To", d.Email)
	}
	m.SetHeader("Subject", BookingSubject)
	m.SetBody("text/plain", plainBody(d))
	m.AddAlternative("text/html", htmlBody(d))
	return m
}

func plainBody(d chatmodel.BookingDraft) string {
	return fmt.Sprintf("New demo appointment request\n\nName: %s\nEmail: %s\nPhone: %s\nService: %s\nDate: %s\nTime: %s\n",
		d.Name, d.Email, d.Phone, d.Service, d.Date, d.Time)
}

func htmlBody(d chatmodel.BookingDraft) string {
	e := html.EscapeString
	return fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>New demo appointment request</h2>
			<table>
				<tr><td><b>Name</b></td><td>%s</td></tr>
				<tr><td><b>Email</b></td><td>%s</td></tr>
				<tr><td><b>Phone</b></td><td>%s</td></tr>
				<tr><td><b>Service</b></td><td>%s</td></tr>
				<tr><td><b>Date</b></td><td>%s</td></tr>
				<tr><td><b>Time</b></td><td>%s</td></tr>
			</table>
		</div>
	`, e(d.Name), e(d.Email), e(d.Phone), e(d.Service), e(d.Date), e(d.Time))
}
