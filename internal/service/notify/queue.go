package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"

	chatmodel "github.com/novatos-ai/assistant/backend/internal/model/chat"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueNotifier publishes bookings as JSON onto a durable AMQP queue for a
// downstream worker to deliver.
type QueueNotifier struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    publisher
	queue string
	now   func() time.Time
}

// NewQueueNotifier connects to the broker at url and declares queue.
func NewQueueNotifier(url, queue string) (*QueueNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &QueueNotifier{conn: conn, ch: ch, queue: queue, now: time.Now}, nil
}

// NotifyBooking publishes one persistent message per booking.
func (n *QueueNotifier) NotifyBooking(ctx context.Context, draft chatmodel.BookingDraft) error {
	now := n.now()
	body, err := json.Marshal(NewBookingRequest(draft, now))
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrNotifierFailed, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ulid.Make().String(),
		Timestamp:    now,
		Type:         "booking.requested",
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.PublishWithContext(ctx, "", n.queue, false, false, msg); err != nil {
		return fmt.Errorf("%w: publish: %w", ErrNotifierFailed, err)
	}
	return nil
}

// Close releases the broker connection.
func (n *QueueNotifier) Close() error {
	if c, ok := n.ch.(*amqp.Channel); ok {
		_ = c.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
