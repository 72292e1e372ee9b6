package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/room-reservation/internal/application"
)

// Publisher implements application.Notifier by publishing JSON events to
// durable AMQP queues. A connection is dialed per publish so a broker
// restart never wedges the process; the booking path tolerates the extra
// latency because every send is already fire-and-forget.
type Publisher struct {
	url    string
	now    func() time.Time
	logger *slog.Logger
}

// NewPublisher creates an AMQP publisher for the given broker URL.
func NewPublisher(url string, now func() time.Time, logger *slog.Logger) *Publisher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{url: url, now: now, logger: logger}
}

// ReservationPendingApproval notifies administrators that a reservation awaits review.
func (p *Publisher) ReservationPendingApproval(ctx context.Context, reservation application.Reservation) error {
	return p.publish(ctx, QueuePendingApproval, p.event("pending_approval", reservation))
}

// ReservationApproved sends invitations for an approved reservation.
func (p *Publisher) ReservationApproved(ctx context.Context, reservation application.Reservation) error {
	return p.publish(ctx, QueueApproved, p.event("approved", reservation))
}

// ReservationCancelled notifies attendees of a cancellation.
func (p *Publisher) ReservationCancelled(ctx context.Context, reservation application.Reservation) error {
	return p.publish(ctx, QueueCancelled, p.event("cancelled", reservation))
}

// CateringRequested alerts the catering team.
func (p *Publisher) CateringRequested(ctx context.Context, reservation application.Reservation) error {
	return p.publish(ctx, QueueCatering, p.event("catering_requested", reservation))
}

func (p *Publisher) event(kind string, reservation application.Reservation) ReservationEvent {
	return ReservationEvent{
		Kind:          kind,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
		UserID:        reservation.UserID,
		Title:         reservation.Title,
		Start:         reservation.Start,
		End:           reservation.End,
		Attendees:     reservation.Attendees,
		OccurredAt:    p.now().UTC(),
	}
}

func (p *Publisher) publish(ctx context.Context, queue string, event ReservationEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.WarnContext(ctx, "amqp dial failed", "queue", queue, "error", err)
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.WarnContext(ctx, "amqp channel open failed", "queue", queue, "error", err)
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.logger.WarnContext(ctx, "amqp queue declare failed", "queue", queue, "error", err)
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		p.logger.WarnContext(ctx, "amqp publish failed", "queue", queue, "error", err)
		return fmt.Errorf("amqp publish: %w", err)
	}

	return nil
}
