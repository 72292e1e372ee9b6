package notify

import (
	"context"
	"log/slog"

	"github.com/example/room-reservation/internal/application"
)

// LogNotifier implements application.Notifier by writing structured log
// records. It is the fallback when no broker URL is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// ReservationPendingApproval logs a pending-approval event.
func (n *LogNotifier) ReservationPendingApproval(ctx context.Context, reservation application.Reservation) error {
	n.log(ctx, "reservation pending approval", reservation)
	return nil
}

// ReservationApproved logs an approval event.
func (n *LogNotifier) ReservationApproved(ctx context.Context, reservation application.Reservation) error {
	n.log(ctx, "reservation approved", reservation)
	return nil
}

// ReservationCancelled logs a cancellation event.
func (n *LogNotifier) ReservationCancelled(ctx context.Context, reservation application.Reservation) error {
	n.log(ctx, "reservation cancelled", reservation)
	return nil
}

// CateringRequested logs a catering request event.
func (n *LogNotifier) CateringRequested(ctx context.Context, reservation application.Reservation) error {
	n.log(ctx, "catering requested", reservation)
	return nil
}

func (n *LogNotifier) log(ctx context.Context, message string, reservation application.Reservation) {
	n.logger.InfoContext(ctx, message,
		"reservation_id", reservation.ID,
		"room_id", reservation.RoomID,
		"user_id", reservation.UserID,
		"start", reservation.Start,
		"end", reservation.End,
		"attendee_count", len(reservation.Attendees),
	)
}
