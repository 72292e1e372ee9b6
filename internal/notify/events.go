// Package notify delivers reservation lifecycle events to interested
// systems. Delivery is always best-effort: a failed notification is logged
// and reported to the caller, never escalated into a failure of the booking
// operation that produced it.
package notify

import "time"

// Queue names, one per event kind. Declared durable on first publish.
const (
	QueuePendingApproval = "reservation.pending_approval"
	QueueApproved        = "reservation.approved"
	QueueCancelled       = "reservation.cancelled"
	QueueCatering        = "reservation.catering"
)

// ReservationEvent is the JSON payload published for every lifecycle event.
type ReservationEvent struct {
	Kind          string    `json:"kind"`
	ReservationID string    `json:"reservation_id"`
	RoomID        string    `json:"room_id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Attendees     []string  `json:"attendees,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
