package application

import "context"

// Notifier delivers side-effect notifications for reservation lifecycle
// events. Every call is best-effort: the lifecycle manager logs failures and
// never lets them affect the primary action's result.
type Notifier interface {
	// ReservationPendingApproval alerts admins that a reservation awaits review.
	ReservationPendingApproval(ctx context.Context, reservation Reservation) error
	// ReservationApproved sends invitations to the attendee list.
	ReservationApproved(ctx context.Context, reservation Reservation) error
	// ReservationCancelled sends cancellation notices to the attendee list.
	ReservationCancelled(ctx context.Context, reservation Reservation) error
	// CateringRequested alerts the catering desk.
	CateringRequested(ctx context.Context, reservation Reservation) error
}
