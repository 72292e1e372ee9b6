package application

import (
	"time"

	"github.com/example/room-reservation/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// Reservation status values. Rejected and cancelled are terminal for
// end-user actions.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// activeStatuses are the statuses that occupy a room's time ledger.
var activeStatuses = []string{StatusPending, StatusApproved}

// ReservationInput captures caller provided reservation fields.
type ReservationInput struct {
	RoomID            string
	Title             string
	Description       string
	Start             time.Time
	End               time.Time
	Tags              []string
	Attendees         []string
	CateringRequested bool
	IsRecurring       bool
	RecurrencePattern string
	RecurrenceEndType string
	RecurrenceCount   int
	RecurrenceEndDate time.Time
}

// Reservation represents a booking exposed by the application services.
type Reservation struct {
	ID                string
	RoomID            string
	UserID            string
	Title             string
	Description       string
	Start             time.Time
	End               time.Time
	Status            string
	Tags              []string
	Attendees         []string
	CateringRequested bool
	IsRecurring       bool
	RecurrencePattern string
	RecurrenceEndType string
	RecurrenceCount   int
	RecurrenceEndDate *time.Time
	ParentID          *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Room represents a catalog entry for a physical meeting room.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Features  *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name     string
	Capacity int
	Features *string
	Active   bool
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// CreateUserParams wraps the data required to register a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// CombinedRooms maps a parent room name to the child room names whose
// identically timed reservations are cancelled together with the parent's.
type CombinedRooms map[string][]string

// AvailabilityResult reports a conflict decision for a prospective interval.
type AvailabilityResult struct {
	Available                bool
	Reason                   string
	ConflictingRoomID        string
	ConflictingReservationID string
}

// ConflictingEvent describes one reservation blocking a Big Event, with
// enough detail to render remediation UI.
type ConflictingEvent struct {
	ID       string
	Title    string
	RoomID   string
	RoomName string
	OwnerID  string
	Start    time.Time
	End      time.Time
}

// ConflictTypeBlocking tags a creation failure that requires the listed
// conflicting events to be cancelled before retrying.
const ConflictTypeBlocking = "BLOCKING"

// CreateReservationResult is the tagged outcome of a creation attempt.
// Expected failures (availability conflicts, Big Event blocks) are carried
// here as values, never as errors.
type CreateReservationResult struct {
	Success           bool
	Reservation       Reservation
	Reason            string
	ConflictType      string
	ConflictingEvents []ConflictingEvent
}

// CheckAvailabilityParams wraps the data required for an availability probe.
type CheckAvailabilityParams struct {
	RoomID               string
	Start                time.Time
	End                  time.Time
	Tags                 []string
	ExcludeReservationID string
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// ReservationOccurrence is one expanded instance of a recurring reservation
// on the read path.
type ReservationOccurrence struct {
	Ref   recurrence.OccurrenceRef
	Start time.Time
	End   time.Time
}

// ReservationView pairs a reservation with its expanded occurrences for
// calendar rendering.
type ReservationView struct {
	Reservation Reservation
	Occurrences []ReservationOccurrence
}

// ListReservationsParams wraps the data required to list reservations.
type ListReservationsParams struct {
	Principal   Principal
	RoomID      string
	WindowStart time.Time
	WindowEnd   time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// User represents an employee account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
