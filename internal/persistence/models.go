package persistence

import "time"

// User represents an employee account in the reservation domain.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room represents a bookable meeting room catalog entry.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Features  *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reservation represents a booking row. The same table also stores the
// synthetic placeholder rows inserted for Big Event lockouts and the
// cancellation-exception rows that override single occurrences of a
// recurring series (both carry a non-nil ParentID or a reserved tag).
type Reservation struct {
	ID                string
	RoomID            string
	UserID            string
	Title             string
	Description       *string
	Start             time.Time
	End               time.Time
	Status            string
	Tags              []string
	Attendees         []string
	CateringRequested bool
	IsRecurring       bool
	RecurrencePattern *string
	RecurrenceEndType *string
	RecurrenceCount   *int
	RecurrenceEndDate *time.Time
	ParentID          *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
