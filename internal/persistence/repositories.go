package persistence

import (
	"context"
	"time"
)

// ReservationFilter narrows reservation queries. All predicates are ANDed;
// nil or empty fields are ignored.
type ReservationFilter struct {
	RoomID *string
	// Statuses restricts results to the listed status values.
	Statuses []string
	// OverlapStart/OverlapEnd select rows whose [start, end) interval
	// overlaps the half-open query window.
	OverlapStart *time.Time
	OverlapEnd   *time.Time
	// AnyTags selects rows carrying at least one of the listed tags.
	AnyTags []string
	// ExcludeTags drops rows carrying any of the listed tags.
	ExcludeTags []string
	IsRecurring *bool
	ParentID    *string
	// ExactStart/ExactEnd match rows on exact timestamps. Used for
	// placeholder release and combined-room cascade lookups.
	ExactStart *time.Time
	ExactEnd   *time.Time
}

// ReservationRepository stores reservation rows and their tag/attendee sets.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// RoomRepository exposes CRUD operations for the room catalog.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomByName(ctx context.Context, name string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	ListUsers(ctx context.Context) ([]User, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) error
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
