package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-reservation/internal/application"
	"github.com/example/room-reservation/internal/persistence"
)

var (
	userCounter        uint64
	roomCounter        uint64
	reservationCounter uint64
	sessionCounter     uint64
)

var jst = time.FixedZone("JST", 9*60*60)

// Reservations are always interpreted in Japan Standard Time, so the baseline
// is anchored there rather than in UTC.
var referenceTime = time.Date(2025, time.March, 3, 9, 0, 0, 0, jst)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		IsAdmin:      false,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserAdmin marks the fixture as an administrator.
func WithUserAdmin() UserOption {
	return func(f *UserFixture) { f.IsAdmin = true }
}

// WithUserPasswordHash overrides the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// AsPersistence converts the fixture into a persistence user record.
func (f UserFixture) AsPersistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		IsAdmin:      f.IsAdmin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// AsApplication converts the fixture into an application user entity.
func (f UserFixture) AsApplication() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// AsPrincipal converts the fixture into the principal attached to requests.
func (f UserFixture) AsPrincipal() application.Principal {
	return application.Principal{
		UserID:  f.ID,
		Email:   f.Email,
		IsAdmin: f.IsAdmin,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic meeting room record.
type RoomFixture struct {
	ID        string
	Name      string
	Capacity  int
	Features  *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RoomFixture{
		ID:        id,
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  8,
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

// WithRoomCapacity overrides the seat count.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) { f.Capacity = capacity }
}

// WithRoomInactive marks the fixture as retired from the catalog.
func WithRoomInactive() RoomOption {
	return func(f *RoomFixture) { f.Active = false }
}

// AsPersistence converts the fixture into a persistence room record.
func (f RoomFixture) AsPersistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Features:  f.Features,
		Active:    f.Active,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// AsApplication converts the fixture into an application room entity.
func (f RoomFixture) AsApplication() application.Room {
	return application.Room{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Features:  f.Features,
		Active:    f.Active,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic booking record. The default
// fixture is a pending single-shot reservation one week after ReferenceTime.
type ReservationFixture struct {
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

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic reservation fixture with
// optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	id := fmt.Sprintf("reservation-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	start := referenceTime.AddDate(0, 0, 7).Add(time.Duration(idx) * time.Hour)
	fixture := ReservationFixture{
		ID:        id,
		RoomID:    "room-001",
		UserID:    "user-001",
		Title:     fmt.Sprintf("Meeting %03d", idx),
		Start:     start,
		End:       start.Add(time.Hour),
		Status:    application.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) { f.ID = id }
}

// WithReservationRoom points the fixture at the given room.
func WithReservationRoom(roomID string) ReservationOption {
	return func(f *ReservationFixture) { f.RoomID = roomID }
}

// WithReservationUser points the fixture at the given owner.
func WithReservationUser(userID string) ReservationOption {
	return func(f *ReservationFixture) { f.UserID = userID }
}

// WithReservationWindow overrides the booked interval.
func WithReservationWindow(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
		f.End = end
	}
}

// WithReservationStatus overrides the lifecycle status.
func WithReservationStatus(status string) ReservationOption {
	return func(f *ReservationFixture) { f.Status = status }
}

// WithReservationTags overrides the tag set.
func WithReservationTags(tags ...string) ReservationOption {
	return func(f *ReservationFixture) { f.Tags = tags }
}

// WithReservationRecurrence configures the fixture as a recurring series.
func WithReservationRecurrence(pattern, endType string, count int, endDate *time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.IsRecurring = true
		f.RecurrencePattern = pattern
		f.RecurrenceEndType = endType
		f.RecurrenceCount = count
		f.RecurrenceEndDate = endDate
	}
}

// WithReservationParent marks the fixture as a child row of a series.
func WithReservationParent(parentID string) ReservationOption {
	return func(f *ReservationFixture) { f.ParentID = &parentID }
}

// AsPersistence converts the fixture into a persistence reservation record.
func (f ReservationFixture) AsPersistence() persistence.Reservation {
	record := persistence.Reservation{
		ID:                f.ID,
		RoomID:            f.RoomID,
		UserID:            f.UserID,
		Title:             f.Title,
		Start:             f.Start,
		End:               f.End,
		Status:            f.Status,
		Tags:              append([]string(nil), f.Tags...),
		Attendees:         append([]string(nil), f.Attendees...),
		CateringRequested: f.CateringRequested,
		IsRecurring:       f.IsRecurring,
		RecurrenceEndDate: f.RecurrenceEndDate,
		ParentID:          f.ParentID,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
	if f.Description != "" {
		description := f.Description
		record.Description = &description
	}
	if f.IsRecurring {
		pattern := f.RecurrencePattern
		endType := f.RecurrenceEndType
		record.RecurrencePattern = &pattern
		record.RecurrenceEndType = &endType
		if f.RecurrenceCount > 0 {
			count := f.RecurrenceCount
			record.RecurrenceCount = &count
		}
	}
	return record
}

// AsApplication converts the fixture into an application reservation entity.
func (f ReservationFixture) AsApplication() application.Reservation {
	return application.Reservation{
		ID:                f.ID,
		RoomID:            f.RoomID,
		UserID:            f.UserID,
		Title:             f.Title,
		Description:       f.Description,
		Start:             f.Start,
		End:               f.End,
		Status:            f.Status,
		Tags:              append([]string(nil), f.Tags...),
		Attendees:         append([]string(nil), f.Attendees...),
		CateringRequested: f.CateringRequested,
		IsRecurring:       f.IsRecurring,
		RecurrencePattern: f.RecurrencePattern,
		RecurrenceEndType: f.RecurrenceEndType,
		RecurrenceCount:   f.RecurrenceCount,
		RecurrenceEndDate: f.RecurrenceEndDate,
		ParentID:          f.ParentID,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// --------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic authentication session.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional
// overrides. Sessions expire 24 hours after creation by default.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	id := fmt.Sprintf("session-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SessionFixture{
		ID:        id,
		UserID:    "user-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: created.Add(24 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUser points the fixture at the given user.
func WithSessionUser(userID string) SessionOption {
	return func(f *SessionFixture) { f.UserID = userID }
}

// WithSessionToken overrides the opaque session token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) { f.Token = token }
}

// WithSessionExpiry overrides the expiration instant.
func WithSessionExpiry(expiresAt time.Time) SessionOption {
	return func(f *SessionFixture) { f.ExpiresAt = expiresAt }
}

// WithSessionRevoked marks the session as revoked at the given instant.
func WithSessionRevoked(revokedAt time.Time) SessionOption {
	return func(f *SessionFixture) { f.RevokedAt = &revokedAt }
}

// AsPersistence converts the fixture into a persistence session record.
func (f SessionFixture) AsPersistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: f.RevokedAt,
	}
}

// AsApplication converts the fixture into an application session entity.
func (f SessionFixture) AsApplication() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: f.RevokedAt,
	}
}
