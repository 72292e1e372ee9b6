// Package memory provides map-backed implementations of the persistence
// repositories. They mirror the SQLite semantics closely enough to drive the
// application services in tests and local development without a database file.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

// Store holds all repositories behind one mutex.
type Store struct {
	mu           sync.RWMutex
	reservations map[string]persistence.Reservation
	rooms        map[string]persistence.Room
	users        map[string]persistence.User
	sessions     map[string]persistence.Session
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		reservations: make(map[string]persistence.Reservation),
		rooms:        make(map[string]persistence.Room),
		users:        make(map[string]persistence.User),
		sessions:     make(map[string]persistence.Session),
	}
}

// CreateReservation stores a reservation row.
func (s *Store) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || !reservation.Start.Before(reservation.End) {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[reservation.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// GetReservation returns a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// UpdateReservationStatus sets the status of one reservation.
func (s *Store) UpdateReservationStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.ErrNotFound
	}
	reservation.Status = status
	reservation.UpdatedAt = updatedAt
	s.reservations[id] = reservation
	return nil
}

// ListReservations returns reservations matching the filter, ordered by
// start time then ID.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []persistence.Reservation
	for _, reservation := range s.reservations {
		if matchesFilter(reservation, filter) {
			matched = append(matched, cloneReservation(reservation))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Start.Equal(matched[j].Start) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Start.Before(matched[j].Start)
	})

	return matched, nil
}

func matchesFilter(reservation persistence.Reservation, filter persistence.ReservationFilter) bool {
	if filter.RoomID != nil && reservation.RoomID != *filter.RoomID {
		return false
	}
	if len(filter.Statuses) > 0 && !containsString(filter.Statuses, reservation.Status) {
		return false
	}
	if filter.OverlapStart != nil && filter.OverlapEnd != nil {
		if !(reservation.Start.Before(*filter.OverlapEnd) && reservation.End.After(*filter.OverlapStart)) {
			return false
		}
	}
	if len(filter.AnyTags) > 0 && !intersects(reservation.Tags, filter.AnyTags) {
		return false
	}
	if len(filter.ExcludeTags) > 0 && intersects(reservation.Tags, filter.ExcludeTags) {
		return false
	}
	if filter.IsRecurring != nil && reservation.IsRecurring != *filter.IsRecurring {
		return false
	}
	if filter.ParentID != nil {
		if reservation.ParentID == nil || *reservation.ParentID != *filter.ParentID {
			return false
		}
	}
	if filter.ExactStart != nil && !reservation.Start.Equal(*filter.ExactStart) {
		return false
	}
	if filter.ExactEnd != nil && !reservation.End.Equal(*filter.ExactEnd) {
		return false
	}
	return true
}

// CreateRoom stores a room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.rooms {
		if strings.EqualFold(existing.Name, room.Name) {
			return persistence.ErrDuplicate
		}
	}
	s.rooms[room.ID] = room
	return nil
}

// UpdateRoom rewrites a room row.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.rooms[room.ID] = room
	return nil
}

// GetRoom returns a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// GetRoomByName returns a room by its unique name.
func (s *Store) GetRoomByName(ctx context.Context, name string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if strings.EqualFold(room.Name, name) {
			return room, nil
		}
	}
	return persistence.Room{}, persistence.ErrNotFound
}

// ListRooms returns all rooms ordered by name then ID.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return rooms, nil
}

// CreateUser stores a user.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.Email == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// UpdateUser rewrites a user's profile fields, preserving the password hash.
func (s *Store) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	user.PasswordHash = existing.PasswordHash
	s.users[user.ID] = user
	return nil
}

// UpdatePassword replaces a user's stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return persistence.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = updatedAt
	s.users[id] = user
	return nil
}

// ListUsers returns all users ordered by email then ID.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if strings.EqualFold(users[i].Email, users[j].Email) {
			return users[i].ID < users[j].ID
		}
		return strings.ToLower(users[i].Email) < strings.ToLower(users[j].Email)
	})
	return users, nil
}

// CreateSession stores a session.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.Token == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.sessions {
		if existing.Token == session.Token {
			return persistence.ErrDuplicate
		}
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSession returns a session by its opaque token.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.Token == token {
			return session, nil
		}
	}
	return persistence.Session{}, persistence.ErrNotFound
}

// UpdateSession rewrites a session row, keyed by ID.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

// RevokeSession stamps a session as revoked.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.Token == token && session.RevokedAt == nil {
			session.RevokedAt = &revokedAt
			session.UpdatedAt = revokedAt
			s.sessions[id] = session
			return nil
		}
	}
	return persistence.ErrNotFound
}

// DeleteExpiredSessions removes sessions that expired before the reference time.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.sessions, id)
		}
	}
	return nil
}

func cloneReservation(reservation persistence.Reservation) persistence.Reservation {
	cloned := reservation
	cloned.Tags = append([]string(nil), reservation.Tags...)
	cloned.Attendees = append([]string(nil), reservation.Attendees...)
	return cloned
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
