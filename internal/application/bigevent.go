package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-reservation/internal/scheduler"
)

// BigEventCoordinator is the single authority for the Big Event lockout
// protocol: it computes the buffered interval, performs the hard blocking
// pre-check, and creates and releases the placeholder rows that hold every
// other room. No other code computes buffered bounds or touches placeholder
// rows.
type BigEventCoordinator struct {
	reservations ReservationRepository
	rooms        RoomCatalog
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewBigEventCoordinator wires dependencies for the lockout protocol.
func NewBigEventCoordinator(reservations ReservationRepository, rooms RoomCatalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BigEventCoordinator {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BigEventCoordinator{
		reservations: reservations,
		rooms:        rooms,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// BufferedInterval widens a Big Event's booked interval by the setup and
// teardown margin used for all lockout decisions.
func (c *BigEventCoordinator) BufferedInterval(start, end time.Time) (time.Time, time.Time) {
	buffered := scheduler.Interval{Start: start, End: end}.Buffered()
	return buffered.Start, buffered.End
}

// FindBlocking returns every active non-placeholder reservation, in any room,
// overlapping the buffered interval. A non-empty result blocks creation
// outright; the caller surfaces the list so an admin can cancel the
// conflicting meetings first.
func (c *BigEventCoordinator) FindBlocking(ctx context.Context, start, end time.Time, excludeID string) ([]ConflictingEvent, error) {
	bufferedStart, bufferedEnd := c.BufferedInterval(start, end)

	candidates, err := c.reservations.ListReservations(ctx, ReservationQuery{
		Statuses:     activeStatuses,
		OverlapStart: &bufferedStart,
		OverlapEnd:   &bufferedEnd,
	})
	if err != nil {
		return nil, err
	}

	roomNames, err := c.roomNames(ctx)
	if err != nil {
		return nil, err
	}

	conflicts := make([]ConflictingEvent, 0)
	for _, candidate := range candidates {
		if candidate.ID == excludeID || scheduler.IsLockoutPlaceholder(candidate.Tags) {
			continue
		}
		conflicts = append(conflicts, ConflictingEvent{
			ID:       candidate.ID,
			Title:    candidate.Title,
			RoomID:   candidate.RoomID,
			RoomName: roomNames[candidate.RoomID],
			OwnerID:  candidate.UserID,
			Start:    candidate.Start,
			End:      candidate.End,
		})
	}
	if len(conflicts) == 0 {
		return nil, nil
	}
	return conflicts, nil
}

// CreateLockouts inserts one placeholder reservation per other active room,
// sharing the primary's buffered bounds and recurrence definition so a
// recurring Big Event locks out future weeks too. The primary row has already
// committed; insertion failures are logged and skipped, never rolled back.
func (c *BigEventCoordinator) CreateLockouts(ctx context.Context, primary Reservation) int {
	logger := serviceLogger(ctx, c.logger, "big_event", "create_lockouts", "reservation_id", primary.ID)

	rooms, err := c.activeRooms(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list rooms for lockout fan-out", "error", err)
		return 0
	}

	bufferedStart, bufferedEnd := c.BufferedInterval(primary.Start, primary.End)
	created := 0
	for _, room := range rooms {
		if room.ID == primary.RoomID {
			continue
		}
		placeholder := Reservation{
			ID:                c.idGenerator(),
			RoomID:            room.ID,
			UserID:            primary.UserID,
			Title:             fmt.Sprintf("Blocked for %s", primary.Title),
			Start:             bufferedStart,
			End:               bufferedEnd,
			Status:            StatusApproved,
			Tags:              []string{scheduler.TagLockout},
			IsRecurring:       primary.IsRecurring,
			RecurrencePattern: primary.RecurrencePattern,
			RecurrenceEndType: primary.RecurrenceEndType,
			RecurrenceCount:   primary.RecurrenceCount,
			RecurrenceEndDate: primary.RecurrenceEndDate,
		}
		if _, err := c.reservations.CreateReservation(ctx, placeholder); err != nil {
			logger.ErrorContext(ctx, "failed to insert lockout placeholder", "room_id", room.ID, "error", err)
			continue
		}
		created++
	}

	logger.InfoContext(ctx, "lockout placeholders created", "count", created)
	return created
}

// ReleaseLockouts cancels the active placeholder rows created for the primary
// reservation, matched by the lockout tag and the exact recomputed buffered
// bounds.
func (c *BigEventCoordinator) ReleaseLockouts(ctx context.Context, primary Reservation) error {
	logger := serviceLogger(ctx, c.logger, "big_event", "release_lockouts", "reservation_id", primary.ID)

	bufferedStart, bufferedEnd := c.BufferedInterval(primary.Start, primary.End)
	placeholders, err := c.reservations.ListReservations(ctx, ReservationQuery{
		Statuses:   activeStatuses,
		AnyTags:    []string{scheduler.TagLockout},
		ExactStart: &bufferedStart,
		ExactEnd:   &bufferedEnd,
	})
	if err != nil {
		return err
	}

	released := 0
	for _, placeholder := range placeholders {
		if _, err := c.reservations.UpdateReservationStatus(ctx, placeholder.ID, StatusCancelled); err != nil {
			logger.ErrorContext(ctx, "failed to cancel lockout placeholder", "placeholder_id", placeholder.ID, "error", err)
			continue
		}
		released++
	}

	logger.InfoContext(ctx, "lockout placeholders released", "count", released)
	return nil
}

func (c *BigEventCoordinator) activeRooms(ctx context.Context) ([]Room, error) {
	rooms, err := c.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Active {
			active = append(active, room)
		}
	}
	return active, nil
}

func (c *BigEventCoordinator) roomNames(ctx context.Context) (map[string]string, error) {
	rooms, err := c.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rooms))
	for _, room := range rooms {
		names[room.ID] = room.Name
	}
	return names, nil
}
