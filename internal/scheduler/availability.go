package scheduler

import (
	"fmt"
	"time"

	"github.com/example/room-reservation/internal/recurrence"
)

// Reservation is the slice of booking state the detector needs. Callers
// supply only active (pending or approved) rows.
type Reservation struct {
	ID          string
	RoomID      string
	Title       string
	Start       time.Time
	End         time.Time
	Tags        []string
	IsRecurring bool
	Pattern     recurrence.Pattern
	EndRule     recurrence.EndCondition
	// ExceptionStarts lists occurrence start instants overridden by
	// cancellation-exception rows of this series.
	ExceptionStarts []time.Time
}

// Room identifies an active room in the catalog.
type Room struct {
	ID   string
	Name string
}

// Snapshot is the persisted state a single availability decision reads. It is
// assembled immediately before the check; the detector itself never touches
// storage.
type Snapshot struct {
	Rooms        []Room
	Reservations []Reservation
}

// Request is a prospective booking to test against a snapshot.
type Request struct {
	RoomID string
	Start  time.Time
	End    time.Time
	Tags   []string
	// ExcludeReservationID removes the reservation being edited from every
	// check.
	ExcludeReservationID string
}

// Result reports an availability decision. Reason and the conflicting ids are
// populated only when Available is false.
type Result struct {
	Available                bool
	Reason                   string
	ConflictingRoomID        string
	ConflictingReservationID string
}

// expansionLookahead bounds the recurring-series check window past the
// candidate interval.
const expansionLookahead = 24 * time.Hour

// Detector decides whether a prospective interval can be booked. It is a
// read-only decision function: races between concurrent writers are resolved
// by the storage layer, not here.
type Detector struct {
	engine *recurrence.Engine
}

// NewDetector wires a detector around a recurrence engine. A nil engine is
// replaced with the default (JST) engine.
func NewDetector(engine *recurrence.Engine) *Detector {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	return &Detector{engine: engine}
}

// CheckAvailability evaluates the ordered conflict checks. The first failing
// check wins; the ordering is part of the contract because it determines the
// user-facing message.
func (d *Detector) CheckAvailability(snap Snapshot, req Request) Result {
	requested := Interval{Start: req.Start, End: req.End}

	// 1. Big Event kill switch: every active room must be free.
	if Classify(req.Tags) == ClassBigEvent {
		for _, existing := range snap.Reservations {
			if existing.ID == req.ExcludeReservationID {
				continue
			}
			if requested.Overlaps(Interval{Start: existing.Start, End: existing.End}) {
				return Result{
					Reason:                   fmt.Sprintf("a Big Event needs every room free, but %q occupies room %s during this time", existing.Title, roomName(snap, existing.RoomID)),
					ConflictingRoomID:        existing.RoomID,
					ConflictingReservationID: existing.ID,
				}
			}
		}
	}

	// 2. Interval already locked out by another Big Event in any room.
	for _, existing := range snap.Reservations {
		if existing.ID == req.ExcludeReservationID || Classify(existing.Tags) != ClassBigEvent {
			continue
		}
		if requested.Overlaps(Interval{Start: existing.Start, End: existing.End}) {
			return Result{
				Reason:                   fmt.Sprintf("all rooms are blocked for the Big Event %q", existing.Title),
				ConflictingRoomID:        existing.RoomID,
				ConflictingReservationID: existing.ID,
			}
		}
	}

	// 3. Placeholder lockout row in the requested room. Recurring
	// placeholders are expanded here so later occurrences report the same
	// lockout message as the first week.
	for _, existing := range snap.Reservations {
		if existing.ID == req.ExcludeReservationID || existing.RoomID != req.RoomID || !IsLockoutPlaceholder(existing.Tags) {
			continue
		}
		blocked := requested.Overlaps(Interval{Start: existing.Start, End: existing.End})
		if !blocked && existing.IsRecurring {
			_, blocked = d.seriesConflict(existing, requested)
		}
		if blocked {
			return Result{
				Reason:                   fmt.Sprintf("this room is reserved for %q", existing.Title),
				ConflictingRoomID:        existing.RoomID,
				ConflictingReservationID: existing.ID,
			}
		}
	}

	// 4. Direct conflict with a non-recurring reservation in the same room.
	for _, existing := range snap.Reservations {
		if existing.ID == req.ExcludeReservationID || existing.RoomID != req.RoomID || existing.IsRecurring {
			continue
		}
		if requested.Overlaps(Interval{Start: existing.Start, End: existing.End}) {
			return Result{
				Reason:                   fmt.Sprintf("the room is already booked for %q during this time", existing.Title),
				ConflictingRoomID:        existing.RoomID,
				ConflictingReservationID: existing.ID,
			}
		}
	}

	// 5. Conflict with an occurrence of a recurring series in the same room.
	for _, existing := range snap.Reservations {
		if existing.ID == req.ExcludeReservationID || existing.RoomID != req.RoomID || !existing.IsRecurring {
			continue
		}
		if _, ok := d.seriesConflict(existing, requested); ok {
			return Result{
				Reason:                   fmt.Sprintf("the room is taken by the recurring reservation %q during this time", existing.Title),
				ConflictingRoomID:        existing.RoomID,
				ConflictingReservationID: existing.ID,
			}
		}
	}

	return Result{Available: true}
}

func (d *Detector) seriesConflict(series Reservation, requested Interval) (recurrence.Occurrence, bool) {
	seed := recurrence.Seed{
		ReservationID: series.ID,
		Start:         series.Start,
		End:           series.End,
		Pattern:       series.Pattern,
		EndCondition:  series.EndRule,
	}
	occurrences, err := d.engine.Expand(seed, requested.Start, requested.End.Add(expansionLookahead))
	if err != nil {
		return recurrence.Occurrence{}, false
	}
	for _, occurrence := range occurrences {
		if isException(series.ExceptionStarts, occurrence.Start) {
			continue
		}
		if requested.Overlaps(Interval{Start: occurrence.Start, End: occurrence.End}) {
			return occurrence, true
		}
	}
	return recurrence.Occurrence{}, false
}

func isException(exceptions []time.Time, start time.Time) bool {
	for _, exception := range exceptions {
		if exception.Equal(start) {
			return true
		}
	}
	return false
}

func roomName(snap Snapshot, roomID string) string {
	for _, room := range snap.Rooms {
		if room.ID == roomID {
			return room.Name
		}
	}
	return roomID
}
