package scheduler

// Reserved tag values. A reservation whose tag set intersects the big event
// tags requires the all-rooms-free protocol; the lockout tag marks the
// placeholder rows that protocol inserts into every other room.
const (
	TagBigEvent = "big-event"
	TagAllHands = "all-hands"
	TagTownHall = "town-hall"

	// TagLockout is the system tag carried by Big Event placeholder rows.
	TagLockout = "system-lockout"
)

var bigEventTags = map[string]struct{}{
	TagBigEvent: {},
	TagAllHands: {},
	TagTownHall: {},
}

// EventClass is the reservation category resolved from its tag set.
type EventClass int

const (
	// ClassStandard books a single room with no global effects.
	ClassStandard EventClass = iota
	// ClassBigEvent requires every room to be free and locks out the others.
	ClassBigEvent
)

// Classify resolves the event class from a tag set. Classification happens
// once at the boundary; callers carry the class, not the tag strings.
func Classify(tags []string) EventClass {
	for _, tag := range tags {
		if _, ok := bigEventTags[tag]; ok {
			return ClassBigEvent
		}
	}
	return ClassStandard
}

// IsLockoutPlaceholder reports whether a tag set marks a Big Event
// placeholder row.
func IsLockoutPlaceholder(tags []string) bool {
	for _, tag := range tags {
		if tag == TagLockout {
			return true
		}
	}
	return false
}
