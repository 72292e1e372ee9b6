package scheduler

import "time"

// BigEventBuffer is the setup/teardown margin applied on each side of a Big
// Event's booked interval for lockout and conflict purposes.
const BigEventBuffer = 30 * time.Minute

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two intervals share any instant. Touching
// endpoints do not overlap, and an empty interval overlaps nothing.
func (i Interval) Overlaps(other Interval) bool {
	if !i.End.After(i.Start) || !other.End.After(other.Start) {
		return false
	}
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Buffered widens the interval by the Big Event margin on both sides.
func (i Interval) Buffered() Interval {
	return Interval{Start: i.Start.Add(-BigEventBuffer), End: i.End.Add(BigEventBuffer)}
}
