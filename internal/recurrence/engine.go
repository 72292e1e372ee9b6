package recurrence

import (
	"errors"
	"time"
)

// jst is the organization timezone. Calendar-day boundaries (recurrence end
// dates) are evaluated in this zone.
var jst = time.FixedZone("JST", 9*60*60)

// Pattern represents supported recurrence step intervals.
type Pattern string

const (
	// PatternNone indicates the reservation does not recur.
	PatternNone Pattern = ""
	// PatternDaily advances one day per occurrence.
	PatternDaily Pattern = "daily"
	// PatternWeekly advances seven days per occurrence.
	PatternWeekly Pattern = "weekly"
	// PatternBiweekly advances fourteen days per occurrence.
	PatternBiweekly Pattern = "biweekly"
	// PatternMonthly advances one calendar month per occurrence, preserving
	// the day of month. Drift at month end is accepted, not corrected.
	PatternMonthly Pattern = "monthly"
)

// ParsePattern maps a stored pattern value onto a Pattern.
func ParsePattern(value string) (Pattern, error) {
	switch Pattern(value) {
	case PatternDaily, PatternWeekly, PatternBiweekly, PatternMonthly:
		return Pattern(value), nil
	case PatternNone:
		return PatternNone, nil
	}
	return PatternNone, ErrInvalidPattern
}

// EndType identifies how an open-ended series terminates.
type EndType string

const (
	// EndNever leaves the series open; expansion is bounded by the
	// per-pattern iteration cap.
	EndNever EndType = "never"
	// EndCount terminates the series after a fixed number of occurrences.
	EndCount EndType = "count"
	// EndDate terminates the series after a calendar day.
	EndDate EndType = "end_date"
)

// EndCondition describes a series termination rule.
type EndCondition struct {
	Type  EndType
	Count int
	// Until is interpreted as a calendar day; occurrences starting after
	// 23:59:59.999 of that day in the organization timezone are excluded.
	Until time.Time
}

// Seed is the first occurrence of a recurring reservation together with its
// recurrence definition.
type Seed struct {
	ReservationID string
	Start         time.Time
	End           time.Time
	Pattern       Pattern
	EndCondition  EndCondition
}

// OccurrenceRef identifies one occurrence of a recurring reservation by its
// parent id and iteration index. It is carried as a value through the read
// path instead of being encoded into display strings.
type OccurrenceRef struct {
	ReservationID string
	Index         int
}

// Occurrence is one concrete interval produced by expanding a series.
type Occurrence struct {
	Ref   OccurrenceRef
	Start time.Time
	End   time.Time
}

var (
	// ErrInvalidPattern indicates the recurrence pattern is not supported.
	ErrInvalidPattern = errors.New("recurrence: invalid pattern")
	// ErrInvalidDuration indicates the seed duration is not positive.
	ErrInvalidDuration = errors.New("recurrence: seed duration must be positive")
	// ErrInvalidWindow indicates the query window is empty or reversed.
	ErrInvalidWindow = errors.New("recurrence: window end must be after window start")
)

// Iteration caps for open-ended (EndNever) series. These bound runaway
// expansion regardless of the query window.
const (
	maxDailyOccurrences   = 365
	maxWeeklyOccurrences  = 52
	maxMonthlyOccurrences = 24
)

// windowSlack admits occurrences that start shortly after the window end but
// may still end inside it (e.g. a series whose instance straddles midnight).
const windowSlack = 24 * time.Hour

// Engine expands recurrence seeds into concrete occurrences. The engine keeps
// no state between calls; identical inputs always yield identical output.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates calendar-day boundaries in
// the provided location. If loc is nil, the organization timezone (JST) is
// used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = jst
	}
	return &Engine{location: loc}
}

// Expand produces the finite occurrence list for seed intersecting the
// half-open window [windowStart, windowEnd). Occurrence 0 is the seed itself.
// Iteration stops at the first of: the count condition, the end-date
// condition, the window guard (start beyond windowEnd plus one day of slack),
// or the per-pattern cap for never-ending series.
func (e *Engine) Expand(seed Seed, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	if !seed.End.After(seed.Start) {
		return nil, ErrInvalidDuration
	}
	if !windowEnd.After(windowStart) {
		return nil, ErrInvalidWindow
	}

	step, limit, err := stepFor(seed.Pattern)
	if err != nil {
		return nil, err
	}

	duration := seed.End.Sub(seed.Start)
	guard := windowEnd.Add(windowSlack)
	capped := seed.EndCondition.Type != EndCount && seed.EndCondition.Type != EndDate

	var until time.Time
	switch seed.EndCondition.Type {
	case EndCount:
		if seed.EndCondition.Count <= 0 {
			return nil, nil
		}
	case EndDate:
		until = e.endOfDay(seed.EndCondition.Until)
	}

	occurrences := make([]Occurrence, 0)
	current := seed.Start
	for index := 0; ; index++ {
		if seed.EndCondition.Type == EndCount && index >= seed.EndCondition.Count {
			break
		}
		if seed.EndCondition.Type == EndDate && current.After(until) {
			break
		}
		if capped && index >= limit {
			break
		}
		if current.After(guard) {
			break
		}

		end := current.Add(duration)
		if current.Before(windowEnd) && end.After(windowStart) {
			occurrences = append(occurrences, Occurrence{
				Ref:   OccurrenceRef{ReservationID: seed.ReservationID, Index: index},
				Start: current,
				End:   end,
			})
		}

		current = step(current)
	}

	return occurrences, nil
}

// OccurrenceAt returns the interval a seed would occupy on the iteration with
// the given index. It applies the same step function as Expand without any
// window clipping.
func (e *Engine) OccurrenceAt(seed Seed, index int) (Occurrence, error) {
	if !seed.End.After(seed.Start) {
		return Occurrence{}, ErrInvalidDuration
	}
	step, _, err := stepFor(seed.Pattern)
	if err != nil {
		return Occurrence{}, err
	}

	current := seed.Start
	for i := 0; i < index; i++ {
		current = step(current)
	}
	return Occurrence{
		Ref:   OccurrenceRef{ReservationID: seed.ReservationID, Index: index},
		Start: current,
		End:   current.Add(seed.End.Sub(seed.Start)),
	}, nil
}

func stepFor(pattern Pattern) (func(time.Time) time.Time, int, error) {
	switch pattern {
	case PatternDaily:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }, maxDailyOccurrences, nil
	case PatternWeekly:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }, maxWeeklyOccurrences, nil
	case PatternBiweekly:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 14) }, maxWeeklyOccurrences, nil
	case PatternMonthly:
		return func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }, maxMonthlyOccurrences, nil
	}
	return nil, 0, ErrInvalidPattern
}

func (e *Engine) endOfDay(day time.Time) time.Time {
	loc := e.location
	if loc == nil {
		loc = jst
	}
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999*int(time.Millisecond), loc)
}
