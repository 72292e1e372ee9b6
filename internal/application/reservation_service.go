package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-reservation/internal/recurrence"
	"github.com/example/room-reservation/internal/scheduler"
)

// jst is the organization timezone used for calendar-day comparisons (the
// lead-time guard and recurrence end dates).
var jst = time.FixedZone("JST", 9*60*60)

// ReservationQuery narrows queries issued to the reservation repository. All
// predicates are ANDed; zero fields are ignored.
type ReservationQuery struct {
	RoomID       *string
	Statuses     []string
	OverlapStart *time.Time
	OverlapEnd   *time.Time
	AnyTags      []string
	ExcludeTags  []string
	IsRecurring  *bool
	ParentID     *string
	ExactStart   *time.Time
	ExactEnd     *time.Time
}

// ReservationRepository captures the persistence interactions needed by the
// lifecycle manager and the Big Event coordinator.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, id, status string) (Reservation, error)
	ListReservations(ctx context.Context, query ReservationQuery) ([]Reservation, error)
}

// RoomCatalog exposes room lookup operations.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomByName(ctx context.Context, name string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// ReservationService orchestrates the full reservation mutation surface:
// creation, approval and rejection, cancellation of a whole series or a
// single occurrence, and the cascades those trigger. It is the only layer
// that decides overall success or failure; the detector and the coordinator
// hand it structured results.
type ReservationService struct {
	reservations ReservationRepository
	rooms        RoomCatalog
	coordinator  *BigEventCoordinator
	detector     *scheduler.Detector
	engine       *recurrence.Engine
	notifier     Notifier
	combined     CombinedRooms
	expansions   *expansionCache
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(reservations ReservationRepository, rooms RoomCatalog, notifier Notifier, combined CombinedRooms, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, rooms, notifier, combined, idGenerator, now, nil)
}

// NewReservationServiceWithLogger wires dependencies together with a base logger.
func NewReservationServiceWithLogger(reservations ReservationRepository, rooms RoomCatalog, notifier Notifier, combined CombinedRooms, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	engine := recurrence.NewEngine(jst)
	return &ReservationService{
		reservations: reservations,
		rooms:        rooms,
		coordinator:  NewBigEventCoordinator(reservations, rooms, idGenerator, now, logger),
		detector:     scheduler.NewDetector(engine),
		engine:       engine,
		notifier:     notifier,
		combined:     combined,
		expansions:   newExpansionCache(0, 0, now),
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// CreateReservation validates, checks availability, persists the reservation
// and drives the Big Event fan-out. Expected conflicts come back inside the
// result; the error return is reserved for validation, authorization and
// storage failures.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (CreateReservationResult, error) {
	if s == nil || s.reservations == nil {
		return CreateReservationResult{}, fmt.Errorf("reservation repository not configured")
	}
	input := params.Input
	principal := params.Principal
	logger := serviceLogger(ctx, s.logger, "reservation", "create", "user_id", principal.UserID)

	vErr := &ValidationError{}
	validateReservationCore(input, vErr)
	if vErr.HasErrors() {
		return CreateReservationResult{}, vErr
	}

	if !s.isAfterToday(input.Start) {
		vErr.add("start", "bookings must be made at least one day in advance")
		return CreateReservationResult{}, vErr
	}

	room, err := s.rooms.GetRoom(ctx, input.RoomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			vErr.add("room_id", "room does not exist")
			return CreateReservationResult{}, vErr
		}
		return CreateReservationResult{}, err
	}
	if !room.Active {
		vErr.add("room_id", "room is not active")
		return CreateReservationResult{}, vErr
	}

	tags := uniqueStrings(input.Tags)

	// The buffered interval is a superset of the requested one, so for a Big
	// Event every kill-switch conflict surfaces here with the remediation
	// list, before the detector can reduce it to a bare reason.
	isBigEvent := scheduler.Classify(tags) == scheduler.ClassBigEvent
	if isBigEvent {
		conflicts, err := s.coordinator.FindBlocking(ctx, input.Start, input.End, "")
		if err != nil {
			return CreateReservationResult{}, err
		}
		if len(conflicts) > 0 {
			return CreateReservationResult{
				Reason:            "a Big Event requires every room to be free; cancel the conflicting meetings first",
				ConflictType:      ConflictTypeBlocking,
				ConflictingEvents: conflicts,
			}, nil
		}
	}

	availability, err := s.checkAvailability(ctx, CheckAvailabilityParams{
		RoomID: input.RoomID,
		Start:  input.Start,
		End:    input.End,
		Tags:   tags,
	})
	if err != nil {
		return CreateReservationResult{}, err
	}
	if !availability.Available {
		return CreateReservationResult{Reason: availability.Reason}, nil
	}

	status := StatusPending
	if principal.IsAdmin {
		status = StatusApproved
	}

	createdAt := s.now()
	reservation := Reservation{
		ID:                s.idGenerator(),
		RoomID:            room.ID,
		UserID:            principal.UserID,
		Title:             strings.TrimSpace(input.Title),
		Description:       input.Description,
		Start:             input.Start,
		End:               input.End,
		Status:            status,
		Tags:              tags,
		Attendees:         uniqueStrings(input.Attendees),
		CateringRequested: input.CateringRequested,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	applyRecurrence(&reservation, input)

	persisted, err := s.reservations.CreateReservation(ctx, reservation)
	if err != nil {
		logger.ErrorContext(ctx, "failed to persist reservation", "error", err)
		return CreateReservationResult{}, err
	}

	if isBigEvent {
		s.coordinator.CreateLockouts(ctx, persisted)
	}
	s.expansions.Invalidate()

	if persisted.Status == StatusPending {
		s.notifyBestEffort(ctx, logger, "pending_approval", func() error {
			return s.notifier.ReservationPendingApproval(ctx, persisted)
		})
	} else {
		s.notifyBestEffort(ctx, logger, "invitations", func() error {
			return s.notifier.ReservationApproved(ctx, persisted)
		})
	}
	if persisted.CateringRequested {
		s.notifyBestEffort(ctx, logger, "catering", func() error {
			return s.notifier.CateringRequested(ctx, persisted)
		})
	}

	return CreateReservationResult{Success: true, Reservation: persisted}, nil
}

// CheckAvailability reports whether the prospective interval can be booked.
// It assembles a fresh snapshot of the persisted state at decision time and
// delegates to the conflict detector; no locks are taken.
func (s *ReservationService) CheckAvailability(ctx context.Context, params CheckAvailabilityParams) (AvailabilityResult, error) {
	if s == nil || s.reservations == nil {
		return AvailabilityResult{}, fmt.Errorf("reservation repository not configured")
	}
	return s.checkAvailability(ctx, params)
}

func (s *ReservationService) checkAvailability(ctx context.Context, params CheckAvailabilityParams) (AvailabilityResult, error) {
	snapshot, err := s.buildSnapshot(ctx, params.Start, params.End)
	if err != nil {
		return AvailabilityResult{}, err
	}

	result := s.detector.CheckAvailability(snapshot, scheduler.Request{
		RoomID:               params.RoomID,
		Start:                params.Start,
		End:                  params.End,
		Tags:                 params.Tags,
		ExcludeReservationID: params.ExcludeReservationID,
	})
	return AvailabilityResult{
		Available:                result.Available,
		Reason:                   result.Reason,
		ConflictingRoomID:        result.ConflictingRoomID,
		ConflictingReservationID: result.ConflictingReservationID,
	}, nil
}

// UpdateStatus applies an admin approval or rejection. Approval cascades the
// status onto legacy child rows and fires invitation notifications.
func (s *ReservationService) UpdateStatus(ctx context.Context, principal Principal, reservationID, status string) error {
	if s == nil || s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}
	if status != StatusApproved && status != StatusRejected {
		vErr := &ValidationError{}
		vErr.add("status", "status must be approved or rejected")
		return vErr
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "reservation", "update_status", "reservation_id", reservationID, "status", status)

	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if existing.End.Before(s.now()) {
		return ErrPastEvent
	}
	if existing.Status == status {
		return nil
	}
	if existing.Status != StatusPending {
		vErr := &ValidationError{}
		vErr.add("status", "only pending reservations can be approved or rejected")
		return vErr
	}

	updated, err := s.reservations.UpdateReservationStatus(ctx, reservationID, status)
	if err != nil {
		return err
	}

	if status == StatusApproved {
		s.cascadeStatusToChildren(ctx, logger, reservationID, status)
		s.notifyBestEffort(ctx, logger, "invitations", func() error {
			return s.notifier.ReservationApproved(ctx, updated)
		})
	}

	return nil
}

// Cancel marks a reservation cancelled and drives the cascades: Big Event
// lockout release and combined-room child cancellation.
func (s *ReservationService) Cancel(ctx context.Context, principal Principal, reservationID string) error {
	if s == nil || s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	logger := serviceLogger(ctx, s.logger, "reservation", "cancel", "reservation_id", reservationID)

	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if existing.UserID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}
	if existing.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if existing.End.Before(s.now()) {
		return ErrPastEvent
	}

	cancelled, err := s.reservations.UpdateReservationStatus(ctx, reservationID, StatusCancelled)
	if err != nil {
		return err
	}

	s.notifyBestEffort(ctx, logger, "cancellation", func() error {
		return s.notifier.ReservationCancelled(ctx, cancelled)
	})

	if scheduler.Classify(cancelled.Tags) == scheduler.ClassBigEvent {
		if err := s.coordinator.ReleaseLockouts(ctx, cancelled); err != nil {
			logger.ErrorContext(ctx, "failed to release lockout placeholders", "error", err)
		}
	}

	s.cascadeCombinedRooms(ctx, logger, cancelled)
	s.expansions.Invalidate()

	return nil
}

// CancelRecurringInstance cancels one occurrence of a weekly series by
// inserting (or flipping) a cancellation-exception row keyed on the
// occurrence's exact start instant.
func (s *ReservationService) CancelRecurringInstance(ctx context.Context, principal Principal, parentID, instanceDate string) error {
	if s == nil || s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	parent, err := s.reservations.GetReservation(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.UserID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}

	vErr := &ValidationError{}
	if !parent.IsRecurring || parent.RecurrencePattern != string(recurrence.PatternWeekly) {
		vErr.add("reservation", "only weekly recurring reservations support single-instance cancellation")
		return vErr
	}

	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(instanceDate), jst)
	if err != nil {
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
		return vErr
	}

	// Apply the parent's time of day to the requested date.
	parentStart := parent.Start.In(jst)
	occurrenceStart := time.Date(day.Year(), day.Month(), day.Day(),
		parentStart.Hour(), parentStart.Minute(), parentStart.Second(), parentStart.Nanosecond(), jst)
	occurrenceEnd := occurrenceStart.Add(parent.End.Sub(parent.Start))

	if occurrenceEnd.Before(s.now()) {
		return ErrPastEvent
	}

	existing, err := s.reservations.ListReservations(ctx, ReservationQuery{
		ParentID:   &parentID,
		ExactStart: &occurrenceStart,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if _, err := s.reservations.UpdateReservationStatus(ctx, existing[0].ID, StatusCancelled); err != nil {
			return err
		}
		s.expansions.Invalidate()
		return nil
	}

	createdAt := s.now()
	exception := Reservation{
		ID:          s.idGenerator(),
		RoomID:      parent.RoomID,
		UserID:      parent.UserID,
		Title:       parent.Title,
		Description: parent.Description,
		Start:       occurrenceStart,
		End:         occurrenceEnd,
		Status:      StatusCancelled,
		Tags:        append([]string(nil), parent.Tags...),
		ParentID:    &parentID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if _, err = s.reservations.CreateReservation(ctx, exception); err != nil {
		return err
	}
	s.expansions.Invalidate()
	return nil
}

// ListReservations returns the reservations intersecting a window, with
// recurring parents expanded into their concrete occurrences (cancellation
// exceptions removed). Ordering is stable: start ascending, then id.
func (s *ReservationService) ListReservations(ctx context.Context, params ListReservationsParams) ([]ReservationView, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}

	windowStart, windowEnd := params.WindowStart, params.WindowEnd
	if windowEnd.IsZero() {
		windowEnd = s.now().AddDate(0, 1, 0)
	}
	if windowStart.IsZero() {
		windowStart = s.now().AddDate(0, -1, 0)
	}

	var roomID *string
	if params.RoomID != "" {
		roomID = &params.RoomID
	}

	direct, err := s.reservations.ListReservations(ctx, ReservationQuery{
		RoomID:       roomID,
		Statuses:     activeStatuses,
		OverlapStart: &windowStart,
		OverlapEnd:   &windowEnd,
	})
	if err != nil {
		return nil, err
	}
	recurring := true
	parents, err := s.reservations.ListReservations(ctx, ReservationQuery{
		RoomID:      roomID,
		Statuses:    activeStatuses,
		IsRecurring: &recurring,
	})
	if err != nil {
		return nil, err
	}

	views := make([]ReservationView, 0, len(direct)+len(parents))
	seen := make(map[string]struct{}, len(direct)+len(parents))

	for _, reservation := range direct {
		if reservation.IsRecurring {
			continue // handled through expansion below
		}
		seen[reservation.ID] = struct{}{}
		views = append(views, ReservationView{Reservation: reservation})
	}

	for _, parent := range parents {
		if _, ok := seen[parent.ID]; ok {
			continue
		}
		seen[parent.ID] = struct{}{}
		occurrences, err := s.expandParent(ctx, parent, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		if len(occurrences) == 0 {
			continue
		}
		views = append(views, ReservationView{Reservation: parent, Occurrences: occurrences})
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := viewStart(views[i]), viewStart(views[j])
		if a.Equal(b) {
			return views[i].Reservation.ID < views[j].Reservation.ID
		}
		return a.Before(b)
	})

	return views, nil
}

func (s *ReservationService) expandParent(ctx context.Context, parent Reservation, windowStart, windowEnd time.Time) ([]ReservationOccurrence, error) {
	exceptions, err := s.exceptionStarts(ctx, parent.ID)
	if err != nil {
		return nil, err
	}

	cacheKey := buildExpansionCacheKey(parent, windowStart, windowEnd, exceptions)
	if cached, ok := s.expansions.Get(cacheKey); ok {
		return cached, nil
	}

	seed := toRecurrenceSeed(parent)
	expanded, err := s.engine.Expand(seed, windowStart, windowEnd)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidPattern) || errors.Is(err, recurrence.ErrInvalidDuration) {
			return nil, nil
		}
		return nil, err
	}

	occurrences := make([]ReservationOccurrence, 0, len(expanded))
	for _, occurrence := range expanded {
		if containsInstant(exceptions, occurrence.Start) {
			continue
		}
		occurrences = append(occurrences, ReservationOccurrence{
			Ref:   occurrence.Ref,
			Start: occurrence.Start,
			End:   occurrence.End,
		})
	}
	s.expansions.Store(cacheKey, occurrences)
	return occurrences, nil
}

// buildSnapshot reads the booking state a single availability decision needs:
// every active room, every active reservation overlapping the probe, and
// every active recurring parent together with its exception starts.
func (s *ReservationService) buildSnapshot(ctx context.Context, start, end time.Time) (scheduler.Snapshot, error) {
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return scheduler.Snapshot{}, err
	}
	snapRooms := make([]scheduler.Room, 0, len(rooms))
	activeRoomIDs := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		if !room.Active {
			continue
		}
		snapRooms = append(snapRooms, scheduler.Room{ID: room.ID, Name: room.Name})
		activeRoomIDs[room.ID] = struct{}{}
	}

	overlapping, err := s.reservations.ListReservations(ctx, ReservationQuery{
		Statuses:     activeStatuses,
		OverlapStart: &start,
		OverlapEnd:   &end,
	})
	if err != nil {
		return scheduler.Snapshot{}, err
	}
	recurring := true
	parents, err := s.reservations.ListReservations(ctx, ReservationQuery{
		Statuses:    activeStatuses,
		IsRecurring: &recurring,
	})
	if err != nil {
		return scheduler.Snapshot{}, err
	}

	snapReservations := make([]scheduler.Reservation, 0, len(overlapping)+len(parents))
	seen := make(map[string]struct{}, len(overlapping)+len(parents))
	for _, reservation := range append(overlapping, parents...) {
		if _, ok := seen[reservation.ID]; ok {
			continue
		}
		if _, ok := activeRoomIDs[reservation.RoomID]; !ok {
			continue
		}
		seen[reservation.ID] = struct{}{}

		converted := scheduler.Reservation{
			ID:          reservation.ID,
			RoomID:      reservation.RoomID,
			Title:       reservation.Title,
			Start:       reservation.Start,
			End:         reservation.End,
			Tags:        reservation.Tags,
			IsRecurring: reservation.IsRecurring,
		}
		if reservation.IsRecurring {
			seed := toRecurrenceSeed(reservation)
			converted.Pattern = seed.Pattern
			converted.EndRule = seed.EndCondition
			exceptions, err := s.exceptionStarts(ctx, reservation.ID)
			if err != nil {
				return scheduler.Snapshot{}, err
			}
			converted.ExceptionStarts = exceptions
		}
		snapReservations = append(snapReservations, converted)
	}

	return scheduler.Snapshot{Rooms: snapRooms, Reservations: snapReservations}, nil
}

func (s *ReservationService) exceptionStarts(ctx context.Context, parentID string) ([]time.Time, error) {
	children, err := s.reservations.ListReservations(ctx, ReservationQuery{
		ParentID: &parentID,
		Statuses: []string{StatusCancelled},
	})
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, nil
	}
	starts := make([]time.Time, 0, len(children))
	for _, child := range children {
		starts = append(starts, child.Start)
	}
	return starts, nil
}

func (s *ReservationService) cascadeStatusToChildren(ctx context.Context, logger *slog.Logger, parentID, status string) {
	children, err := s.reservations.ListReservations(ctx, ReservationQuery{
		ParentID: &parentID,
		Statuses: []string{StatusPending},
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to list child reservations", "error", err)
		return
	}
	for _, child := range children {
		if _, err := s.reservations.UpdateReservationStatus(ctx, child.ID, status); err != nil {
			logger.ErrorContext(ctx, "failed to cascade status to child", "child_id", child.ID, "error", err)
		}
	}
}

// cascadeCombinedRooms cancels reservations in a combined parent room's child
// rooms when they share the cancelled reservation's exact time bounds.
func (s *ReservationService) cascadeCombinedRooms(ctx context.Context, logger *slog.Logger, cancelled Reservation) {
	if len(s.combined) == 0 {
		return
	}
	room, err := s.rooms.GetRoom(ctx, cancelled.RoomID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve room for combined cascade", "error", err)
		return
	}
	childNames, ok := s.combined[room.Name]
	if !ok {
		return
	}

	for _, childName := range childNames {
		child, err := s.rooms.GetRoomByName(ctx, childName)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.ErrorContext(ctx, "failed to resolve combined child room", "room", childName, "error", err)
			}
			continue
		}
		matches, err := s.reservations.ListReservations(ctx, ReservationQuery{
			RoomID:     &child.ID,
			Statuses:   activeStatuses,
			ExactStart: &cancelled.Start,
			ExactEnd:   &cancelled.End,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to list combined child reservations", "room", childName, "error", err)
			continue
		}
		for _, match := range matches {
			if _, err := s.reservations.UpdateReservationStatus(ctx, match.ID, StatusCancelled); err != nil {
				logger.ErrorContext(ctx, "failed to cancel combined child reservation", "reservation_id", match.ID, "error", err)
			}
		}
	}
}

func (s *ReservationService) notifyBestEffort(ctx context.Context, logger *slog.Logger, kind string, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		logger.WarnContext(ctx, "notification delivery failed", "kind", kind, "error", err)
		return
	}
	logger.DebugContext(ctx, "notification sent", "kind", kind)
}

// isAfterToday reports whether the booking day falls strictly after today in
// the organization timezone. Same-day and past bookings are rejected.
func (s *ReservationService) isAfterToday(start time.Time) bool {
	today := s.now().In(jst)
	todayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, jst)
	bookingDay := start.In(jst)
	bookingDayStart := time.Date(bookingDay.Year(), bookingDay.Month(), bookingDay.Day(), 0, 0, 0, 0, jst)
	return bookingDayStart.After(todayStart)
}

func validateReservationCore(input ReservationInput, vErr *ValidationError) {
	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("time", "start must be before end")
	}

	for _, attendee := range input.Attendees {
		if !strings.Contains(attendee, "@") {
			vErr.add("attendees", fmt.Sprintf("invalid attendee address: %s", attendee))
			break
		}
	}

	if !input.IsRecurring {
		return
	}
	if _, err := recurrence.ParsePattern(input.RecurrencePattern); err != nil || input.RecurrencePattern == "" {
		vErr.add("recurrence_pattern", "recurrence pattern must be daily, weekly, biweekly or monthly")
	}
	switch recurrence.EndType(input.RecurrenceEndType) {
	case recurrence.EndNever:
	case recurrence.EndCount:
		if input.RecurrenceCount <= 0 {
			vErr.add("recurrence_count", "occurrence count must be positive")
		}
	case recurrence.EndDate:
		if input.RecurrenceEndDate.IsZero() {
			vErr.add("recurrence_end_date", "recurrence end date is required")
		}
	default:
		vErr.add("recurrence_end_type", "recurrence end must be never, count or end_date")
	}
}

// applyRecurrence copies the recurrence definition onto the reservation,
// clearing every recurrence field for non-recurring input.
func applyRecurrence(reservation *Reservation, input ReservationInput) {
	if !input.IsRecurring {
		reservation.IsRecurring = false
		reservation.RecurrencePattern = ""
		reservation.RecurrenceEndType = ""
		reservation.RecurrenceCount = 0
		reservation.RecurrenceEndDate = nil
		return
	}
	reservation.IsRecurring = true
	reservation.RecurrencePattern = input.RecurrencePattern
	reservation.RecurrenceEndType = input.RecurrenceEndType
	reservation.RecurrenceCount = 0
	reservation.RecurrenceEndDate = nil
	switch recurrence.EndType(input.RecurrenceEndType) {
	case recurrence.EndCount:
		reservation.RecurrenceCount = input.RecurrenceCount
	case recurrence.EndDate:
		endDate := input.RecurrenceEndDate
		reservation.RecurrenceEndDate = &endDate
	}
}

func toRecurrenceSeed(reservation Reservation) recurrence.Seed {
	seed := recurrence.Seed{
		ReservationID: reservation.ID,
		Start:         reservation.Start,
		End:           reservation.End,
		Pattern:       recurrence.Pattern(reservation.RecurrencePattern),
		EndCondition:  recurrence.EndCondition{Type: recurrence.EndType(reservation.RecurrenceEndType)},
	}
	switch seed.EndCondition.Type {
	case recurrence.EndCount:
		seed.EndCondition.Count = reservation.RecurrenceCount
	case recurrence.EndDate:
		if reservation.RecurrenceEndDate != nil {
			seed.EndCondition.Until = *reservation.RecurrenceEndDate
		}
	}
	return seed
}

func containsInstant(instants []time.Time, instant time.Time) bool {
	for _, candidate := range instants {
		if candidate.Equal(instant) {
			return true
		}
	}
	return false
}

func viewStart(view ReservationView) time.Time {
	if len(view.Occurrences) > 0 {
		return view.Occurrences[0].Start
	}
	return view.Reservation.Start
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
