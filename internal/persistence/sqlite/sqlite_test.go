package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-reservation/internal/persistence"
	"github.com/example/room-reservation/internal/testfixtures"
)

// seedCatalog inserts the rooms and users the fixtures reference, satisfying
// the schema's foreign keys.
func seedCatalog(t *testing.T, harness *testfixtures.SQLiteHarness) {
	t.Helper()
	ctx := context.Background()
	for _, roomID := range []string{"room-001", "room-a", "room-b"} {
		room := testfixtures.NewRoomFixture(testfixtures.WithRoomID(roomID)).AsPersistence()
		if err := harness.Rooms.CreateRoom(ctx, room); err != nil {
			t.Fatalf("seed room %s failed: %v", roomID, err)
		}
	}
	for _, userID := range []string{"user-001", "user-1"} {
		user := testfixtures.NewUserFixture(testfixtures.WithUserID(userID)).AsPersistence()
		if err := harness.Users.CreateUser(ctx, user); err != nil {
			t.Fatalf("seed user %s failed: %v", userID, err)
		}
	}
}

func TestReservationRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	seedCatalog(t, harness)
	ctx := context.Background()

	endDate := testfixtures.ReferenceTime().AddDate(0, 3, 0)
	seeded := testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("res-1"),
		testfixtures.WithReservationRoom("room-a"),
		testfixtures.WithReservationUser("user-1"),
		testfixtures.WithReservationStatus("approved"),
		testfixtures.WithReservationTags("big-event", "offsite"),
		testfixtures.WithReservationRecurrence("weekly", "end_date", 0, &endDate),
	).AsPersistence()

	if err := harness.Reservations.CreateReservation(ctx, seeded); err != nil {
		t.Fatalf("CreateReservation returned error: %v", err)
	}

	got, err := harness.Reservations.GetReservation(ctx, "res-1")
	if err != nil {
		t.Fatalf("GetReservation returned error: %v", err)
	}
	if !got.Start.Equal(seeded.Start) || !got.End.Equal(seeded.End) {
		t.Fatalf("window = [%v, %v], want [%v, %v]", got.Start, got.End, seeded.Start, seeded.End)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("tags = %v, want both preserved", got.Tags)
	}
	if !got.IsRecurring || got.RecurrencePattern == nil || *got.RecurrencePattern != "weekly" {
		t.Fatalf("recurrence pattern lost: %+v", got)
	}
	if got.RecurrenceEndDate == nil || !got.RecurrenceEndDate.Equal(endDate) {
		t.Fatalf("recurrence end date = %v, want %v", got.RecurrenceEndDate, endDate)
	}

	if _, err := harness.Reservations.GetReservation(ctx, "res-missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := harness.Reservations.CreateReservation(ctx, seeded); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestReservationRepository_ListFilters(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	seedCatalog(t, harness)
	ctx := context.Background()
	base := testfixtures.ReferenceTime().AddDate(0, 0, 7)

	rows := []persistence.Reservation{
		testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("res-approved"),
			testfixtures.WithReservationRoom("room-a"),
			testfixtures.WithReservationStatus("approved"),
			testfixtures.WithReservationWindow(base, base.Add(time.Hour)),
		).AsPersistence(),
		testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("res-lockout"),
			testfixtures.WithReservationRoom("room-b"),
			testfixtures.WithReservationStatus("approved"),
			testfixtures.WithReservationWindow(base, base.Add(time.Hour)),
			testfixtures.WithReservationTags("lockout"),
		).AsPersistence(),
		testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("res-cancelled"),
			testfixtures.WithReservationRoom("room-a"),
			testfixtures.WithReservationStatus("cancelled"),
			testfixtures.WithReservationWindow(base, base.Add(time.Hour)),
		).AsPersistence(),
	}
	for _, row := range rows {
		if err := harness.Reservations.CreateReservation(ctx, row); err != nil {
			t.Fatalf("seed %s failed: %v", row.ID, err)
		}
	}

	overlapStart := base.Add(30 * time.Minute)
	overlapEnd := base.Add(2 * time.Hour)
	active, err := harness.Reservations.ListReservations(ctx, persistence.ReservationFilter{
		Statuses:     []string{"pending", "approved"},
		OverlapStart: &overlapStart,
		OverlapEnd:   &overlapEnd,
	})
	if err != nil {
		t.Fatalf("ListReservations returned error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active overlapping rows, got %d", len(active))
	}

	tagged, err := harness.Reservations.ListReservations(ctx, persistence.ReservationFilter{
		AnyTags: []string{"lockout"},
	})
	if err != nil {
		t.Fatalf("ListReservations returned error: %v", err)
	}
	if len(tagged) != 1 || tagged[0].ID != "res-lockout" {
		t.Fatalf("expected only the lockout row, got %+v", tagged)
	}

	untagged, err := harness.Reservations.ListReservations(ctx, persistence.ReservationFilter{
		Statuses:    []string{"approved"},
		ExcludeTags: []string{"lockout"},
	})
	if err != nil {
		t.Fatalf("ListReservations returned error: %v", err)
	}
	if len(untagged) != 1 || untagged[0].ID != "res-approved" {
		t.Fatalf("expected only the plain approved row, got %+v", untagged)
	}
}

func TestReservationRepository_UpdateStatus(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	seedCatalog(t, harness)
	ctx := context.Background()

	seeded := testfixtures.NewReservationFixture(testfixtures.WithReservationID("res-1")).AsPersistence()
	if err := harness.Reservations.CreateReservation(ctx, seeded); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	stamp := testfixtures.ReferenceTime().Add(time.Hour)
	if err := harness.Reservations.UpdateReservationStatus(ctx, "res-1", "approved", stamp); err != nil {
		t.Fatalf("UpdateReservationStatus returned error: %v", err)
	}
	got, err := harness.Reservations.GetReservation(ctx, "res-1")
	if err != nil {
		t.Fatalf("GetReservation returned error: %v", err)
	}
	if got.Status != "approved" || !got.UpdatedAt.Equal(stamp) {
		t.Fatalf("status %q updated %v, want approved at %v", got.Status, got.UpdatedAt, stamp)
	}

	if err := harness.Reservations.UpdateReservationStatus(ctx, "res-missing", "approved", stamp); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoomRepository_UniqueNameAndLookup(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	room := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-1"), testfixtures.WithRoomName("Sakura")).AsPersistence()
	if err := harness.Rooms.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom returned error: %v", err)
	}

	clash := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-2"), testfixtures.WithRoomName("Sakura")).AsPersistence()
	if err := harness.Rooms.CreateRoom(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	byName, err := harness.Rooms.GetRoomByName(ctx, "Sakura")
	if err != nil || byName.ID != "room-1" {
		t.Fatalf("GetRoomByName = %+v, %v", byName, err)
	}

	byName.Active = false
	if err := harness.Rooms.UpdateRoom(ctx, byName); err != nil {
		t.Fatalf("UpdateRoom returned error: %v", err)
	}
	updated, err := harness.Rooms.GetRoom(ctx, "room-1")
	if err != nil || updated.Active {
		t.Fatalf("expected the room deactivated, got %+v, %v", updated, err)
	}
}

func TestUserRepository_PasswordHandling(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	user := testfixtures.NewUserFixture(
		testfixtures.WithUserID("user-1"),
		testfixtures.WithUserEmail("alice@example.com"),
		testfixtures.WithUserPasswordHash("argon2id-hash"),
	).AsPersistence()
	if err := harness.Users.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	renamed := user
	renamed.DisplayName = "Renamed"
	renamed.PasswordHash = ""
	if err := harness.Users.UpdateUser(ctx, renamed); err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}

	got, err := harness.Users.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail returned error: %v", err)
	}
	if got.DisplayName != "Renamed" || got.PasswordHash != "argon2id-hash" {
		t.Fatalf("got %+v, want renamed profile with the original hash", got)
	}

	stamp := testfixtures.ReferenceTime().Add(time.Hour)
	if err := harness.Users.UpdatePassword(ctx, "user-1", "new-hash", stamp); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
	got, _ = harness.Users.GetUser(ctx, "user-1")
	if got.PasswordHash != "new-hash" {
		t.Fatalf("hash = %q, want replaced", got.PasswordHash)
	}

	clash := testfixtures.NewUserFixture(testfixtures.WithUserID("user-2"), testfixtures.WithUserEmail("alice@example.com")).AsPersistence()
	if err := harness.Users.CreateUser(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for an email clash, got %v", err)
	}
}

func TestSessionRepository_RevokedRowsStayReadable(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	seedCatalog(t, harness)
	ctx := context.Background()

	session := testfixtures.NewSessionFixture(testfixtures.WithSessionToken("token-1")).AsPersistence()
	if err := harness.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	revokedAt := testfixtures.ReferenceTime().Add(time.Hour)
	if err := harness.Sessions.RevokeSession(ctx, "token-1", revokedAt); err != nil {
		t.Fatalf("RevokeSession returned error: %v", err)
	}

	// The application layer inspects RevokedAt itself, so lookups must keep
	// returning revoked rows.
	got, err := harness.Sessions.GetSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(revokedAt) {
		t.Fatalf("RevokedAt = %v, want %v", got.RevokedAt, revokedAt)
	}
}

func TestSessionRepository_UpdateAndPrune(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	seedCatalog(t, harness)
	ctx := context.Background()
	reference := testfixtures.ReferenceTime()

	session := testfixtures.NewSessionFixture(
		testfixtures.WithSessionToken("old-token"),
		testfixtures.WithSessionExpiry(reference.Add(time.Hour)),
	).AsPersistence()
	if err := harness.Sessions.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	session.Token = "new-token"
	session.ExpiresAt = reference.Add(2 * time.Hour)
	if err := harness.Sessions.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession returned error: %v", err)
	}
	if _, err := harness.Sessions.GetSession(ctx, "old-token"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatal("the old token must stop resolving after rotation")
	}
	rotated, err := harness.Sessions.GetSession(ctx, "new-token")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if !rotated.ExpiresAt.Equal(reference.Add(2 * time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want extended", rotated.ExpiresAt)
	}

	stale := testfixtures.NewSessionFixture(
		testfixtures.WithSessionToken("stale-token"),
		testfixtures.WithSessionExpiry(reference.Add(-time.Minute)),
	).AsPersistence()
	if err := harness.Sessions.CreateSession(ctx, stale); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if err := harness.Sessions.DeleteExpiredSessions(ctx, reference); err != nil {
		t.Fatalf("DeleteExpiredSessions returned error: %v", err)
	}
	if _, err := harness.Sessions.GetSession(ctx, "stale-token"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatal("expected the stale session to be pruned")
	}
	if _, err := harness.Sessions.GetSession(ctx, "new-token"); err != nil {
		t.Fatalf("the live session must survive pruning: %v", err)
	}
}
