package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-reservation/internal/persistence"
	"github.com/example/room-reservation/internal/persistence/memory"
	"github.com/example/room-reservation/internal/testfixtures"
)

func TestStore_CreateReservation_ValidatesAndRejectsDuplicates(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	reservation := testfixtures.NewReservationFixture(testfixtures.WithReservationID("res-1")).AsPersistence()

	if err := store.CreateReservation(ctx, reservation); err != nil {
		t.Fatalf("CreateReservation returned error: %v", err)
	}
	if err := store.CreateReservation(ctx, reservation); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	inverted := testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("res-2"),
		testfixtures.WithReservationWindow(testfixtures.ReferenceTime().Add(2*time.Hour), testfixtures.ReferenceTime().Add(time.Hour)),
	).AsPersistence()
	if err := store.CreateReservation(ctx, inverted); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for a reversed window, got %v", err)
	}
}

func TestStore_ListReservations_FilterSemantics(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	base := testfixtures.ReferenceTime().AddDate(0, 0, 7)

	parentID := "res-parent"
	rows := []persistence.Reservation{
		testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("res-parent"),
			testfixtures.WithReservationRoom("room-a"),
			testfixtures.WithReservationStatus("approved"),
			testfixtures.WithReservationWindow(base, base.Add(time.Hour)),
			testfixtures.WithReservationRecurrence("weekly", "never", 0, nil),
		).AsPersistence(),
		testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("res-child"),
			testfixtures.WithReservationRoom("room-a"),
			testfixtures.WithReservationStatus("cancelled"),
			testfixtures.WithReservationWindow(base.AddDate(0, 0, 7), base.AddDate(0, 0, 7).Add(time.Hour)),
			testfixtures.WithReservationParent(parentID),
		).AsPersistence(),
		testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("res-lockout"),
			testfixtures.WithReservationRoom("room-b"),
			testfixtures.WithReservationStatus("approved"),
			testfixtures.WithReservationWindow(base, base.Add(time.Hour)),
			testfixtures.WithReservationTags("lockout"),
		).AsPersistence(),
		testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("res-later"),
			testfixtures.WithReservationRoom("room-a"),
			testfixtures.WithReservationStatus("pending"),
			testfixtures.WithReservationWindow(base.Add(3*time.Hour), base.Add(4*time.Hour)),
		).AsPersistence(),
	}
	for _, row := range rows {
		if err := store.CreateReservation(ctx, row); err != nil {
			t.Fatalf("seed %s failed: %v", row.ID, err)
		}
	}

	roomA := "room-a"
	recurring := true
	overlapStart := base.Add(30 * time.Minute)
	overlapEnd := base.Add(90 * time.Minute)

	cases := []struct {
		name   string
		filter persistence.ReservationFilter
		want   []string
	}{
		{
			name:   "by room",
			filter: persistence.ReservationFilter{RoomID: &roomA},
			want:   []string{"res-parent", "res-later", "res-child"},
		},
		{
			name:   "by statuses",
			filter: persistence.ReservationFilter{Statuses: []string{"approved"}},
			want:   []string{"res-lockout", "res-parent"},
		},
		{
			name:   "overlap window",
			filter: persistence.ReservationFilter{OverlapStart: &overlapStart, OverlapEnd: &overlapEnd},
			want:   []string{"res-lockout", "res-parent"},
		},
		{
			name:   "any tags",
			filter: persistence.ReservationFilter{AnyTags: []string{"lockout"}},
			want:   []string{"res-lockout"},
		},
		{
			name:   "exclude tags",
			filter: persistence.ReservationFilter{RoomID: &roomA, ExcludeTags: []string{"lockout"}},
			want:   []string{"res-parent", "res-later", "res-child"},
		},
		{
			name:   "recurring only",
			filter: persistence.ReservationFilter{IsRecurring: &recurring},
			want:   []string{"res-parent"},
		},
		{
			name:   "by parent",
			filter: persistence.ReservationFilter{ParentID: &parentID},
			want:   []string{"res-child"},
		},
		{
			name:   "exact bounds",
			filter: persistence.ReservationFilter{RoomID: &roomA, ExactStart: &base},
			want:   []string{"res-parent"},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := store.ListReservations(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListReservations returned error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d rows, want %d: %+v", len(got), len(tc.want), got)
			}
			for i := range tc.want {
				if got[i].ID != tc.want[i] {
					t.Fatalf("row[%d] = %q, want %q", i, got[i].ID, tc.want[i])
				}
			}
		})
	}
}

func TestStore_ListReservations_OrdersByStartThenID(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	base := testfixtures.ReferenceTime().AddDate(0, 0, 7)

	for _, id := range []string{"res-b", "res-a"} {
		row := testfixtures.NewReservationFixture(
			testfixtures.WithReservationID(id),
			testfixtures.WithReservationWindow(base, base.Add(time.Hour)),
		).AsPersistence()
		if err := store.CreateReservation(ctx, row); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	later := testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("res-0"),
		testfixtures.WithReservationWindow(base.Add(2*time.Hour), base.Add(3*time.Hour)),
	).AsPersistence()
	if err := store.CreateReservation(ctx, later); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := store.ListReservations(ctx, persistence.ReservationFilter{})
	if err != nil {
		t.Fatalf("ListReservations returned error: %v", err)
	}
	want := []string{"res-a", "res-b", "res-0"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, got[i].ID, want[i])
		}
	}
}

func TestStore_UpdateReservationStatus_StampsUpdatedAt(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	reservation := testfixtures.NewReservationFixture(testfixtures.WithReservationID("res-1")).AsPersistence()
	if err := store.CreateReservation(ctx, reservation); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	stamp := testfixtures.ReferenceTime().Add(time.Hour)
	if err := store.UpdateReservationStatus(ctx, "res-1", "approved", stamp); err != nil {
		t.Fatalf("UpdateReservationStatus returned error: %v", err)
	}
	got, err := store.GetReservation(ctx, "res-1")
	if err != nil {
		t.Fatalf("GetReservation returned error: %v", err)
	}
	if got.Status != "approved" || !got.UpdatedAt.Equal(stamp) {
		t.Fatalf("got status %q updated %v", got.Status, got.UpdatedAt)
	}

	if err := store.UpdateReservationStatus(ctx, "res-missing", "approved", stamp); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Rooms_EnforceUniqueNames(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()

	room := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-1"), testfixtures.WithRoomName("Sakura")).AsPersistence()
	if err := store.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom returned error: %v", err)
	}

	shadow := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-2"), testfixtures.WithRoomName("sakura")).AsPersistence()
	if err := store.CreateRoom(ctx, shadow); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a case-folded name clash, got %v", err)
	}

	byName, err := store.GetRoomByName(ctx, "SAKURA")
	if err != nil || byName.ID != "room-1" {
		t.Fatalf("GetRoomByName = %+v, %v", byName, err)
	}
}

func TestStore_UpdateUser_PreservesPasswordHash(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()

	user := testfixtures.NewUserFixture(
		testfixtures.WithUserID("user-1"),
		testfixtures.WithUserPasswordHash("argon2id-hash"),
	).AsPersistence()
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	renamed := user
	renamed.DisplayName = "Renamed"
	renamed.PasswordHash = ""
	if err := store.UpdateUser(ctx, renamed); err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}

	got, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if got.DisplayName != "Renamed" || got.PasswordHash != "argon2id-hash" {
		t.Fatalf("got %+v, want renamed profile with the original hash", got)
	}

	stamp := testfixtures.ReferenceTime().Add(time.Hour)
	if err := store.UpdatePassword(ctx, "user-1", "new-hash", stamp); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
	got, _ = store.GetUser(ctx, "user-1")
	if got.PasswordHash != "new-hash" || !got.UpdatedAt.Equal(stamp) {
		t.Fatalf("got %+v, want the replaced hash", got)
	}
}

func TestStore_Sessions_Lifecycle(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()

	session := testfixtures.NewSessionFixture(testfixtures.WithSessionToken("token-1")).AsPersistence()
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	clash := testfixtures.NewSessionFixture(testfixtures.WithSessionToken("token-1")).AsPersistence()
	if err := store.CreateSession(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a token clash, got %v", err)
	}

	revokedAt := testfixtures.ReferenceTime().Add(time.Hour)
	if err := store.RevokeSession(ctx, "token-1", revokedAt); err != nil {
		t.Fatalf("RevokeSession returned error: %v", err)
	}
	got, err := store.GetSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("revoked sessions must stay readable: %v", err)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(revokedAt) {
		t.Fatalf("RevokedAt = %v, want %v", got.RevokedAt, revokedAt)
	}

	// A second revocation finds no active row.
	if err := store.RevokeSession(ctx, "token-1", revokedAt); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revocation, got %v", err)
	}
}

func TestStore_DeleteExpiredSessions(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	reference := testfixtures.ReferenceTime()

	stale := testfixtures.NewSessionFixture(
		testfixtures.WithSessionToken("stale"),
		testfixtures.WithSessionExpiry(reference.Add(-time.Minute)),
	).AsPersistence()
	live := testfixtures.NewSessionFixture(
		testfixtures.WithSessionToken("live"),
		testfixtures.WithSessionExpiry(reference.Add(time.Hour)),
	).AsPersistence()
	for _, session := range []persistence.Session{stale, live} {
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	if err := store.DeleteExpiredSessions(ctx, reference); err != nil {
		t.Fatalf("DeleteExpiredSessions returned error: %v", err)
	}
	if _, err := store.GetSession(ctx, "stale"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatal("expected the stale session to be deleted")
	}
	if _, err := store.GetSession(ctx, "live"); err != nil {
		t.Fatalf("expected the live session to survive: %v", err)
	}
}
