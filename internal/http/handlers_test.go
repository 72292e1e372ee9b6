package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/room-reservation/internal/application"
)

type reservationServiceStub struct {
	createResult application.CreateReservationResult
	createErr    error
	availability application.AvailabilityResult
	availErr     error
	updateErr    error
	cancelErr    error
	instanceErr  error
	views        []application.ReservationView
	listErr      error

	gotCreate   application.CreateReservationParams
	gotAvail    application.CheckAvailabilityParams
	gotStatusID string
	gotStatus   string
	gotCancelID string
	gotParentID string
	gotDate     string
	gotList     application.ListReservationsParams
}

func (s *reservationServiceStub) CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.CreateReservationResult, error) {
	s.gotCreate = params
	return s.createResult, s.createErr
}

func (s *reservationServiceStub) CheckAvailability(ctx context.Context, params application.CheckAvailabilityParams) (application.AvailabilityResult, error) {
	s.gotAvail = params
	return s.availability, s.availErr
}

func (s *reservationServiceStub) UpdateStatus(ctx context.Context, principal application.Principal, reservationID, status string) error {
	s.gotStatusID, s.gotStatus = reservationID, status
	return s.updateErr
}

func (s *reservationServiceStub) Cancel(ctx context.Context, principal application.Principal, reservationID string) error {
	s.gotCancelID = reservationID
	return s.cancelErr
}

func (s *reservationServiceStub) CancelRecurringInstance(ctx context.Context, principal application.Principal, parentID, instanceDate string) error {
	s.gotParentID, s.gotDate = parentID, instanceDate
	return s.instanceErr
}

func (s *reservationServiceStub) ListReservations(ctx context.Context, params application.ListReservationsParams) ([]application.ReservationView, error) {
	s.gotList = params
	return s.views, s.listErr
}

type roomServiceStub struct {
	room    application.Room
	rooms   []application.Room
	err     error
	gotRoom application.CreateRoomParams
}

func (s *roomServiceStub) CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error) {
	s.gotRoom = params
	return s.room, s.err
}

func (s *roomServiceStub) UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error) {
	return s.room, s.err
}

func (s *roomServiceStub) GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error) {
	return s.room, s.err
}

func (s *roomServiceStub) ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error) {
	return s.rooms, s.err
}

type userServiceStub struct {
	user  application.User
	users []application.User
	err   error
}

func (s *userServiceStub) CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error) {
	return s.user, s.err
}

func (s *userServiceStub) UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error) {
	return s.user, s.err
}

func (s *userServiceStub) GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	return s.user, s.err
}

func (s *userServiceStub) ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error) {
	return s.users, s.err
}

type authServiceStub struct {
	result     application.AuthenticateResult
	authErr    error
	session    application.Session
	refreshErr error
	revokeErr  error

	gotEmail    string
	gotPassword string
	gotToken    string
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.gotEmail, s.gotPassword = params.Email, params.Password
	return s.result, s.authErr
}

func (s *authServiceStub) RefreshSession(ctx context.Context, token string) (application.Session, error) {
	s.gotToken = token
	return s.session, s.refreshErr
}

func (s *authServiceStub) RevokeSession(ctx context.Context, token string) error {
	s.gotToken = token
	return s.revokeErr
}

type routerFixture struct {
	handler      http.Handler
	reservations *reservationServiceStub
	rooms        *roomServiceStub
	users        *userServiceStub
	auth         *authServiceStub
}

func newRouterFixture() *routerFixture {
	fx := &routerFixture{
		reservations: &reservationServiceStub{},
		rooms:        &roomServiceStub{},
		users:        &userServiceStub{},
		auth:         &authServiceStub{},
	}
	fx.handler = NewRouter(RouterConfig{
		Auth:         NewAuthHandler(fx.auth, nil),
		Users:        NewUserHandler(fx.users, nil),
		Rooms:        NewRoomHandler(fx.rooms, nil),
		Reservations: NewReservationHandler(fx.reservations, nil),
	})
	return fx
}

func (fx *routerFixture) do(t *testing.T, method, target, body string, principal *application.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if principal != nil {
		req = req.WithContext(ContextWithPrincipal(req.Context(), *principal))
	}
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func member() *application.Principal {
	return &application.Principal{UserID: "user-1", Email: "alice@example.com"}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	rec := fx.do(t, http.MethodDelete, "/reservations", "", member())
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("Allow = %q, want POST listed", allow)
	}
}

func TestReservationHandler_Create_Success(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.reservations.createResult = application.CreateReservationResult{
		Success: true,
		Reservation: application.Reservation{
			ID:          "res-1",
			RoomID:      "room-a",
			UserID:      "user-1",
			Title:       "Design review",
			Description: "Quarterly planning",
			Status:      application.StatusPending,
		},
	}

	body := `{
		"room_id": "room-a",
		"title": "Design review",
		"description": "Quarterly planning",
		"start": "2025-03-05T10:00:00+09:00",
		"end": "2025-03-05T11:00:00+09:00",
		"catering_requested": true
	}`
	rec := fx.do(t, http.MethodPost, "/reservations", body, member())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success     bool `json:"success"`
		Reservation *struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"reservation"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Success || resp.Reservation == nil || resp.Reservation.ID != "res-1" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if resp.Reservation.Description != "Quarterly planning" {
		t.Fatalf("description = %q, want it carried through", resp.Reservation.Description)
	}

	got := fx.reservations.gotCreate
	if got.Principal.UserID != "user-1" {
		t.Fatalf("principal = %+v", got.Principal)
	}
	if got.Input.Description != "Quarterly planning" {
		t.Fatalf("input description = %q", got.Input.Description)
	}
	wantStart := time.Date(2025, time.March, 5, 10, 0, 0, 0, time.FixedZone("", 9*60*60))
	if !got.Input.Start.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", got.Input.Start, wantStart)
	}
	if !got.Input.CateringRequested {
		t.Fatal("catering flag lost")
	}
}

func TestReservationHandler_Create_ConflictReturns409(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.reservations.createResult = application.CreateReservationResult{
		Reason:       "a Big Event requires every room to be free; cancel the conflicting meetings first",
		ConflictType: application.ConflictTypeBlocking,
		ConflictingEvents: []application.ConflictingEvent{
			{ID: "existing", Title: "Interview", RoomID: "room-b", RoomName: "Fuji", OwnerID: "user-2"},
		},
	}

	body := `{"room_id":"room-a","title":"All hands","start":"2025-03-05T10:00:00+09:00","end":"2025-03-05T11:00:00+09:00"}`
	rec := fx.do(t, http.MethodPost, "/reservations", body, member())
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	var resp struct {
		Success           bool   `json:"success"`
		ConflictType      string `json:"conflict_type"`
		ConflictingEvents []struct {
			ID       string `json:"id"`
			RoomName string `json:"room_name"`
		} `json:"conflicting_events"`
	}
	decodeBody(t, rec, &resp)
	if resp.Success {
		t.Fatal("success must be false")
	}
	if resp.ConflictType != application.ConflictTypeBlocking {
		t.Fatalf("conflict_type = %q", resp.ConflictType)
	}
	if len(resp.ConflictingEvents) != 1 || resp.ConflictingEvents[0].RoomName != "Fuji" {
		t.Fatalf("conflicting_events = %+v", resp.ConflictingEvents)
	}
}

func TestReservationHandler_Create_BadRequests(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"room_id":`},
		{name: "bad timestamp", body: `{"room_id":"room-a","title":"x","start":"tomorrow","end":"2025-03-05T11:00:00+09:00"}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fx := newRouterFixture()
			rec := fx.do(t, http.MethodPost, "/reservations", tc.body, member())
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestReservationHandler_Create_ValidationErrorsAreLocalized(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	vErr := &application.ValidationError{FieldErrors: map[string]string{
		"start": "bookings must be made at least one day in advance",
	}}
	fx.reservations.createErr = vErr

	body := `{"room_id":"room-a","title":"x","start":"2025-03-03T10:00:00+09:00","end":"2025-03-03T11:00:00+09:00"}`
	rec := fx.do(t, http.MethodPost, "/reservations", body, member())
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var resp struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	decodeBody(t, rec, &resp)
	if resp.Errors["start"] != "予約は前日までに行ってください。" {
		t.Fatalf("localized message = %q", resp.Errors["start"])
	}
}

func TestReservationHandler_UpdateStatus(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	rec := fx.do(t, http.MethodPut, "/reservations/res-1/status", `{"status":"approved"}`, member())
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.reservations.gotStatusID != "res-1" || fx.reservations.gotStatus != "approved" {
		t.Fatalf("service got %q/%q", fx.reservations.gotStatusID, fx.reservations.gotStatus)
	}
}

func TestReservationHandler_Cancel_MapsDomainErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
	}{
		{name: "success", err: nil, wantCode: http.StatusNoContent},
		{name: "past event", err: application.ErrPastEvent, wantCode: http.StatusConflict, wantTag: "RESERVATION_IN_PAST"},
		{name: "already cancelled", err: application.ErrAlreadyCancelled, wantCode: http.StatusConflict, wantTag: "RESERVATION_ALREADY_CANCELLED"},
		{name: "not owner", err: application.ErrUnauthorized, wantCode: http.StatusForbidden, wantTag: "AUTH_FORBIDDEN"},
		{name: "missing", err: application.ErrNotFound, wantCode: http.StatusNotFound},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fx := newRouterFixture()
			fx.reservations.cancelErr = tc.err
			rec := fx.do(t, http.MethodDelete, "/reservations/res-1", "", member())
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if tc.wantTag != "" {
				var resp struct {
					ErrorCode string `json:"error_code"`
				}
				decodeBody(t, rec, &resp)
				if resp.ErrorCode != tc.wantTag {
					t.Fatalf("error_code = %q, want %q", resp.ErrorCode, tc.wantTag)
				}
			}
		})
	}
}

func TestReservationHandler_CancelInstance(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	rec := fx.do(t, http.MethodDelete, "/reservations/series-1/occurrences/2025-03-19", "", member())
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.reservations.gotParentID != "series-1" || fx.reservations.gotDate != "2025-03-19" {
		t.Fatalf("service got %q/%q", fx.reservations.gotParentID, fx.reservations.gotDate)
	}
}

func TestReservationHandler_List(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	start := time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC)
	fx.reservations.views = []application.ReservationView{
		{
			Reservation: application.Reservation{ID: "series-1", RoomID: "room-a", Title: "Weekly sync", IsRecurring: true},
			Occurrences: []application.ReservationOccurrence{
				{Start: start, End: start.Add(time.Hour)},
				{Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 7).Add(time.Hour)},
			},
		},
	}

	rec := fx.do(t, http.MethodGet, "/reservations?room_id=room-a&from=2025-03-01T00:00:00Z&to=2025-03-31T00:00:00Z", "", member())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.reservations.gotList.RoomID != "room-a" {
		t.Fatalf("room filter = %q", fx.reservations.gotList.RoomID)
	}
	if fx.reservations.gotList.WindowStart.IsZero() || fx.reservations.gotList.WindowEnd.IsZero() {
		t.Fatal("window bounds were not parsed")
	}

	var resp struct {
		Reservations []struct {
			Reservation struct {
				ID string `json:"id"`
			} `json:"reservation"`
			Occurrences []struct {
				Start string `json:"start"`
			} `json:"occurrences"`
		} `json:"reservations"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Reservations) != 1 || len(resp.Reservations[0].Occurrences) != 2 {
		t.Fatalf("unexpected payload: %s", rec.Body.String())
	}

	bad := fx.do(t, http.MethodGet, "/reservations?from=yesterday", "", member())
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a bad window bound", bad.Code)
	}
}

func TestReservationHandler_CheckAvailability(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.reservations.availability = application.AvailabilityResult{
		Available:                false,
		Reason:                   "この時間帯は既に予約されています。",
		ConflictingRoomID:        "room-a",
		ConflictingReservationID: "res-9",
	}

	body := `{"room_id":"room-a","start":"2025-03-05T10:00:00+09:00","end":"2025-03-05T11:00:00+09:00","exclude_reservation_id":"res-1"}`
	rec := fx.do(t, http.MethodPost, "/reservations/availability", body, member())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.reservations.gotAvail.ExcludeReservationID != "res-1" {
		t.Fatalf("exclude id = %q", fx.reservations.gotAvail.ExcludeReservationID)
	}

	var resp struct {
		Available                bool   `json:"available"`
		ConflictingReservationID string `json:"conflicting_reservation_id"`
	}
	decodeBody(t, rec, &resp)
	if resp.Available || resp.ConflictingReservationID != "res-9" {
		t.Fatalf("unexpected payload: %s", rec.Body.String())
	}
}

func TestAuthHandler_CreateSession(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.auth.result = application.AuthenticateResult{
		User: application.User{ID: "user-1", Email: "alice@example.com"},
		Session: application.Session{
			ID:        "sess-1",
			Token:     "opaque-token",
			ExpiresAt: time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC),
		},
	}

	rec := fx.do(t, http.MethodPost, "/sessions", `{"email":"Alice@example.com","password":"correct horse"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.auth.gotEmail != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", fx.auth.gotEmail)
	}
	if rec.Header().Get("X-Session-Token") != "opaque-token" {
		t.Fatalf("X-Session-Token = %q", rec.Header().Get("X-Session-Token"))
	}
	cookieHeader := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookieHeader, "session_token=opaque-token") || !strings.Contains(cookieHeader, "HttpOnly") {
		t.Fatalf("Set-Cookie = %q", cookieHeader)
	}

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	if resp.Token != "opaque-token" {
		t.Fatalf("token = %q", resp.Token)
	}
}

func TestAuthHandler_CreateSession_InvalidCredentials(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.auth.authErr = application.ErrInvalidCredentials

	rec := fx.do(t, http.MethodPost, "/sessions", `{"email":"alice@example.com","password":"guess"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	decodeBody(t, rec, &resp)
	if resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
		t.Fatalf("error_code = %q", resp.ErrorCode)
	}
}

func TestAuthHandler_RefreshCurrentSession(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.auth.session = application.Session{
		ID:        "sess-1",
		Token:     "rotated-token",
		ExpiresAt: time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC),
	}

	req := httptest.NewRequest(http.MethodPut, "/sessions/current", nil)
	req.Header.Set("Authorization", "Bearer old-token")
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.auth.gotToken != "old-token" {
		t.Fatalf("token passed = %q", fx.auth.gotToken)
	}
	if rec.Header().Get("X-Session-Token") != "rotated-token" {
		t.Fatalf("X-Session-Token = %q", rec.Header().Get("X-Session-Token"))
	}

	missing := fx.do(t, http.MethodPut, "/sessions/current", "", nil)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a token", missing.Code)
	}
}

func TestAuthHandler_DeleteCurrentSession(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "cookie-token"})
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.auth.gotToken != "cookie-token" {
		t.Fatalf("token passed = %q, want the cookie value", fx.auth.gotToken)
	}
	if cookie := rec.Header().Get("Set-Cookie"); !strings.Contains(cookie, "session_token=;") && !strings.Contains(cookie, "Max-Age=0") {
		t.Fatalf("Set-Cookie = %q, want the cookie cleared", cookie)
	}
}

func TestRoomHandler_CreateAndList(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.rooms.room = application.Room{ID: "room-1", Name: "Sakura", Capacity: 10, Active: true}
	fx.rooms.rooms = []application.Room{fx.rooms.room}

	admin := &application.Principal{UserID: "admin-1", IsAdmin: true}
	rec := fx.do(t, http.MethodPost, "/rooms", `{"name":"Sakura","capacity":10,"active":true}`, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fx.rooms.gotRoom.Principal.UserID != "admin-1" {
		t.Fatalf("principal = %+v", fx.rooms.gotRoom.Principal)
	}

	list := fx.do(t, http.MethodGet, "/rooms", "", member())
	if list.Code != http.StatusOK {
		t.Fatalf("status = %d", list.Code)
	}
	var resp struct {
		Rooms []struct {
			Name string `json:"name"`
		} `json:"rooms"`
	}
	decodeBody(t, list, &resp)
	if len(resp.Rooms) != 1 || resp.Rooms[0].Name != "Sakura" {
		t.Fatalf("unexpected payload: %s", list.Body.String())
	}
}

func TestUserHandler_ForbiddenIsLocalized(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.users.err = application.ErrUnauthorized

	rec := fx.do(t, http.MethodGet, "/users", "", member())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var resp struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	decodeBody(t, rec, &resp)
	if resp.ErrorCode != "AUTH_FORBIDDEN" || resp.Message == "" {
		t.Fatalf("unexpected payload: %s", rec.Body.String())
	}
}
