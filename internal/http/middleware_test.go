package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/room-reservation/internal/application"
)

type sessionValidatorStub struct {
	principal application.Principal
	err       error
	gotToken  string
}

func (s *sessionValidatorStub) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	s.gotToken = token
	return s.principal, s.err
}

func TestRequireSession_AttachesPrincipal(t *testing.T) {
	t.Parallel()

	validator := &sessionValidatorStub{
		principal: application.Principal{UserID: "user-1", Email: "alice@example.com", IsAdmin: true},
	}

	var seen application.Principal
	var seenOK bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, seenOK = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	RequireSession(validator, nil)(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if validator.gotToken != "good-token" {
		t.Fatalf("token = %q", validator.gotToken)
	}
	if !seenOK || seen.UserID != "user-1" || !seen.IsAdmin {
		t.Fatalf("principal = %+v (ok=%v)", seen, seenOK)
	}
}

func TestRequireSession_ResolvesCookieToken(t *testing.T) {
	t.Parallel()

	validator := &sessionValidatorStub{principal: application.Principal{UserID: "user-1"}}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "cookie-token"})
	rec := httptest.NewRecorder()
	RequireSession(validator, nil)(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if validator.gotToken != "cookie-token" {
		t.Fatalf("token = %q, want the cookie value", validator.gotToken)
	}
}

func TestRequireSession_RejectsBadSessions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		token    string
		err      error
		wantCode int
		wantTag  string
	}{
		{name: "missing token", token: "", wantCode: http.StatusUnauthorized},
		{name: "expired session", token: "t", err: application.ErrSessionExpired, wantCode: http.StatusUnauthorized, wantTag: "AUTH_SESSION_EXPIRED"},
		{name: "revoked session", token: "t", err: application.ErrSessionRevoked, wantCode: http.StatusUnauthorized, wantTag: "AUTH_SESSION_EXPIRED"},
		{name: "invalid session", token: "t", err: application.ErrUnauthorized, wantCode: http.StatusUnauthorized},
		{name: "unknown session", token: "t", err: application.ErrNotFound, wantCode: http.StatusUnauthorized},
		{name: "validator failure", token: "t", err: context.DeadlineExceeded, wantCode: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			validator := &sessionValidatorStub{err: tc.err}
			innerCalled := false
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				innerCalled = true
			})

			req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			RequireSession(validator, nil)(inner).ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if innerCalled {
				t.Fatal("inner handler must not run for a rejected session")
			}
			if tc.wantTag != "" {
				var resp struct {
					ErrorCode string `json:"error_code"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.ErrorCode != tc.wantTag {
					t.Fatalf("error_code = %q, want %q", resp.ErrorCode, tc.wantTag)
				}
			}
		})
	}
}

func TestRequestLogger_PropagatesContextLogger(t *testing.T) {
	t.Parallel()

	var sawLogger bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	RequestLogger(nil)(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !sawLogger {
		t.Fatal("request scoped logger missing from context")
	}
}
