package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/gameshelf/internal/middleware"
	"github.com/hitoshi/gameshelf/internal/model"
)

func newTestAuthHandler(t *testing.T, svc *mockAuthService, rec *countingRecorder) *AuthHandler {
	t.Helper()
	var logins LoginRecorder
	if rec != nil {
		logins = rec
	}
	return NewAuthHandler(svc, newTestRenderer(t, nil), logins, AuthHandlerConfig{
		BaseURL:       "http://localhost:8080",
		SessionMaxAge: 3600,
	})
}

func callbackRequest(state, cookieState, code string) *http.Request {
	q := url.Values{}
	q.Set("state", state)
	q.Set("code", code)
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookieState})
	}
	return req
}

func TestAuthHandler_Login_RedirectsWithState(t *testing.T) {
	var gotState string
	svc := &mockAuthService{
		getLoginURLFn: func(state string) string {
			gotState = state
			return "https://idp.example.com/authorize?state=" + state
		},
	}
	h := newTestAuthHandler(t, svc, nil)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want 307", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Location"), "https://idp.example.com/authorize") {
		t.Errorf("Location = %q", w.Header().Get("Location"))
	}

	cookie := findCookie(w.Result(), oauthStateCookie)
	if cookie == nil {
		t.Fatal("expected oauth_state cookie")
	}
	if cookie.Value != gotState || len(gotState) != 32 {
		t.Errorf("state cookie = %q, state = %q", cookie.Value, gotState)
	}
	if cookie.MaxAge != 600 || !cookie.HttpOnly {
		t.Errorf("state cookie MaxAge=%d HttpOnly=%v", cookie.MaxAge, cookie.HttpOnly)
	}
}

func TestAuthHandler_Callback_Success_SetsSessionCookieAndRendersLanding(t *testing.T) {
	rec := &countingRecorder{}
	var gotCode string
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, string, error) {
			gotCode = code
			return &model.Session{
				ID:          "s-1",
				UserTokenID: "tok-1",
				Subject:     "auth0|alice",
				Name:        "Alice",
				ExpiresAt:   time.Now().Add(time.Hour),
			}, "signed-value", nil
		},
	}
	h := newTestAuthHandler(t, svc, rec)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("st", "st", "the-code"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotCode != "the-code" {
		t.Errorf("code = %q, want the-code", gotCode)
	}

	resp := w.Result()
	session := findCookie(resp, middleware.SessionCookieName)
	if session == nil {
		t.Fatal("expected session_id cookie")
	}
	if session.Value != "signed-value" {
		t.Errorf("session cookie = %q, want signed-value", session.Value)
	}
	if session.MaxAge != 3600 || !session.HttpOnly || session.SameSite != http.SameSiteLaxMode {
		t.Errorf("session cookie MaxAge=%d HttpOnly=%v SameSite=%v", session.MaxAge, session.HttpOnly, session.SameSite)
	}
	if state := findCookie(resp, oauthStateCookie); state == nil || state.MaxAge >= 0 {
		t.Error("oauth_state cookie should be cleared")
	}
	if !strings.Contains(w.Body.String(), "Alice") {
		t.Error("landing page should greet the logged in user")
	}
	if rec.logins["success"] != 1 {
		t.Errorf("logins = %v, want success=1", rec.logins)
	}
}

func TestAuthHandler_Callback_StateMismatch_RedirectsWithError(t *testing.T) {
	tests := []struct {
		name        string
		state       string
		cookieState string
	}{
		{"Cookieなし", "st", ""},
		{"不一致", "st", "other"},
		{"stateが空", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			called := false
			svc := &mockAuthService{
				handleCallbackFn: func(ctx context.Context, code string) (*model.Session, string, error) {
					called = true
					return nil, "", nil
				},
			}
			h := newTestAuthHandler(t, svc, rec)

			w := httptest.NewRecorder()
			h.Callback(w, callbackRequest(tt.state, tt.cookieState, "code"))

			if w.Code != http.StatusSeeOther {
				t.Errorf("status = %d, want 303", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/pleaseLogin?error=auth_failed" {
				t.Errorf("Location = %q", loc)
			}
			if called {
				t.Error("HandleCallback must not be called on state mismatch")
			}
			if rec.logins["failure"] != 1 {
				t.Errorf("logins = %v, want failure=1", rec.logins)
			}
		})
	}
}

func TestAuthHandler_Callback_UpstreamFailure_RedirectsWithError(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, string, error) {
			return nil, "", errors.Join(model.ErrUpstreamFailure, context.DeadlineExceeded)
		},
	}
	h := newTestAuthHandler(t, svc, &countingRecorder{})

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("st", "st", "code"))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/pleaseLogin?error=auth_failed" {
		t.Errorf("Location = %q", loc)
	}
	if findCookie(w.Result(), middleware.SessionCookieName) != nil {
		t.Error("session cookie must not be set on failure")
	}
}

func TestAuthHandler_Logout_DeletesSessionAndRedirectsToIdP(t *testing.T) {
	var deleted string
	var returnTo string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			deleted = sessionID
			return nil
		},
		logoutURLFn: func(rt string) string {
			returnTo = rt
			return "https://idp.example.com/v2/logout"
		},
	}
	h := newTestAuthHandler(t, svc, nil)

	w := httptest.NewRecorder()
	h.Logout(w, withIdentity(httptest.NewRequest(http.MethodGet, "/logout", nil), aliceIdentity))

	if deleted != "s-alice" {
		t.Errorf("deleted session = %q, want s-alice", deleted)
	}
	if returnTo != "http://localhost:8080" {
		t.Errorf("returnTo = %q", returnTo)
	}
	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://idp.example.com/v2/logout" {
		t.Errorf("Location = %q", loc)
	}

	resp := w.Result()
	for _, name := range []string{middleware.SessionCookieName, lastAddedCookieName} {
		c := findCookie(resp, name)
		if c == nil || c.MaxAge >= 0 {
			t.Errorf("%s cookie should be cleared", name)
		}
	}
}

func TestAuthHandler_Logout_Anonymous_StillRedirects(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			called = true
			return nil
		},
	}
	h := newTestAuthHandler(t, svc, nil)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if called {
		t.Error("Logout must not be called without a session")
	}
	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", w.Code)
	}
}

func TestAuthHandler_PleaseLogin(t *testing.T) {
	h := newTestAuthHandler(t, &mockAuthService{}, nil)

	w := httptest.NewRecorder()
	h.PleaseLogin(w, httptest.NewRequest(http.MethodGet, "/pleaseLogin", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), `role="alert"`) {
		t.Error("auth error must not be shown without error param")
	}

	w = httptest.NewRecorder()
	h.PleaseLogin(w, httptest.NewRequest(http.MethodGet, "/pleaseLogin?error=auth_failed", nil))
	if !strings.Contains(w.Body.String(), `role="alert"`) {
		t.Error("auth error should be shown with error=auth_failed")
	}
}
