package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gameshelf/internal/model"
)

// --- モック定義 ---

type mockSessionResolver struct {
	resolveFn func(ctx context.Context, cookieValue string) (*model.Identity, error)
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, cookieValue string) (*model.Identity, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, cookieValue)
	}
	return nil, nil
}

var _ SessionResolver = (*mockSessionResolver)(nil)

func aliceResolver() *mockSessionResolver {
	return &mockSessionResolver{
		resolveFn: func(ctx context.Context, value string) (*model.Identity, error) {
			if value == "signed-alice" {
				return &model.Identity{SessionID: "s-1", UserTokenID: "tok-1", Subject: "auth0|alice", Name: "Alice"}, nil
			}
			return nil, nil
		},
	}
}

// captureIdentity はハンドラーに届いたIdentityを記録する。
func captureIdentity(got **model.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// --- テスト ---

func TestSessionMiddleware_ValidCookie_InjectsIdentity(t *testing.T) {
	var got *model.Identity
	handler := NewSessionMiddleware(aliceResolver())(captureIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/basket", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "signed-alice"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got == nil || got.UserTokenID != "tok-1" || got.Subject != "auth0|alice" {
		t.Fatalf("identity = %+v, want alice", got)
	}
}

func TestSessionMiddleware_NoCookie_IsAnonymous(t *testing.T) {
	called := false
	resolver := &mockSessionResolver{
		resolveFn: func(ctx context.Context, value string) (*model.Identity, error) {
			called = true
			return nil, nil
		},
	}
	var got *model.Identity
	handler := NewSessionMiddleware(resolver)(captureIdentity(&got))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (anonymous requests proceed)", w.Code)
	}
	if got != nil {
		t.Errorf("identity = %+v, want nil", got)
	}
	if called {
		t.Error("resolver must not be called without a cookie")
	}
}

func TestSessionMiddleware_InvalidCookie_IsAnonymous(t *testing.T) {
	var got *model.Identity
	handler := NewSessionMiddleware(aliceResolver())(captureIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK || got != nil {
		t.Errorf("status=%d identity=%+v, want 200 and anonymous", w.Code, got)
	}
}

func TestSessionMiddleware_ResolveError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "ストア障害は503",
			err:        errors.Join(model.ErrStoreUnavailable, errors.New("timeout")),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "その他のエラーは500",
			err:        errors.New("unexpected"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockSessionResolver{
				resolveFn: func(ctx context.Context, value string) (*model.Identity, error) {
					return nil, tt.err
				},
			}
			reached := false
			handler := NewSessionMiddleware(resolver)(RequireSession("/pleaseLogin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			})))

			req := httptest.NewRequest(http.MethodGet, "/basket", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "signed-alice"})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if loc := w.Header().Get("Location"); loc != "" {
				t.Errorf("Location = %q, want no redirect to the login prompt", loc)
			}
			if reached {
				t.Error("handler should not be reached when the session cannot be resolved")
			}
		})
	}
}

func TestRequireSession_Anonymous_RedirectsToLoginPrompt(t *testing.T) {
	reached := false
	handler := RequireSession("/pleaseLogin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/add-cookie/celeste", nil))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/pleaseLogin" {
		t.Errorf("Location = %q, want /pleaseLogin", loc)
	}
	if reached {
		t.Error("handler must not be reached for anonymous request")
	}
}

func TestRequireSession_Authenticated_PassesThrough(t *testing.T) {
	handler := RequireSession("/pleaseLogin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/basket", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), &model.Identity{UserTokenID: "tok-1"}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	mw := RequireAdmin([]string{"auth0|admin"}, "/pleaseLogin")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name     string
		identity *model.Identity
		want     int
	}{
		{"匿名はログイン誘導", nil, http.StatusSeeOther},
		{"一般ユーザーは403", &model.Identity{Subject: "auth0|alice", UserTokenID: "t"}, http.StatusForbidden},
		{"管理者は通過", &model.Identity{Subject: "auth0|admin", UserTokenID: "t"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/clear-db", nil)
			if tt.identity != nil {
				req = req.WithContext(ContextWithIdentity(req.Context(), tt.identity))
			}
			w := httptest.NewRecorder()
			mw(ok).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got != nil {
		t.Errorf("IdentityFromContext() = %+v, want nil", got)
	}
}
