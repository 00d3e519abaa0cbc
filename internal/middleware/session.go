// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gameshelf/internal/model"
)

// SessionCookieName は署名付きセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	identityContextKey     = contextKey("identity")
	identitySlotContextKey = contextKey("identity_slot")
)

// identitySlot はログ出力用に、下流で解決されたsubjectを外側のミドルウェアへ渡す。
type identitySlot struct {
	subject string
}

// withIdentitySlot はリクエストのスロットを返す。未設定の場合は新しいスロットを注入する。
func withIdentitySlot(r *http.Request) (*http.Request, *identitySlot) {
	if slot, ok := r.Context().Value(identitySlotContextKey).(*identitySlot); ok {
		return r, slot
	}
	slot := &identitySlot{}
	return r.WithContext(context.WithValue(r.Context(), identitySlotContextKey, slot)), slot
}

// SessionResolver はCookie値から認証済みIdentityを解決する。
// 匿名の場合はnil, nilを返す。
type SessionResolver interface {
	ResolveSession(ctx context.Context, cookieValue string) (*model.Identity, error)
}

// NewSessionMiddleware はsession_id Cookieを検証し、認証済みであれば
// Identityをリクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、不正、期限切れの場合は匿名としてそのまま処理を続ける。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				// ログイン済みユーザーを匿名扱いにしない
				slog.Error("failed to resolve session",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				if errors.Is(err, model.ErrStoreUnavailable) {
					WriteErrorPage(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
					return
				}
				WriteInternalServerError(w)
				return
			}
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから認証済みIdentityを取得する。
// 匿名の場合はnilを返す。
func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(identityContextKey).(*model.Identity)
	return identity
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	if slot, ok := ctx.Value(identitySlotContextKey).(*identitySlot); ok && identity != nil {
		slot.subject = identity.Subject
	}
	return context.WithValue(ctx, identityContextKey, identity)
}

// RequireSession は匿名のリクエストをloginPathへ303でリダイレクトするミドルウェアを返す。
func RequireSession(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) == nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin は管理者subjectのみを通過させるミドルウェアを返す。
// 匿名はloginPathへリダイレクトし、管理者でない場合は403を返す。
func RequireAdmin(adminSubjects []string, loginPath string) func(next http.Handler) http.Handler {
	admins := make(map[string]struct{}, len(adminSubjects))
	for _, s := range adminSubjects {
		admins[s] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			if _, ok := admins[identity.Subject]; !ok {
				slog.Warn("admin action denied",
					slog.String("subject", identity.Subject),
					slog.String("path", r.URL.Path),
				)
				WriteErrorPage(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
