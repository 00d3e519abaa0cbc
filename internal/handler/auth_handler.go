// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gameshelf/internal/middleware"
	"github.com/hitoshi/gameshelf/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分

	loginPromptPath = "/pleaseLogin"
	authFailedPath  = "/pleaseLogin?error=auth_failed"

	loginResultSuccess = "success"
	loginResultFailure = "failure"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, string, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutURL(returnTo string) string
}

// LoginRecorder はログイン結果を記録する。
type LoginRecorder interface {
	RecordLogin(result string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string // ログアウト後の戻り先
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOIDC認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer *Renderer
	logins   LoginRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。loginsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, renderer *Renderer, logins LoginRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		logins:   logins,
		config:   config,
	}
}

type pleaseLoginView struct {
	AuthFailed bool
}

// Login はOIDCの認可フローを開始する。
// GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（ログインCSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はIdPからのコールバックを処理し、セッションを開始してトップページを表示する。
// GET /authorize?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.recordLogin(loginResultFailure)
		http.Redirect(w, r, authFailedPath, http.StatusSeeOther)
		return
	}

	// stateクッキーを削除
	h.clearCookie(w, oauthStateCookie, "")

	session, cookieValue, err := h.service.HandleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.recordLogin(loginResultFailure)
		h.renderer.handleServiceError(w, r, err)
		return
	}
	h.recordLogin(loginResultSuccess)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.renderer.renderAs(w, r, http.StatusOK, viewIndex, "トップ",
		model.IdentityFromSession(session), indexView{LastAdded: lastAdded(r)})
}

// Logout はセッションを破棄し、IdPのログアウトへリダイレクトする。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if identity := middleware.IdentityFromContext(r.Context()); identity != nil {
		if err := h.service.Logout(r.Context(), identity.SessionID); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.clearCookie(w, middleware.SessionCookieName, h.config.CookieDomain)
	h.clearCookie(w, lastAddedCookieName, h.config.CookieDomain)

	http.Redirect(w, r, h.service.LogoutURL(h.config.BaseURL), http.StatusFound)
}

// PleaseLogin はログインを促す画面を表示する。
// GET /pleaseLogin
func (h *AuthHandler) PleaseLogin(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, viewPleaseLogin, "ログイン", pleaseLoginView{
		AuthFailed: r.URL.Query().Get("error") == "auth_failed",
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) recordLogin(result string) {
	if h.logins != nil {
		h.logins.RecordLogin(result)
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
