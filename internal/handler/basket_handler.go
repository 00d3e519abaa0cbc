package handler

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gameshelf/internal/middleware"
	"github.com/hitoshi/gameshelf/internal/model"
)

// lastAddedMaxAge はlast_added Cookieの有効期間（秒）。
const lastAddedMaxAge = 300

// BasketServiceInterface はバスケットハンドラーが必要とするサービスインターフェース。
type BasketServiceInterface interface {
	Add(ctx context.Context, identity *model.Identity, slug string) (*model.BasketEntry, *model.Game, error)
	View(ctx context.Context, identity *model.Identity) ([]model.BasketItem, error)
	Clear(ctx context.Context) error
}

// BasketHandlerConfig はバスケットハンドラーの設定。
type BasketHandlerConfig struct {
	AdminSubjects []string
	CookieDomain  string
	CookieSecure  bool
}

// BasketHandler はバスケット操作のHTTPハンドラー。
type BasketHandler struct {
	service  BasketServiceInterface
	renderer *Renderer
	config   BasketHandlerConfig
}

// NewBasketHandler はBasketHandlerを生成する。
func NewBasketHandler(service BasketServiceInterface, renderer *Renderer, config BasketHandlerConfig) *BasketHandler {
	return &BasketHandler{service: service, renderer: renderer, config: config}
}

type basketView struct {
	Items    []model.BasketItem
	CanClear bool
}

type addedView struct {
	Game *model.Game
}

// View はログインユーザーのバスケットを表示する。
// GET /basket
func (h *BasketHandler) View(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	items, err := h.service.View(r.Context(), identity)
	if err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}

	h.renderer.Render(w, r, http.StatusOK, viewBasket, "バスケット", basketView{
		Items:    items,
		CanClear: identity != nil && slices.Contains(h.config.AdminSubjects, identity.Subject),
	})
}

// Add はゲームをバスケットに追加し、確認画面を表示する。
// POST /add-cookie/{slug}
func (h *BasketHandler) Add(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	_, game, err := h.service.Add(r.Context(), middleware.IdentityFromContext(r.Context()), slug)
	if err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     lastAddedCookieName,
		Value:    game.Slug,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   lastAddedMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.renderer.Render(w, r, http.StatusOK, viewAdded, "追加しました", addedView{Game: game})
}

// Clear は全てのバスケットを空にする。管理者のみ。
// POST /clear-db
func (h *BasketHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/basket", http.StatusSeeOther)
}
