package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gameshelf/internal/catalog"
	"github.com/hitoshi/gameshelf/internal/model"
)

// lastAddedCookieName は直前にバスケットへ追加したゲームのslugを保持するCookie名。
const lastAddedCookieName = "last_added"

// CatalogServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	// ListGames はpageページ目のゲーム一覧を返す。
	ListGames(ctx context.Context, page int) (*model.GamePage, error)
	// GetGame はslugのゲームを返す。
	GetGame(ctx context.Context, slug string) (*model.Game, error)
	// ListPlatforms は重複を除いたプラットフォーム一覧を返す。
	ListPlatforms(ctx context.Context) ([]model.Platform, error)
	// ListGamesByPlatform はプラットフォームslugに一致するゲームを返す。
	ListGamesByPlatform(ctx context.Context, platformSlug string) (*model.Platform, []model.Game, error)
}

// CatalogHandler はカタログ閲覧のHTTPハンドラー。
type CatalogHandler struct {
	service  CatalogServiceInterface
	renderer *Renderer
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, renderer *Renderer) *CatalogHandler {
	return &CatalogHandler{service: service, renderer: renderer}
}

type indexView struct {
	LastAdded string
}

type gamesView struct {
	Games    []model.Game
	Page     int
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

type gameView struct {
	Game *model.Game
}

type platformsView struct {
	Platforms []model.Platform
}

type platformView struct {
	Platform *model.Platform
	Games    []model.Game
}

// Index はトップページを表示する。
// GET /
func (h *CatalogHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, viewIndex, "トップ", indexView{LastAdded: lastAdded(r)})
}

// ListGames はページ単位のゲーム一覧を表示する。
// GET /games?page=N
func (h *CatalogHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	page, err := catalog.ParsePage(r.URL.Query().Get("page"))
	if err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}

	result, err := h.service.ListGames(r.Context(), page)
	if err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}

	h.renderer.Render(w, r, http.StatusOK, viewGames, "ゲーム一覧", gamesView{
		Games:    result.Games,
		Page:     result.Page,
		HasPrev:  result.HasPrev,
		HasNext:  result.HasNext,
		PrevPage: result.Page - 1,
		NextPage: result.Page + 1,
	})
}

// GetGame はゲーム詳細を表示する。
// GET /game/{slug}
func (h *CatalogHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	game, err := h.service.GetGame(r.Context(), slug)
	if err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}

	h.renderer.Render(w, r, http.StatusOK, viewGame, game.Name, gameView{Game: game})
}

// ListPlatforms はプラットフォーム一覧を表示する。
// GET /platforms
func (h *CatalogHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.service.ListPlatforms(r.Context())
	if err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}

	h.renderer.Render(w, r, http.StatusOK, viewPlatforms, "プラットフォーム一覧", platformsView{Platforms: platforms})
}

// GetPlatform はプラットフォームのゲーム一覧を表示する。
// GET /platform/{slug}
func (h *CatalogHandler) GetPlatform(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	platform, games, err := h.service.ListGamesByPlatform(r.Context(), slug)
	if err != nil {
		h.renderer.handleServiceError(w, r, err)
		return
	}

	h.renderer.Render(w, r, http.StatusOK, viewPlatform, platform.Name, platformView{
		Platform: platform,
		Games:    games,
	})
}

// lastAdded はlast_added Cookieのslugを返す。
func lastAdded(r *http.Request) string {
	cookie, err := r.Cookie(lastAddedCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
