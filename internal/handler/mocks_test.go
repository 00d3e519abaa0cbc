package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gameshelf/internal/middleware"
	"github.com/hitoshi/gameshelf/internal/model"
)

// --- モック定義 ---

type mockCatalogService struct {
	listGamesFn           func(ctx context.Context, page int) (*model.GamePage, error)
	getGameFn             func(ctx context.Context, slug string) (*model.Game, error)
	listPlatformsFn       func(ctx context.Context) ([]model.Platform, error)
	listGamesByPlatformFn func(ctx context.Context, slug string) (*model.Platform, []model.Game, error)
}

func (m *mockCatalogService) ListGames(ctx context.Context, page int) (*model.GamePage, error) {
	if m.listGamesFn != nil {
		return m.listGamesFn(ctx, page)
	}
	return &model.GamePage{Page: page}, nil
}

func (m *mockCatalogService) GetGame(ctx context.Context, slug string) (*model.Game, error) {
	if m.getGameFn != nil {
		return m.getGameFn(ctx, slug)
	}
	return nil, model.NewGameNotFoundError(slug)
}

func (m *mockCatalogService) ListPlatforms(ctx context.Context) ([]model.Platform, error) {
	if m.listPlatformsFn != nil {
		return m.listPlatformsFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) ListGamesByPlatform(ctx context.Context, slug string) (*model.Platform, []model.Game, error) {
	if m.listGamesByPlatformFn != nil {
		return m.listGamesByPlatformFn(ctx, slug)
	}
	return nil, nil, model.NewPlatformNotFoundError(slug)
}

var _ CatalogServiceInterface = (*mockCatalogService)(nil)

type mockBasketService struct {
	addFn   func(ctx context.Context, identity *model.Identity, slug string) (*model.BasketEntry, *model.Game, error)
	viewFn  func(ctx context.Context, identity *model.Identity) ([]model.BasketItem, error)
	clearFn func(ctx context.Context) error
}

func (m *mockBasketService) Add(ctx context.Context, identity *model.Identity, slug string) (*model.BasketEntry, *model.Game, error) {
	if m.addFn != nil {
		return m.addFn(ctx, identity, slug)
	}
	return nil, nil, model.ErrUnauthenticated
}

func (m *mockBasketService) View(ctx context.Context, identity *model.Identity) ([]model.BasketItem, error) {
	if m.viewFn != nil {
		return m.viewFn(ctx, identity)
	}
	return nil, nil
}

func (m *mockBasketService) Clear(ctx context.Context) error {
	if m.clearFn != nil {
		return m.clearFn(ctx)
	}
	return nil
}

var _ BasketServiceInterface = (*mockBasketService)(nil)

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, string, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	logoutURLFn      func(returnTo string) string
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://idp.example.com/authorize?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, string, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, "", model.ErrUpstreamFailure
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) LogoutURL(returnTo string) string {
	if m.logoutURLFn != nil {
		return m.logoutURLFn(returnTo)
	}
	return "https://idp.example.com/v2/logout?returnTo=" + returnTo
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

type mockSessionResolver struct {
	identities map[string]*model.Identity
	err        error
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, cookieValue string) (*model.Identity, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.identities[cookieValue], nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

type countingRecorder struct {
	storeErrors int
	logins      map[string]int
}

func (c *countingRecorder) RecordStoreError() { c.storeErrors++ }

func (c *countingRecorder) RecordLogin(result string) {
	if c.logins == nil {
		c.logins = map[string]int{}
	}
	c.logins[result]++
}

// --- テストヘルパー ---

var (
	aliceIdentity = &model.Identity{SessionID: "s-alice", UserTokenID: "tok-alice", Subject: "auth0|alice", Name: "Alice"}
	adminIdentity = &model.Identity{SessionID: "s-admin", UserTokenID: "tok-admin", Subject: "auth0|admin", Name: "Admin"}
)

func sampleGame() *model.Game {
	return &model.Game{
		ID:      "g-1",
		Name:    "Celeste",
		Slug:    "celeste",
		Summary: "<p>Climb the <strong>mountain</strong>.</p>",
		URL:     "https://celestegame.com",
		Platform: model.Platform{
			Name: "Nintendo Switch",
			Slug: "nintendo-switch",
			Logo: "https://example.com/switch.png",
		},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestRenderer(t *testing.T, storeErrors StoreErrorRecorder) *Renderer {
	t.Helper()
	rn, err := NewRenderer(storeErrors)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return rn
}

// withURLParam はchiのURLパラメータを設定したリクエストを返す。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withIdentity は認証済みIdentityを設定したリクエストを返す。
func withIdentity(r *http.Request, identity *model.Identity) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
