package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gameshelf/internal/metrics"
	"github.com/hitoshi/gameshelf/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionResolver middleware.SessionResolver
	RateLimiter     *middleware.RateLimiter
	CSRF            middleware.CSRFConfig
	AdminSubjects   []string

	// メトリクス（/metrics はMetricsHandlerで公開する）
	Metrics        *metrics.Collector
	MetricsHandler http.Handler

	Renderer *Renderer

	// サービス
	CatalogService CatalogServiceInterface
	BasketService  BasketServiceInterface
	AuthService    AuthServiceInterface
	AuthConfig     AuthHandlerConfig

	// ヘルスチェック
	DB            Pinger
	HealthTimeout time.Duration
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → RouteSpan → Metrics → Session → RateLimit(General) → CSRF発行
//
// /health と /metrics はセッション以降のミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRouteSpanMiddleware())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}

	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.Renderer)
	basketHandler := NewBasketHandler(deps.BasketService, deps.Renderer, BasketHandlerConfig{
		AdminSubjects: deps.AdminSubjects,
		CookieDomain:  deps.AuthConfig.CookieDomain,
		CookieSecure:  deps.AuthConfig.CookieSecure,
	})
	var logins LoginRecorder
	if deps.Metrics != nil {
		logins = deps.Metrics
	}
	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, logins, deps.AuthConfig)
	healthHandler := NewHealthHandler(deps.DB, deps.HealthTimeout)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 画面 ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRFトークン発行
	// 状態変更ルートはセッション・権限チェックの後にCSRFトークンを検証する。
	// 匿名のPOSTはトークンの有無にかかわらずログイン案内へリダイレクトされる。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.IssueCSRFToken(deps.CSRF))

		// カタログ
		r.Get("/", catalogHandler.Index)
		r.Get("/games", catalogHandler.ListGames)
		r.Get("/game/{slug}", catalogHandler.GetGame)
		r.Get("/platforms", catalogHandler.ListPlatforms)
		r.Get("/platform/{slug}", catalogHandler.GetPlatform)

		// 認証
		r.Get("/login", authHandler.Login)
		r.Get("/authorize", authHandler.Callback)
		r.Get("/logout", authHandler.Logout)
		r.Get(loginPromptPath, authHandler.PleaseLogin)

		// バスケット（ログイン必須）
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(loginPromptPath))

			r.Get("/basket", basketHandler.View)
			// 追加専用のレート制限を上乗せする
			r.With(deps.RateLimiter.BasketMiddleware(), middleware.VerifyCSRFToken()).Post("/add-cookie/{slug}", basketHandler.Add)
		})

		// 管理者のみ
		r.With(
			middleware.RequireAdmin(deps.AdminSubjects, loginPromptPath),
			middleware.VerifyCSRFToken(),
		).Post("/clear-db", basketHandler.Clear)

		r.NotFound(deps.Renderer.NotFound)
	})

	return r
}
