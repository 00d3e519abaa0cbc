package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/gameshelf/internal/auth"
	"github.com/hitoshi/gameshelf/internal/basket"
	"github.com/hitoshi/gameshelf/internal/catalog"
	"github.com/hitoshi/gameshelf/internal/config"
	"github.com/hitoshi/gameshelf/internal/database"
	"github.com/hitoshi/gameshelf/internal/handler"
	"github.com/hitoshi/gameshelf/internal/logger"
	"github.com/hitoshi/gameshelf/internal/metrics"
	"github.com/hitoshi/gameshelf/internal/middleware"
	"github.com/hitoshi/gameshelf/internal/repository"
	"github.com/hitoshi/gameshelf/internal/security"
	"github.com/hitoshi/gameshelf/internal/worker/cleanup"
)

const (
	shutdownTimeout = 30 * time.Second
	pingTimeout     = 5 * time.Second
)

// ErrMissingImportSource はimportコマンドに取り込み元が指定されていないことを示す。
var ErrMissingImportSource = errors.New("import requires a file path or URL")

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にもログを使えるようにする
	logger.SetupDefault(w, "info")

	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	if cmd == CommandImport && len(args) < 2 {
		return ErrMissingImportSource
	}

	cfg, err := Init(w)
	if err != nil {
		return errors.Wrap(err, "initialization failed")
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.AppBaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandImport:
		return runImport(ctx, cfg, args[1])
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続プールを開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: database.DefaultPoolConfig().ConnMaxLifetime,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := database.Ping(ctx, db, pingTimeout); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	handlerImpl, cleanupFn, err := buildHandler(cfg, db)
	if err != nil {
		return err
	}
	defer cleanupFn()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handlerImpl,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down web server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// buildHandler はリポジトリ、サービス、ルーターを組み立ててHTTPハンドラーを返す。
// 戻り値の関数でバックグラウンド処理を停止する。
func buildHandler(cfg *config.Config, db *sql.DB) (http.Handler, func(), error) {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 2. リポジトリ
	gameRepo := repository.NewPostgresGameRepo(db, cfg.StoreTimeout)
	basketRepo := repository.NewPostgresBasketRepo(db, cfg.StoreTimeout)
	tokenRepo := repository.NewPostgresUserTokenRepo(db, cfg.StoreTimeout)
	sessionRepo := repository.NewPostgresSessionRepo(db, cfg.StoreTimeout)

	// 3. ドメインサービス
	idp := auth.NewOIDCProvider(auth.OIDCConfig{
		Domain:       cfg.OIDCDomain,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURI,
		Audience:     cfg.OIDCAudience,
		Scopes:       cfg.Scopes(),
		AuthURL:      cfg.OIDCAuthURL,
		TokenURL:     cfg.OIDCTokenURL,
		LogoutURL:    cfg.OIDCLogoutURL,
		Timeout:      cfg.IDPTimeout,
	})
	authService := auth.NewService(idp, tokenRepo, sessionRepo, auth.NewSessionSigner(cfg.SessionSecret), auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	catalogService := catalog.NewService(gameRepo, security.NewContentSanitizer())
	basketService := basket.NewService(gameRepo, basketRepo, collector)

	// 4. ルーター
	renderer, err := handler.NewRenderer(collector)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load templates")
	}
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitBasket),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:          slog.Default(),
		SessionResolver: authService,
		RateLimiter:     rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		AdminSubjects:  cfg.AdminSubjects,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		Renderer:       renderer,
		CatalogService: catalogService,
		BasketService:  basketService,
		AuthService:    authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.AppBaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		DB:            db,
		HealthTimeout: pingTimeout,
	})

	// 5. トレーシング（エクスポーターはグローバルプロバイダーの設定に従う）
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	// スパン名はルーター内のNewRouteSpanMiddlewareがルートパターンに置き換える
	traced := otelhttp.NewHandler(router, "gameshelf")

	return traced, rateLimiter.Stop, nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除をcronスケジュールで実行し、ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessionRepo := repository.NewPostgresSessionRepo(db, cfg.StoreTimeout)
	job := cleanup.NewCleanupJob(sessionRepo, slog.Default())

	slog.Info("worker starting", slog.String("schedule", cfg.SessionCleanupSchedule))
	if err := job.Schedule(ctx, cfg.SessionCleanupSchedule); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "migration failed")
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runImport はファイルまたはURLからゲームカタログを取り込む。
func runImport(ctx context.Context, cfg *config.Config, source string) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	guard := security.NewSSRFGuard()
	importer := catalog.NewImporter(
		repository.NewPostgresGameRepo(db, cfg.StoreTimeout),
		guard.NewSafeClient(cfg.ImportTimeout),
		guard,
		cfg.ImportMaxSize,
	)

	result, err := importer.Import(ctx, source)
	if err != nil {
		return errors.Wrap(err, "import catalog")
	}

	slog.Info("catalog import completed",
		slog.String("source", source),
		slog.Int("imported", result.Imported),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return errors.Wrap(err, "health check failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードとクエリを伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	return u.Redacted()
}
