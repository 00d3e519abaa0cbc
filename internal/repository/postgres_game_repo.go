package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/hitoshi/gameshelf/internal/model"
)

const gameColumns = `id, name, slug, summary, url, platform, created_at`

// PostgresGameRepo はPostgreSQLを使用したゲームリポジトリ。
type PostgresGameRepo struct {
	store
}

// NewPostgresGameRepo はPostgresGameRepoを生成する。
// timeoutが0以下の場合はDefaultStoreTimeoutを使用する。
func NewPostgresGameRepo(db *sql.DB, timeout time.Duration) *PostgresGameRepo {
	return &PostgresGameRepo{store: newStore(db, timeout)}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanGame は1行をGameに変換する。platformはJSONBから復元する。
func scanGame(s rowScanner, g *model.Game) error {
	var platform []byte
	if err := s.Scan(&g.ID, &g.Name, &g.Slug, &g.Summary, &g.URL, &platform, &g.CreatedAt); err != nil {
		return err
	}
	if len(platform) > 0 {
		if err := json.Unmarshal(platform, &g.Platform); err != nil {
			return errors.Wrap(err, "decode platform")
		}
	}
	return nil
}

// FindBySlug はslugに一致するゲームを取得する。見つからない場合はnilを返す。
func (r *PostgresGameRepo) FindBySlug(ctx context.Context, slug string) (*model.Game, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	game := &model.Game{}
	err := scanGame(r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE slug = $1`,
		slug,
	), game)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreError("find game by slug", err)
	}
	return game, nil
}

// List は名前順でoffsetからlimit件のゲームを返す。
func (r *PostgresGameRepo) List(ctx context.Context, offset, limit int) ([]model.Game, error) {
	return r.query(ctx, "list games",
		`SELECT `+gameColumns+` FROM games ORDER BY name, slug LIMIT $1 OFFSET $2`,
		limit, offset,
	)
}

// ListAll は全ゲームを名前順で返す。
func (r *PostgresGameRepo) ListAll(ctx context.Context) ([]model.Game, error) {
	return r.query(ctx, "list all games",
		`SELECT `+gameColumns+` FROM games ORDER BY name, slug`,
	)
}

// ListByPlatformSlug はプラットフォームslugが完全一致するゲームを返す。
func (r *PostgresGameRepo) ListByPlatformSlug(ctx context.Context, platformSlug string) ([]model.Game, error) {
	return r.query(ctx, "list games by platform",
		`SELECT `+gameColumns+` FROM games WHERE platform->>'slug' = $1 ORDER BY name, slug`,
		platformSlug,
	)
}

func (r *PostgresGameRepo) query(ctx context.Context, op, query string, args ...any) ([]model.Game, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreError(op, err)
	}
	defer rows.Close()

	games := []model.Game{}
	for rows.Next() {
		var g model.Game
		if err := scanGame(rows, &g); err != nil {
			return nil, wrapStoreError(op, err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(op, err)
	}
	return games, nil
}

// Upsert はslugをキーにゲームを登録または更新する。
// 新規登録の場合trueを返し、game.IDとgame.CreatedAtを保存済みの値で更新する。
func (r *PostgresGameRepo) Upsert(ctx context.Context, game *model.Game) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	platform, err := json.Marshal(game.Platform)
	if err != nil {
		return false, errors.Wrap(err, "encode platform")
	}
	if game.ID == "" {
		game.ID = uuid.New().String()
	}
	if game.CreatedAt.IsZero() {
		game.CreatedAt = time.Now()
	}

	var inserted bool
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO games (id, name, slug, summary, url, platform, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (slug) DO UPDATE SET
		     name = EXCLUDED.name,
		     summary = EXCLUDED.summary,
		     url = EXCLUDED.url,
		     platform = EXCLUDED.platform
		 RETURNING id, created_at, (xmax = 0) AS inserted`,
		game.ID, game.Name, game.Slug, game.Summary, game.URL, platform, game.CreatedAt,
	).Scan(&game.ID, &game.CreatedAt, &inserted)
	if err != nil {
		return false, wrapStoreError("upsert game", err)
	}
	return inserted, nil
}

// compile-time interface check
var _ GameRepository = (*PostgresGameRepo)(nil)
