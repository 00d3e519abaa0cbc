package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gameshelf/internal/model"
)

// PostgresBasketRepo はPostgreSQLを使用したバスケットリポジトリ。
type PostgresBasketRepo struct {
	store
}

// NewPostgresBasketRepo はPostgresBasketRepoを生成する。
func NewPostgresBasketRepo(db *sql.DB, timeout time.Duration) *PostgresBasketRepo {
	return &PostgresBasketRepo{store: newStore(db, timeout)}
}

// Create はバスケットエントリを1件作成する。IDと作成日時は未設定なら補完する。
func (r *PostgresBasketRepo) Create(ctx context.Context, entry *model.BasketEntry) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO basket_entries (id, game_id, user_token_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.GameID, entry.UserTokenID, entry.CreatedAt,
	)
	if err != nil {
		return wrapStoreError("create basket entry", err)
	}
	return nil
}

// ListByUserToken は指定ユーザートークンのエントリをゲーム情報付きで新しい順に返す。
// 他のユーザートークンのエントリは含まれない。
func (r *PostgresBasketRepo) ListByUserToken(ctx context.Context, userTokenID string) ([]model.BasketItem, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.created_at,
		        g.id, g.name, g.slug, g.summary, g.url, g.platform, g.created_at
		 FROM basket_entries b
		 JOIN games g ON g.id = b.game_id
		 WHERE b.user_token_id = $1
		 ORDER BY b.created_at DESC`,
		userTokenID,
	)
	if err != nil {
		return nil, wrapStoreError("list basket entries", err)
	}
	defer rows.Close()

	items := []model.BasketItem{}
	for rows.Next() {
		var item model.BasketItem
		if err := scanGame(prefixedScanner{rows: rows, prefix: []any{&item.EntryID, &item.AddedAt}}, &item.Game); err != nil {
			return nil, wrapStoreError("list basket entries", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("list basket entries", err)
	}
	return items, nil
}

// Clear は全エントリを削除する。
func (r *PostgresBasketRepo) Clear(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE basket_entries`); err != nil {
		return wrapStoreError("clear basket", err)
	}
	return nil
}

// prefixedScanner はゲーム列の前に追加の列を読み込むためのrowScanner。
type prefixedScanner struct {
	rows   *sql.Rows
	prefix []any
}

func (p prefixedScanner) Scan(dest ...any) error {
	return p.rows.Scan(append(p.prefix, dest...)...)
}

// compile-time interface check
var _ BasketRepository = (*PostgresBasketRepo)(nil)
