package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"

	"github.com/hitoshi/gameshelf/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	store
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB, timeout time.Duration) *PostgresSessionRepo {
	return &PostgresSessionRepo{store: newStore(db, timeout)}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_token_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserTokenID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return wrapStoreError("create session", err)
	}
	return nil
}

// FindByID は指定IDのセッションをユーザートークンの属性付きで取得する。
// 期限切れまたは存在しない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.user_token_id, t.subject, t.name, s.expires_at, s.created_at
		 FROM sessions s
		 JOIN user_tokens t ON t.id = s.user_token_id
		 WHERE s.id = $1 AND s.expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UserTokenID, &session.Subject, &session.Name, &session.ExpiresAt, &session.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreError("find session", err)
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return wrapStoreError("delete session", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, wrapStoreError("delete expired sessions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, wrapStoreError("delete expired sessions", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
