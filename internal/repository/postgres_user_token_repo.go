package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gameshelf/internal/model"
)

// PostgresUserTokenRepo はPostgreSQLを使用したユーザートークンリポジトリ。
type PostgresUserTokenRepo struct {
	store
}

// NewPostgresUserTokenRepo はPostgresUserTokenRepoを生成する。
func NewPostgresUserTokenRepo(db *sql.DB, timeout time.Duration) *PostgresUserTokenRepo {
	return &PostgresUserTokenRepo{store: newStore(db, timeout)}
}

// Create はログインごとにIdPトークンを1件保存する。
func (r *PostgresUserTokenRepo) Create(ctx context.Context, token *model.UserToken) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_tokens (id, subject, name, email, id_token, access_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.Subject, token.Name, token.Email, token.IDToken, token.AccessToken, token.CreatedAt,
	)
	if err != nil {
		return wrapStoreError("create user token", err)
	}
	return nil
}

// compile-time interface check
var _ UserTokenRepository = (*PostgresUserTokenRepo)(nil)
