// Package repository はデータストアへのアクセスを提供する。
package repository

import (
	"context"

	"github.com/hitoshi/gameshelf/internal/model"
)

// GameRepository はカタログ（gamesテーブル）へのアクセスを定義する。
type GameRepository interface {
	// FindBySlug はslugに一致するゲームを取得する。見つからない場合はnil, nilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Game, error)
	// List は名前順でoffsetからlimit件のゲームを返す。
	List(ctx context.Context, offset, limit int) ([]model.Game, error)
	// ListAll は全ゲームを名前順で返す。
	ListAll(ctx context.Context) ([]model.Game, error)
	// ListByPlatformSlug はプラットフォームslugが完全一致するゲームを返す。
	ListByPlatformSlug(ctx context.Context, platformSlug string) ([]model.Game, error)
	// Upsert はslugをキーにゲームを登録または更新する。新規登録の場合trueを返す。
	Upsert(ctx context.Context, game *model.Game) (bool, error)
}

// BasketRepository はバスケットエントリへのアクセスを定義する。
type BasketRepository interface {
	Create(ctx context.Context, entry *model.BasketEntry) error
	// ListByUserToken は指定ユーザートークンのエントリをゲーム情報付きで新しい順に返す。
	ListByUserToken(ctx context.Context, userTokenID string) ([]model.BasketItem, error)
	// Clear は全エントリを削除する。
	Clear(ctx context.Context) error
}

// UserTokenRepository はIdPトークンの永続化を定義する。
type UserTokenRepository interface {
	Create(ctx context.Context, token *model.UserToken) error
}

// SessionRepository はサーバー側セッションへのアクセスを定義する。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindByID は有効期限内のセッションを取得する。見つからない場合はnil, nilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
