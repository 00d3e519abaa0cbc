package model

import "time"

// BasketEntry はバスケットに追加されたゲームとユーザートークンの紐付けを表す。
type BasketEntry struct {
	ID          string
	GameID      string
	UserTokenID string
	CreatedAt   time.Time
}

// BasketItem はバスケット一覧表示用にゲーム情報を結合したエントリ。
type BasketItem struct {
	EntryID string
	Game    Game
	AddedAt time.Time
}
