// Package model はドメインモデルを定義する。
package model

import "time"

// Platform はゲームが動作するプラットフォームを表す。
// Gameの埋め込みサブドキュメントとして保存される（games.platform JSONB）。
type Platform struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,max=100"`
	Logo string `json:"logo" validate:"omitempty,url"`
	URL  string `json:"url" validate:"omitempty,url"`
}

// Game はカタログに登録されたゲームを表す。
// Slugは一意であり、URLで参照可能な唯一の識別子。
type Game struct {
	ID        string
	Name      string
	Slug      string
	Summary   string // HTML。カタログ層で表示前にサニタイズする
	URL       string
	Platform  Platform
	CreatedAt time.Time
}

// GamePage はページネーションされたゲーム一覧を表す。
type GamePage struct {
	Games   []Game
	Page    int
	HasPrev bool
	HasNext bool
}
