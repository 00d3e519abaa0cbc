package model

import "time"

// UserToken はログインコールバックで発行されたIdPのトークンを表す。
// ログインごとに1件作成され、サーバー側で更新・失効されることはない。
type UserToken struct {
	ID          string
	Subject     string
	Name        string
	Email       string
	IDToken     string
	AccessToken string
	CreatedAt   time.Time
}

// Session はユーザーのログインセッションを表す。
// SubjectとNameは検索時にuser_tokensから結合して設定される。
type Session struct {
	ID          string
	UserTokenID string
	Subject     string
	Name        string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Identity はリクエスト元の認証状態を表す。
// nilは匿名ユーザーを意味する。
type Identity struct {
	SessionID   string
	UserTokenID string
	Subject     string
	Name        string
}

// IdentityFromSession はセッションから認証済みIdentityを生成する。
func IdentityFromSession(s *Session) *Identity {
	if s == nil {
		return nil
	}
	return &Identity{
		SessionID:   s.ID,
		UserTokenID: s.UserTokenID,
		Subject:     s.Subject,
		Name:        s.Name,
	}
}
