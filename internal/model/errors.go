package model

import (
	"fmt"

	"github.com/go-faster/errors"
)

// 分類しにくい失敗を表すセンチネルエラー。
// 呼び出し側は errors.Is で判定する。
var (
	// ErrUnauthenticated は有効なセッションがないことを示す。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUpstreamFailure はIdPへのHTTP呼び出しが失敗したことを示す。
	ErrUpstreamFailure = errors.New("identity provider request failed")
	// ErrStoreUnavailable はデータストアへの接続またはクエリが失敗したことを示す。
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError は画面に表示するエラーの統一フォーマットを表す。
// 原因カテゴリと対処方法を含む。
type AppError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: catalog, validation, auth, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeGameNotFound     = "GAME_NOT_FOUND"
	ErrCodePlatformNotFound = "PLATFORM_NOT_FOUND"
	ErrCodeInvalidPage      = "INVALID_PAGE"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// NewGameNotFoundError はゲーム未検出エラーを生成する。
func NewGameNotFoundError(slug string) *AppError {
	return &AppError{
		Code:     ErrCodeGameNotFound,
		Message:  fmt.Sprintf("指定されたゲームが見つかりません: %s", slug),
		Category: "catalog",
		Action:   "ゲーム一覧から選び直してください。",
	}
}

// NewPlatformNotFoundError はプラットフォーム未検出エラーを生成する。
func NewPlatformNotFoundError(slug string) *AppError {
	return &AppError{
		Code:     ErrCodePlatformNotFound,
		Message:  fmt.Sprintf("指定されたプラットフォームのゲームが見つかりません: %s", slug),
		Category: "catalog",
		Action:   "プラットフォーム一覧から選び直してください。",
	}
}

// NewInvalidPageError は無効なページ番号エラーを生成する。
func NewInvalidPageError(raw string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %s", raw),
		Category: "validation",
		Action:   "ページ番号には1以上の整数を指定してください。",
	}
}

// NewInvalidRequestError は不正なリクエストエラーを生成する。
func NewInvalidRequestError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("不正なリクエストです: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *AppError {
	return &AppError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewStoreUnavailableError はデータストア障害のエラーを生成する。
func NewStoreUnavailableError() *AppError {
	return &AppError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "現在データを取得できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、画面には一般的なメッセージを表示する。
func NewInternalError() *AppError {
	return &AppError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// IsNotFound はエラーがゲームまたはプラットフォームの未検出を表すかを判定する。
func IsNotFound(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == ErrCodeGameNotFound || appErr.Code == ErrCodePlatformNotFound
}
