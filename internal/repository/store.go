package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/gameshelf/internal/model"
)

// DefaultStoreTimeout はストア呼び出し1回あたりのデフォルトのタイムアウト。
const DefaultStoreTimeout = 5 * time.Second

// store は各リポジトリが共有するDBハンドルとタイムアウト設定。
type store struct {
	db      *sql.DB
	timeout time.Duration
}

func newStore(db *sql.DB, timeout time.Duration) store {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return store{db: db, timeout: timeout}
}

// withTimeout はストア呼び出し用にタイムアウト付きのコンテキストを返す。
func (s store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// storeError はドライバのエラーやタイムアウトを ErrStoreUnavailable として包む。
// errors.Is で ErrStoreUnavailable と元のエラーの両方を判定できる。
type storeError struct {
	op  string
	err error
}

func wrapStoreError(op string, err error) error {
	return &storeError{op: op, err: err}
}

func (e *storeError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *storeError) Unwrap() []error {
	return []error{model.ErrStoreUnavailable, e.err}
}
