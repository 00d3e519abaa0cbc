// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションは expires_at を過ぎた時点で無効となるが、行はこのジョブが削除するまで残る。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule はジョブのデフォルト実行間隔（cron表記）。
const DefaultSchedule = "@every 1h"

// SessionPurger は期限切れセッションを削除するストア。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等な削除処理で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	logger   *slog.Logger
	Timeout  time.Duration // 1回の実行のタイムアウト
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		Timeout:  time.Minute,
	}
}

// Run は期限切れセッションを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return errors.Wrap(err, "purge expired sessions")
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Schedule はspecに従ってジョブを定期実行し、ctxがキャンセルされるまでブロックする。
// 起動直後に1回実行してからスケジュールに入る。
func (j *CleanupJob) Schedule(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_ = j.Run(ctx)
	}); err != nil {
		return errors.Wrapf(err, "invalid cleanup schedule %q", spec)
	}

	_ = j.Run(ctx)

	c.Start()
	j.logger.Info("セッションクリーンアップをスケジュールしました", slog.String("schedule", spec))

	<-ctx.Done()

	// 実行中のジョブの完了を待つ
	<-c.Stop().Done()
	return nil
}
