// Package basket はログインユーザーのバスケット操作を提供する。
package basket

import (
	"context"
	"log/slog"

	"github.com/go-faster/errors"

	"github.com/hitoshi/gameshelf/internal/model"
	"github.com/hitoshi/gameshelf/internal/repository"
)

// AdditionRecorder はバスケット追加を記録するメトリクスのインターフェース。
type AdditionRecorder interface {
	RecordBasketAddition()
}

// Service はバスケットのビジネスロジックを提供する。
type Service struct {
	games   repository.GameRepository
	entries repository.BasketRepository
	metrics AdditionRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(games repository.GameRepository, entries repository.BasketRepository, metrics AdditionRecorder) *Service {
	return &Service{games: games, entries: entries, metrics: metrics}
}

// Add はslugのゲームをidentityのバスケットに1件追加する。
// 匿名の場合は model.ErrUnauthenticated を返し、何も書き込まない。
func (s *Service) Add(ctx context.Context, identity *model.Identity, slug string) (*model.BasketEntry, *model.Game, error) {
	if identity == nil || identity.UserTokenID == "" {
		return nil, nil, model.ErrUnauthenticated
	}

	game, err := s.games.FindBySlug(ctx, slug)
	if err != nil {
		return nil, nil, errors.Wrap(err, "find game")
	}
	if game == nil {
		return nil, nil, model.NewGameNotFoundError(slug)
	}

	entry := &model.BasketEntry{
		GameID:      game.ID,
		UserTokenID: identity.UserTokenID,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, nil, errors.Wrap(err, "create basket entry")
	}

	if s.metrics != nil {
		s.metrics.RecordBasketAddition()
	}
	slog.Info("game added to basket",
		slog.String("slug", slug),
		slog.String("subject", identity.Subject),
	)
	return entry, game, nil
}

// View はidentityのバスケットを新しい順に返す。他のユーザーのエントリは含まない。
func (s *Service) View(ctx context.Context, identity *model.Identity) ([]model.BasketItem, error) {
	if identity == nil || identity.UserTokenID == "" {
		return nil, model.ErrUnauthenticated
	}

	items, err := s.entries.ListByUserToken(ctx, identity.UserTokenID)
	if err != nil {
		return nil, errors.Wrap(err, "list basket")
	}
	return items, nil
}

// Clear は全ユーザーのバスケットを空にする。権限チェックは呼び出し側で行う。
func (s *Service) Clear(ctx context.Context) error {
	if err := s.entries.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear basket")
	}
	slog.Warn("basket cleared")
	return nil
}
