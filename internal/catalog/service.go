// Package catalog はゲームカタログの参照とインポートを提供する。
package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/hitoshi/gameshelf/internal/model"
	"github.com/hitoshi/gameshelf/internal/repository"
	"github.com/hitoshi/gameshelf/internal/security"
)

// PageSize は一覧1ページあたりのゲーム数。
const PageSize = 10

// Service はカタログの参照ロジックを提供する。
type Service struct {
	games     repository.GameRepository
	sanitizer security.ContentSanitizer
}

// NewService はServiceを生成する。
func NewService(games repository.GameRepository, sanitizer security.ContentSanitizer) *Service {
	return &Service{games: games, sanitizer: sanitizer}
}

// ParsePage はクエリパラメータのページ番号を解釈する。
// 空文字列は1ページ目、整数でない値や1未満はINVALID_PAGEエラーとなる。
func ParsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, model.NewInvalidPageError(raw)
	}
	return page, nil
}

// ListGames は名前順に並べたゲームのpageページ目を返す。
// 最終ページを超えた場合は空の一覧を返す。
func (s *Service) ListGames(ctx context.Context, page int) (*model.GamePage, error) {
	if page < 1 {
		return nil, model.NewInvalidPageError(strconv.Itoa(page))
	}

	// 次ページの有無を判定するため1件多く取得する
	games, err := s.games.List(ctx, (page-1)*PageSize, PageSize+1)
	if err != nil {
		return nil, errors.Wrap(err, "list games")
	}

	hasNext := len(games) > PageSize
	if hasNext {
		games = games[:PageSize]
	}

	return &model.GamePage{
		Games:   s.presentAll(games),
		Page:    page,
		HasPrev: page > 1,
		HasNext: hasNext,
	}, nil
}

// GetGame はslugに一致するゲームを返す。存在しない場合はGAME_NOT_FOUNDエラーとなる。
func (s *Service) GetGame(ctx context.Context, slug string) (*model.Game, error) {
	game, err := s.games.FindBySlug(ctx, slug)
	if err != nil {
		return nil, errors.Wrap(err, "find game")
	}
	if game == nil {
		return nil, model.NewGameNotFoundError(slug)
	}
	s.present(game)
	return game, nil
}

// ListPlatforms は全ゲームのプラットフォームを名前で重複排除して返す。
func (s *Service) ListPlatforms(ctx context.Context) ([]model.Platform, error) {
	games, err := s.games.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list all games")
	}
	return DistinctPlatforms(s.presentAll(games)), nil
}

// DistinctPlatforms はゲームの埋め込みプラットフォームを名前で重複排除する。
// 同名のものは最初に現れたものを採用し、出現順を保つ。
func DistinctPlatforms(games []model.Game) []model.Platform {
	seen := make(map[string]struct{}, len(games))
	platforms := make([]model.Platform, 0)
	for _, g := range games {
		if g.Platform.Name == "" {
			continue
		}
		if _, ok := seen[g.Platform.Name]; ok {
			continue
		}
		seen[g.Platform.Name] = struct{}{}
		platforms = append(platforms, g.Platform)
	}
	return platforms
}

// ListGamesByPlatform はプラットフォームslugが完全一致するゲームを返す。
// 該当するゲームがない場合はPLATFORM_NOT_FOUNDエラーとなる。
func (s *Service) ListGamesByPlatform(ctx context.Context, platformSlug string) (*model.Platform, []model.Game, error) {
	games, err := s.games.ListByPlatformSlug(ctx, platformSlug)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list games by platform")
	}
	if len(games) == 0 {
		return nil, nil, model.NewPlatformNotFoundError(platformSlug)
	}

	games = s.presentAll(games)
	platform := games[0].Platform
	return &platform, games, nil
}

// present は表示用に概要をサニタイズし、不正なリンクを空にする。
func (s *Service) present(g *model.Game) {
	if s.sanitizer != nil {
		g.Summary = s.sanitizer.Sanitize(g.Summary)
	}
	g.URL = security.SafeLink(g.URL)
	g.Platform.URL = security.SafeLink(g.Platform.URL)
	g.Platform.Logo = security.SafeLink(g.Platform.Logo)
}

func (s *Service) presentAll(games []model.Game) []model.Game {
	for i := range games {
		s.present(&games[i])
	}
	return games
}
