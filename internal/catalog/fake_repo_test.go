package catalog

import (
	"context"
	"sort"

	"github.com/hitoshi/gameshelf/internal/model"
	"github.com/hitoshi/gameshelf/internal/repository"
)

// fakeGameRepo はメモリ上のGameRepository。名前、slugの順で並べて返す。
type fakeGameRepo struct {
	games []model.Game
	err   error

	lastOffset, lastLimit int
	upserted              []model.Game
}

func (f *fakeGameRepo) sorted() []model.Game {
	out := append([]model.Game(nil), f.games...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

func (f *fakeGameRepo) FindBySlug(_ context.Context, slug string) (*model.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, g := range f.games {
		if g.Slug == slug {
			g := g
			return &g, nil
		}
	}
	return nil, nil
}

func (f *fakeGameRepo) List(_ context.Context, offset, limit int) ([]model.Game, error) {
	f.lastOffset, f.lastLimit = offset, limit
	if f.err != nil {
		return nil, f.err
	}
	all := f.sorted()
	if offset >= len(all) {
		return []model.Game{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeGameRepo) ListAll(_ context.Context) ([]model.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Game(nil), f.games...), nil
}

func (f *fakeGameRepo) ListByPlatformSlug(_ context.Context, platformSlug string) ([]model.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Game{}
	for _, g := range f.sorted() {
		if g.Platform.Slug == platformSlug {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGameRepo) Upsert(_ context.Context, game *model.Game) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.upserted = append(f.upserted, *game)
	for i, g := range f.games {
		if g.Slug == game.Slug {
			f.games[i] = *game
			return false, nil
		}
	}
	f.games = append(f.games, *game)
	return true, nil
}

var _ repository.GameRepository = (*fakeGameRepo)(nil)
