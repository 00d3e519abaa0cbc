package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/gameshelf/internal/model"
	"github.com/hitoshi/gameshelf/internal/security"
)

func makeGames(n int) []model.Game {
	games := make([]model.Game, n)
	for i := range games {
		games[i] = model.Game{
			ID:       fmt.Sprintf("id-%02d", i),
			Name:     fmt.Sprintf("Game %02d", i),
			Slug:     fmt.Sprintf("game-%02d", i),
			Platform: model.Platform{Name: "PC", Slug: "pc"},
		}
	}
	return games
}

func newTestService(repo *fakeGameRepo) *Service {
	return NewService(repo, security.NewContentSanitizer())
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{"1", 1, false},
		{"3", 3, false},
		{" 2 ", 2, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"1.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			got, err := ParsePage(tt.raw)
			if tt.wantErr {
				var appErr *model.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, model.ErrCodeInvalidPage, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListGames_FirstPage(t *testing.T) {
	repo := &fakeGameRepo{games: makeGames(25)}
	svc := newTestService(repo)

	page, err := svc.ListGames(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 0, repo.lastOffset)
	assert.Equal(t, PageSize+1, repo.lastLimit)
	require.Len(t, page.Games, 10)
	assert.Equal(t, "game-00", page.Games[0].Slug)
	assert.Equal(t, "game-09", page.Games[9].Slug)
	assert.False(t, page.HasPrev)
	assert.True(t, page.HasNext)
}

func TestListGames_SecondPage(t *testing.T) {
	repo := &fakeGameRepo{games: makeGames(25)}
	svc := newTestService(repo)

	page, err := svc.ListGames(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 10, repo.lastOffset)
	require.Len(t, page.Games, 10)
	assert.Equal(t, "game-10", page.Games[0].Slug)
	assert.Equal(t, "game-19", page.Games[9].Slug)
	assert.True(t, page.HasPrev)
	assert.True(t, page.HasNext)
}

func TestListGames_LastPartialPage(t *testing.T) {
	svc := newTestService(&fakeGameRepo{games: makeGames(25)})

	page, err := svc.ListGames(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, page.Games, 5)
	assert.False(t, page.HasNext)
}

func TestListGames_BeyondLastPage_ReturnsEmpty(t *testing.T) {
	svc := newTestService(&fakeGameRepo{games: makeGames(25)})

	page, err := svc.ListGames(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, page.Games)
	assert.False(t, page.HasNext)
}

func TestListGames_ExactlyOnePage_HasNoNext(t *testing.T) {
	svc := newTestService(&fakeGameRepo{games: makeGames(10)})

	page, err := svc.ListGames(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, page.Games, 10)
	assert.False(t, page.HasNext)
}

func TestListGames_NonPositivePage_IsInvalid(t *testing.T) {
	repo := &fakeGameRepo{games: makeGames(3)}
	svc := newTestService(repo)

	_, err := svc.ListGames(context.Background(), 0)
	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, model.ErrCodeInvalidPage, appErr.Code)
	assert.Zero(t, repo.lastLimit, "store must not be queried")
}

func TestListGames_StoreError(t *testing.T) {
	svc := newTestService(&fakeGameRepo{err: model.ErrStoreUnavailable})

	_, err := svc.ListGames(context.Background(), 1)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestGetGame_Found_SanitizesSummaryAndLinks(t *testing.T) {
	repo := &fakeGameRepo{games: []model.Game{{
		ID:      "g-1",
		Name:    "Celeste",
		Slug:    "celeste",
		Summary: `<p>climb</p><script>alert(1)</script>`,
		URL:     "javascript:alert(1)",
		Platform: model.Platform{
			Name: "PC", Slug: "pc",
			Logo: "https://cdn.example.com/pc.png",
		},
	}}}
	svc := newTestService(repo)

	game, err := svc.GetGame(context.Background(), "celeste")
	require.NoError(t, err)

	assert.Equal(t, "Celeste", game.Name)
	assert.Contains(t, game.Summary, "<p>climb</p>")
	assert.NotContains(t, game.Summary, "script")
	assert.Empty(t, game.URL)
	assert.Equal(t, "https://cdn.example.com/pc.png", game.Platform.Logo)
}

func TestGetGame_UnknownSlug_IsNotFound(t *testing.T) {
	svc := newTestService(&fakeGameRepo{games: makeGames(3)})

	game, err := svc.GetGame(context.Background(), "no-such-game")
	assert.Nil(t, game)

	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, model.ErrCodeGameNotFound, appErr.Code)
	assert.True(t, model.IsNotFound(err))
}

func TestDistinctPlatforms_FiveGamesTwoPlatforms(t *testing.T) {
	switchP := model.Platform{Name: "Nintendo Switch", Slug: "nintendo-switch"}
	pc := model.Platform{Name: "PC", Slug: "pc"}
	games := []model.Game{
		{Slug: "a", Platform: switchP},
		{Slug: "b", Platform: pc},
		{Slug: "c", Platform: switchP},
		{Slug: "d", Platform: pc},
		{Slug: "e", Platform: switchP},
	}

	got := DistinctPlatforms(games)
	require.Len(t, got, 2)
	assert.Equal(t, "Nintendo Switch", got[0].Name)
	assert.Equal(t, "PC", got[1].Name)
}

func TestDistinctPlatforms_FirstSeenWins(t *testing.T) {
	games := []model.Game{
		{Platform: model.Platform{Name: "PC", Slug: "pc", Logo: "https://a.example/first.png"}},
		{Platform: model.Platform{Name: "PC", Slug: "pc", Logo: "https://a.example/second.png"}},
	}

	got := DistinctPlatforms(games)
	require.Len(t, got, 1)
	assert.Equal(t, "https://a.example/first.png", got[0].Logo)
}

func TestDistinctPlatforms_EmptyAndUnnamed(t *testing.T) {
	assert.Empty(t, DistinctPlatforms(nil))
	assert.Empty(t, DistinctPlatforms([]model.Game{{Slug: "x"}}))
}

func TestListPlatforms(t *testing.T) {
	repo := &fakeGameRepo{games: []model.Game{
		{Slug: "a", Platform: model.Platform{Name: "PC", Slug: "pc"}},
		{Slug: "b", Platform: model.Platform{Name: "PlayStation 5", Slug: "playstation-5"}},
		{Slug: "c", Platform: model.Platform{Name: "PC", Slug: "pc"}},
	}}

	platforms, err := newTestService(repo).ListPlatforms(context.Background())
	require.NoError(t, err)
	assert.Len(t, platforms, 2)
}

func TestListGamesByPlatform_ExactSlug(t *testing.T) {
	repo := &fakeGameRepo{games: []model.Game{
		{Name: "Sonic", Slug: "sonic", Platform: model.Platform{Name: "Sega Mega Drive", Slug: "sega-mega-drive"}},
		{Name: "Streets of Rage", Slug: "sor", Platform: model.Platform{Name: "Sega Mega Drive", Slug: "sega-mega-drive"}},
		{Name: "Hades", Slug: "hades", Platform: model.Platform{Name: "PC", Slug: "pc"}},
	}}

	platform, games, err := newTestService(repo).ListGamesByPlatform(context.Background(), "sega-mega-drive")
	require.NoError(t, err)
	assert.Equal(t, "Sega Mega Drive", platform.Name)
	require.Len(t, games, 2)
	assert.Equal(t, "sonic", games[0].Slug)
}

func TestListGamesByPlatform_Unknown_IsNotFound(t *testing.T) {
	_, _, err := newTestService(&fakeGameRepo{games: makeGames(2)}).ListGamesByPlatform(context.Background(), "sega")

	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, model.ErrCodePlatformNotFound, appErr.Code)
}
