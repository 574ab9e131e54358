package watchlist

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/tickernav/internal/domain"
)

const watchlistTestSchema = `
CREATE TABLE watchlists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	items TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX idx_watchlists_slug ON watchlists(slug);
`

func setupRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(watchlistTestSchema)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop())
}

func testList(id, name, slug string) *domain.Watchlist {
	return &domain.Watchlist{
		ID:        id,
		Name:      name,
		Slug:      slug,
		Items:     []domain.TickerPosition{},
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRepositorySaveAndLoad(t *testing.T) {
	repo := setupRepo(t)

	wl := testList("id-1", "Tech Picks", "tech-picks")
	wl.Items = []domain.TickerPosition{
		{
			Symbol:   "AAPL",
			BuyPrice: 150,
			BuyDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Type:     domain.TickerTypeReal,
		},
	}

	require.NoError(t, repo.Save(map[string]*domain.Watchlist{wl.ID: wl}))

	all, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all["id-1"]
	require.NotNil(t, got)
	assert.Equal(t, "Tech Picks", got.Name)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "AAPL", got.Items[0].Symbol)
	assert.Equal(t, 150.0, got.Items[0].BuyPrice)
	assert.True(t, got.CreatedAt.Equal(wl.CreatedAt))
}

func TestRepositorySaveUpserts(t *testing.T) {
	repo := setupRepo(t)

	wl := testList("id-1", "Original", "original")
	require.NoError(t, repo.Save(map[string]*domain.Watchlist{wl.ID: wl}))

	wl.Name = "Renamed"
	wl.Slug = "renamed"
	require.NoError(t, repo.Save(map[string]*domain.Watchlist{wl.ID: wl}))

	got, err := repo.GetByID("id-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "renamed", got.Slug)
}

func TestRepositoryGetBySlug(t *testing.T) {
	repo := setupRepo(t)

	wl := testList("id-1", "Energy", "energy")
	require.NoError(t, repo.Save(map[string]*domain.Watchlist{wl.ID: wl}))

	got, err := repo.GetBySlug("energy")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "id-1", got.ID)

	missing, err := repo.GetBySlug("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryDelete(t *testing.T) {
	repo := setupRepo(t)

	wl := testList("id-1", "Doomed", "doomed")
	require.NoError(t, repo.Save(map[string]*domain.Watchlist{wl.ID: wl}))
	require.NoError(t, repo.Delete("id-1"))

	got, err := repo.GetByID("id-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, repo.Delete("id-1"))
}

func TestRepositoryNullItemsBecomesEmptySlice(t *testing.T) {
	repo := setupRepo(t)

	wl := testList("id-1", "Empty", "empty")
	wl.Items = nil
	require.NoError(t, repo.Save(map[string]*domain.Watchlist{wl.ID: wl}))

	got, err := repo.GetByID("id-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
}
