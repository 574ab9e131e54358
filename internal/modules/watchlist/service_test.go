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
	"github.com/avramidis/tickernav/internal/events"
	"github.com/avramidis/tickernav/internal/modules/ticker"
)

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

func setupService(t *testing.T) (*Service, *events.Bus) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(watchlistTestSchema)
	require.NoError(t, err)

	clock := stubClock{now: time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)}
	bus := events.NewBus(zerolog.Nop())
	repo := NewRepository(db, zerolog.Nop())
	normalizer := ticker.NewNormalizer(clock, zerolog.Nop())

	return NewService(repo, normalizer, bus, clock, zerolog.Nop()), bus
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "tech-picks", Slugify("Tech Picks"))
	assert.Equal(t, "my-etfs-2024", Slugify("  My ETFs, 2024!  "))
	assert.Equal(t, "abc", Slugify("abc"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestServiceCreateAndGet(t *testing.T) {
	svc, _ := setupService(t)

	wl, err := svc.Create("Tech Picks")
	require.NoError(t, err)
	assert.NotEmpty(t, wl.ID)
	assert.Equal(t, "tech-picks", wl.Slug)
	assert.Empty(t, wl.Items)

	byID, err := svc.Get(wl.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, wl.ID, byID.ID)

	bySlug, err := svc.Get("tech-picks")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, wl.ID, bySlug.ID)
}

func TestServiceCreateDuplicateSlug(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create("Tech Picks")
	require.NoError(t, err)

	_, err = svc.Create("tech picks")
	assert.Error(t, err)
}

func TestServiceCreateEmptySlug(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create("???")
	assert.Error(t, err)
}

func TestServiceRename(t *testing.T) {
	svc, bus := setupService(t)

	var actions []string
	bus.Subscribe(events.WatchlistChanged, func(e *events.Event) {
		actions = append(actions, e.Data["action"].(string))
	})

	wl, err := svc.Create("Old Name")
	require.NoError(t, err)

	renamed, err := svc.Rename(wl.ID, "New Name")
	require.NoError(t, err)
	assert.Equal(t, "New Name", renamed.Name)
	assert.Equal(t, "new-name", renamed.Slug)
	assert.Equal(t, []string{"created", "renamed"}, actions)
}

func TestServiceRenameSlugCollision(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create("First")
	require.NoError(t, err)
	second, err := svc.Create("Second")
	require.NoError(t, err)

	_, err = svc.Rename(second.ID, "first")
	assert.Error(t, err)
}

func TestServiceDelete(t *testing.T) {
	svc, _ := setupService(t)

	wl, err := svc.Create("Doomed")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(wl.ID))

	got, err := svc.Get(wl.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = svc.Delete(wl.ID)
	assert.Error(t, err)
}

func TestServiceAddTickerNormalizes(t *testing.T) {
	svc, _ := setupService(t)

	wl, err := svc.Create("Picks")
	require.NoError(t, err)

	pos, warnings, err := svc.AddTicker(wl.ID, map[string]interface{}{
		"symbol":   "aapl",
		"buyPrice": 150.0,
		"buyDate":  "2024-01-15",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "AAPL", pos.Symbol)

	got, err := svc.Get(wl.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "AAPL", got.Items[0].Symbol)
}

func TestServiceAddTickerReplacesKeepingAddedAt(t *testing.T) {
	svc, _ := setupService(t)

	wl, err := svc.Create("Picks")
	require.NoError(t, err)

	first, _, err := svc.AddTicker(wl.ID, map[string]interface{}{
		"symbol":   "AAPL",
		"buyPrice": 150.0,
		"buyDate":  "2024-01-15",
		"addedAt":  "2024-02-01T00:00:00Z",
	})
	require.NoError(t, err)

	second, _, err := svc.AddTicker(wl.ID, map[string]interface{}{
		"symbol":   "AAPL",
		"buyPrice": 160.0,
		"buyDate":  "2024-02-15",
	})
	require.NoError(t, err)
	assert.Equal(t, 160.0, second.BuyPrice)
	assert.True(t, second.AddedAt.Equal(first.AddedAt))

	got, err := svc.Get(wl.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 160.0, got.Items[0].BuyPrice)
}

func TestServiceAddTickerSurfacesWarnings(t *testing.T) {
	svc, _ := setupService(t)

	wl, err := svc.Create("Picks")
	require.NoError(t, err)

	pos, warnings, err := svc.AddTicker(wl.ID, map[string]interface{}{
		"symbol":   "MSFT",
		"buyPrice": "not-a-number",
	})
	require.NoError(t, err)
	assert.True(t, pos.Incomplete)
	assert.NotEmpty(t, warnings)
}

func TestServiceRemoveTicker(t *testing.T) {
	svc, bus := setupService(t)

	removedSymbols := []string{}
	bus.Subscribe(events.TickerRemoved, func(e *events.Event) {
		removedSymbols = append(removedSymbols, e.Data["symbol"].(string))
	})

	wl, err := svc.Create("Picks")
	require.NoError(t, err)

	_, _, err = svc.AddTicker(wl.ID, map[string]interface{}{"symbol": "AAPL", "buyPrice": 150.0, "buyDate": "2024-01-15"})
	require.NoError(t, err)
	_, _, err = svc.AddTicker(wl.ID, map[string]interface{}{"symbol": "MSFT", "buyPrice": 400.0, "buyDate": "2024-01-15"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveTicker(wl.ID, "AAPL"))

	got, err := svc.Get(wl.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "MSFT", got.Items[0].Symbol)
	assert.Equal(t, []string{"AAPL"}, removedSymbols)

	// Removing a missing symbol is a quiet no-op.
	require.NoError(t, svc.RemoveTicker(wl.ID, "AAPL"))
	assert.Len(t, removedSymbols, 1)
}

func TestServiceUpdateItems(t *testing.T) {
	svc, _ := setupService(t)

	wl, err := svc.Create("Picks")
	require.NoError(t, err)

	items := []domain.TickerPosition{
		{Symbol: "VTI", BuyPrice: 250, BuyDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Type: domain.TickerTypeReal},
	}
	require.NoError(t, svc.UpdateItems(wl.ID, items))

	got, err := svc.Get(wl.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "VTI", got.Items[0].Symbol)
}
