package refresh

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/avramidis/tickernav/internal/events"
)

type fakeProvider struct {
	quotes    map[string]*domain.PricePoint
	histories map[string][]domain.PricePoint
	quoteErr  error
}

func (p *fakeProvider) FetchQuote(symbol string) (*domain.PricePoint, error) {
	if p.quoteErr != nil {
		return nil, p.quoteErr
	}
	return p.quotes[symbol], nil
}

func (p *fakeProvider) FetchHistory(symbol string) ([]domain.PricePoint, error) {
	return p.histories[symbol], nil
}

type fakeWatchlists struct {
	lists map[string]*domain.Watchlist
	saved map[string][]domain.TickerPosition
}

func newFakeWatchlists(lists ...*domain.Watchlist) *fakeWatchlists {
	m := make(map[string]*domain.Watchlist)
	for _, wl := range lists {
		m[wl.ID] = wl
	}
	return &fakeWatchlists{lists: m, saved: make(map[string][]domain.TickerPosition)}
}

func (f *fakeWatchlists) List() ([]*domain.Watchlist, error) {
	result := make([]*domain.Watchlist, 0, len(f.lists))
	for _, wl := range f.lists {
		result = append(result, wl)
	}
	return result, nil
}

func (f *fakeWatchlists) Get(idOrSlug string) (*domain.Watchlist, error) {
	return f.lists[idOrSlug], nil
}

func (f *fakeWatchlists) UpdateItems(id string, items []domain.TickerPosition) error {
	f.saved[id] = items
	return nil
}

type queuedCall struct {
	watchlistID string
	immediate   bool
	source      domain.NAVSource
}

type fakeQueue struct {
	calls []queuedCall
}

func (q *fakeQueue) Queue(id string, items []domain.TickerPosition, tf domain.Timeframe) {
	q.calls = append(q.calls, queuedCall{watchlistID: id})
}

func (q *fakeQueue) TriggerImmediate(id string, items []domain.TickerPosition, tf domain.Timeframe, source domain.NAVSource) {
	q.calls = append(q.calls, queuedCall{watchlistID: id, immediate: true, source: source})
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func testWatchlist() *domain.Watchlist {
	return &domain.Watchlist{
		ID:   "wl-1",
		Name: "Picks",
		Slug: "picks",
		Items: []domain.TickerPosition{
			{
				Symbol:   "AAPL",
				BuyPrice: 150,
				BuyDate:  day(1),
				Type:     domain.TickerTypeReal,
				HistoricalData: []domain.PricePoint{
					{Timestamp: day(1), Price: 150},
					{Timestamp: day(2), Price: 152},
				},
			},
		},
	}
}

func newService(provider *fakeProvider, wls *fakeWatchlists, queue *fakeQueue) *Service {
	bus := events.NewBus(zerolog.Nop())
	return NewService(provider, wls, queue, bus, zerolog.Nop())
}

func TestRefreshMergesQuoteAndHistory(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]*domain.PricePoint{
			"AAPL": {Timestamp: day(8), Price: 187.42},
		},
		histories: map[string][]domain.PricePoint{
			"AAPL": {
				{Timestamp: day(2), Price: 153}, // incoming wins over existing day 2
				{Timestamp: day(3), Price: 155},
			},
		},
	}
	wls := newFakeWatchlists(testWatchlist())
	queue := &fakeQueue{}
	svc := newService(provider, wls, queue)

	require.NoError(t, svc.RefreshAll())

	saved := wls.saved["wl-1"]
	require.Len(t, saved, 1)
	item := saved[0]

	require.NotNil(t, item.CurrentPrice)
	assert.Equal(t, 187.42, *item.CurrentPrice)

	// day 1 kept, day 2 replaced, day 3 added, day 8 from the quote
	require.Len(t, item.HistoricalData, 4)
	assert.Equal(t, 150.0, item.HistoricalData[0].Price)
	assert.Equal(t, 153.0, item.HistoricalData[1].Price)
	assert.Equal(t, 155.0, item.HistoricalData[2].Price)
	assert.Equal(t, 187.42, item.HistoricalData[3].Price)
}

func TestRefreshFiltersHistoryBeforeBuyDate(t *testing.T) {
	wl := testWatchlist()
	wl.Items[0].BuyDate = day(3)
	provider := &fakeProvider{
		histories: map[string][]domain.PricePoint{
			"AAPL": {
				{Timestamp: day(2), Price: 153},
				{Timestamp: day(4), Price: 156},
			},
		},
	}
	wls := newFakeWatchlists(wl)
	svc := newService(provider, wls, &fakeQueue{})

	require.NoError(t, svc.RefreshAll())

	saved := wls.saved["wl-1"]
	require.Len(t, saved, 1)
	for _, p := range saved[0].HistoricalData {
		assert.False(t, p.Timestamp.Before(day(3)), "point before buy date survived: %v", p.Timestamp)
	}
}

func TestRefreshQueuesForAlignedComputation(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]*domain.PricePoint{"AAPL": {Timestamp: day(8), Price: 187}},
	}
	queue := &fakeQueue{}
	svc := newService(provider, newFakeWatchlists(testWatchlist()), queue)

	require.NoError(t, svc.RefreshAll())

	require.Len(t, queue.calls, 1)
	assert.Equal(t, "wl-1", queue.calls[0].watchlistID)
	assert.False(t, queue.calls[0].immediate)
}

func TestRefreshWatchlistImmediate(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]*domain.PricePoint{"AAPL": {Timestamp: day(8), Price: 187}},
	}
	queue := &fakeQueue{}
	svc := newService(provider, newFakeWatchlists(testWatchlist()), queue)

	require.NoError(t, svc.RefreshWatchlist("wl-1", true))

	require.Len(t, queue.calls, 1)
	assert.True(t, queue.calls[0].immediate)
	assert.Equal(t, domain.NAVSourceManual, queue.calls[0].source)
}

func TestRefreshWatchlistNotFound(t *testing.T) {
	svc := newService(&fakeProvider{}, newFakeWatchlists(), &fakeQueue{})
	assert.Error(t, svc.RefreshWatchlist("missing", false))
}

func TestRefreshSkipsSyntheticTickers(t *testing.T) {
	wl := testWatchlist()
	wl.Items[0].Type = domain.TickerTypeSynthetic
	provider := &fakeProvider{
		quotes: map[string]*domain.PricePoint{"AAPL": {Timestamp: day(8), Price: 187}},
	}
	wls := newFakeWatchlists(wl)
	svc := newService(provider, wls, &fakeQueue{})

	require.NoError(t, svc.RefreshAll())

	// Nothing changed, so nothing was saved.
	_, saved := wls.saved["wl-1"]
	assert.False(t, saved)
}

func TestRefreshProviderErrorIsNonFatal(t *testing.T) {
	provider := &fakeProvider{quoteErr: errors.New("network down")}
	queue := &fakeQueue{}
	svc := newService(provider, newFakeWatchlists(testWatchlist()), queue)

	require.NoError(t, svc.RefreshAll())

	// Still queued with the existing data.
	require.Len(t, queue.calls, 1)
}

func TestRefreshEmitsPriceUpdated(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]*domain.PricePoint{"AAPL": {Timestamp: day(8), Price: 187}},
	}
	wls := newFakeWatchlists(testWatchlist())
	bus := events.NewBus(zerolog.Nop())

	var symbols []string
	bus.Subscribe(events.PriceUpdated, func(e *events.Event) {
		symbols = append(symbols, e.Data["symbol"].(string))
	})

	svc := NewService(provider, wls, &fakeQueue{}, bus, zerolog.Nop())
	require.NoError(t, svc.RefreshAll())

	assert.Equal(t, []string{"AAPL"}, symbols)
}

func TestJobName(t *testing.T) {
	job := NewJob(newService(&fakeProvider{}, newFakeWatchlists(), &fakeQueue{}))
	assert.Equal(t, "watchlist_refresh", job.Name())
	assert.NoError(t, job.Run())
}
