package alphavantage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/tickernav/internal/clientdata"
	"github.com/avramidis/tickernav/internal/domain"
)

const providerTestSchema = `
CREATE TABLE quotes (symbol TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE daily_history (symbol TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
`

type fakeAPIClient struct {
	quote      *GlobalQuote
	quoteErr   error
	history    []DailyPrice
	historyErr error
	calls      int
}

func (f *fakeAPIClient) GetQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	f.calls++
	return f.quote, f.quoteErr
}

func (f *fakeAPIClient) GetDailyHistory(ctx context.Context, symbol string, full bool) ([]DailyPrice, error) {
	f.calls++
	return f.history, f.historyErr
}

func (f *fakeAPIClient) SearchSymbol(ctx context.Context, keywords string) ([]SymbolMatch, error) {
	return nil, nil
}

func (f *fakeAPIClient) GetRemainingRequests() int { return 25 }
func (f *fakeAPIClient) ResetDailyCounter()        {}

func setupProvider(t *testing.T, api ClientInterface) (*Provider, *clientdata.Repository) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(providerTestSchema)
	require.NoError(t, err)

	cache := clientdata.NewRepository(db)
	return NewProvider(api, cache, zerolog.Nop()), cache
}

func TestProviderFetchQuote(t *testing.T) {
	api := &fakeAPIClient{
		quote: &GlobalQuote{
			Symbol:           "AAPL",
			Price:            187.42,
			LatestTradingDay: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		},
	}
	provider, _ := setupProvider(t, api)

	point, err := provider.FetchQuote("AAPL")
	require.NoError(t, err)
	require.NotNil(t, point)
	assert.Equal(t, 187.42, point.Price)
	assert.Equal(t, 8, point.Timestamp.Day())
}

func TestProviderFetchQuoteUsesCache(t *testing.T) {
	api := &fakeAPIClient{
		quote: &GlobalQuote{Symbol: "AAPL", Price: 187.42},
	}
	provider, _ := setupProvider(t, api)

	_, err := provider.FetchQuote("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)

	// Second fetch is served from the persistent cache.
	point, err := provider.FetchQuote("AAPL")
	require.NoError(t, err)
	require.NotNil(t, point)
	assert.Equal(t, 1, api.calls)
}

func TestProviderFetchQuoteRateLimitedNoCache(t *testing.T) {
	api := &fakeAPIClient{quoteErr: ErrRateLimitExceeded{}}
	provider, _ := setupProvider(t, api)

	point, err := provider.FetchQuote("AAPL")
	require.NoError(t, err)
	assert.Nil(t, point)
}

func TestProviderFetchQuoteRateLimitedStaleFallback(t *testing.T) {
	api := &fakeAPIClient{quoteErr: ErrRateLimitExceeded{}}
	provider, cache := setupProvider(t, api)

	stale := domain.PricePoint{
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Price:     180.0,
	}
	require.NoError(t, cache.Store("quotes", "AAPL", stale, -time.Hour))

	point, err := provider.FetchQuote("AAPL")
	require.NoError(t, err)
	require.NotNil(t, point)
	assert.Equal(t, 180.0, point.Price)
}

func TestProviderFetchQuoteSymbolNotFound(t *testing.T) {
	api := &fakeAPIClient{quoteErr: ErrSymbolNotFound{Symbol: "XYZ"}}
	provider, _ := setupProvider(t, api)

	point, err := provider.FetchQuote("XYZ")
	require.NoError(t, err)
	assert.Nil(t, point)
}

func TestProviderFetchHistoryOldestFirst(t *testing.T) {
	api := &fakeAPIClient{
		history: []DailyPrice{
			{Date: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), Close: 187.42},
			{Date: time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), Close: 185.10},
			{Date: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), Close: 0}, // dropped
		},
	}
	provider, _ := setupProvider(t, api)

	points, err := provider.FetchHistory("AAPL")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 185.10, points[0].Price)
	assert.Equal(t, 187.42, points[1].Price)
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
}

func TestProviderFetchHistoryRateLimitedNoCache(t *testing.T) {
	api := &fakeAPIClient{historyErr: ErrRateLimitExceeded{}}
	provider, _ := setupProvider(t, api)

	points, err := provider.FetchHistory("AAPL")
	require.NoError(t, err)
	assert.Nil(t, points)
}

func TestProviderImplementsQuoteProvider(t *testing.T) {
	var _ domain.QuoteProvider = (*Provider)(nil)
}
