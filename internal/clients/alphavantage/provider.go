package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/tickernav/internal/clientdata"
	"github.com/avramidis/tickernav/internal/domain"
)

// Provider adapts the Alpha Vantage client to the engine's QuoteProvider
// interface, with a persistent cache in front of the API. Reads are
// cache-first; when the daily budget is exhausted the provider falls back
// to stale cached data, and reports "no update" rather than an error when
// nothing at all is available.
type Provider struct {
	client ClientInterface
	cache  *clientdata.Repository
	log    zerolog.Logger
}

// NewProvider creates a new quote provider.
func NewProvider(client ClientInterface, cache *clientdata.Repository, log zerolog.Logger) *Provider {
	return &Provider{
		client: client,
		cache:  cache,
		log:    log.With().Str("component", "quote_provider").Logger(),
	}
}

// FetchQuote returns the latest price for a symbol.
// Returns nil, nil when no data is available anywhere.
func (p *Provider) FetchQuote(symbol string) (*domain.PricePoint, error) {
	if cached, err := p.cache.GetIfFresh("quotes", symbol); err == nil && cached != nil {
		if point := decodePoint(cached); point != nil {
			return point, nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	quote, err := p.client.GetQuote(ctx, symbol)
	if err != nil {
		return p.quoteFallback(symbol, err)
	}
	if quote.Price <= 0 {
		return nil, nil
	}

	point := &domain.PricePoint{
		Timestamp: quoteTimestamp(quote),
		Price:     quote.Price,
	}

	if err := p.cache.Store("quotes", symbol, point, clientdata.TTLQuote); err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
	}

	return point, nil
}

// FetchHistory returns daily price points for a symbol, oldest first.
// Returns an empty slice when no data is available anywhere.
func (p *Provider) FetchHistory(symbol string) ([]domain.PricePoint, error) {
	if cached, err := p.cache.GetIfFresh("daily_history", symbol); err == nil && cached != nil {
		if points := decodePoints(cached); points != nil {
			return points, nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	bars, err := p.client.GetDailyHistory(ctx, symbol, false)
	if err != nil {
		return p.historyFallback(symbol, err)
	}

	// API returns newest first; the engine wants oldest first.
	points := make([]domain.PricePoint, 0, len(bars))
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Close <= 0 {
			continue
		}
		points = append(points, domain.PricePoint{
			Timestamp: bars[i].Date,
			Price:     bars[i].Close,
		})
	}

	if err := p.cache.Store("daily_history", symbol, points, clientdata.TTLDailyHistory); err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache history")
	}

	return points, nil
}

// quoteFallback handles fetch errors: stale data beats no data, and a
// missing symbol is "no update" rather than a failure.
func (p *Provider) quoteFallback(symbol string, fetchErr error) (*domain.PricePoint, error) {
	var notFound ErrSymbolNotFound
	if errors.As(fetchErr, &notFound) {
		return nil, nil
	}

	stale, err := p.cache.Get("quotes", symbol)
	if err == nil && stale != nil {
		if point := decodePoint(stale); point != nil {
			p.log.Debug().Str("symbol", symbol).Msg("Serving stale quote after fetch failure")
			return point, nil
		}
	}

	if errors.As(fetchErr, &ErrRateLimitExceeded{}) {
		p.log.Warn().Str("symbol", symbol).Msg("Rate limited with no cached quote")
		return nil, nil
	}

	return nil, fetchErr
}

func (p *Provider) historyFallback(symbol string, fetchErr error) ([]domain.PricePoint, error) {
	var notFound ErrSymbolNotFound
	if errors.As(fetchErr, &notFound) {
		return nil, nil
	}

	stale, err := p.cache.Get("daily_history", symbol)
	if err == nil && stale != nil {
		if points := decodePoints(stale); points != nil {
			p.log.Debug().Str("symbol", symbol).Msg("Serving stale history after fetch failure")
			return points, nil
		}
	}

	if errors.As(fetchErr, &ErrRateLimitExceeded{}) {
		p.log.Warn().Str("symbol", symbol).Msg("Rate limited with no cached history")
		return nil, nil
	}

	return nil, fetchErr
}

func quoteTimestamp(q *GlobalQuote) time.Time {
	if !q.LatestTradingDay.IsZero() {
		return q.LatestTradingDay
	}
	return time.Now().UTC()
}

func decodePoint(data json.RawMessage) *domain.PricePoint {
	var point domain.PricePoint
	if err := json.Unmarshal(data, &point); err != nil || point.Price <= 0 {
		return nil
	}
	return &point
}

func decodePoints(data json.RawMessage) []domain.PricePoint {
	var points []domain.PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil
	}
	return points
}
