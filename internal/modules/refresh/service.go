// Package refresh drives the price update pipeline: fetch fresh data from
// the quote provider, merge it into watchlist positions, persist, and hand
// the updated items to the NAV scheduler.
package refresh

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/avramidis/tickernav/internal/events"
	"github.com/avramidis/tickernav/internal/modules/history"
)

// WatchlistAccess is the slice of the watchlist service the pipeline needs.
type WatchlistAccess interface {
	List() ([]*domain.Watchlist, error)
	Get(idOrSlug string) (*domain.Watchlist, error)
	UpdateItems(watchlistID string, items []domain.TickerPosition) error
}

// NAVQueue receives updated items for NAV computation.
type NAVQueue interface {
	Queue(watchlistID string, items []domain.TickerPosition, tf domain.Timeframe)
	TriggerImmediate(watchlistID string, items []domain.TickerPosition, tf domain.Timeframe, source domain.NAVSource)
}

// Service orchestrates refresh cycles. Provider failures for individual
// symbols are logged and skipped; a partial refresh still produces a
// usable watchlist.
type Service struct {
	provider   domain.QuoteProvider
	watchlists WatchlistAccess
	scheduler  NAVQueue
	bus        *events.Bus
	log        zerolog.Logger
}

// NewService creates a refresh service.
func NewService(provider domain.QuoteProvider, watchlists WatchlistAccess, scheduler NAVQueue, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		provider:   provider,
		watchlists: watchlists,
		scheduler:  scheduler,
		bus:        bus,
		log:        log.With().Str("service", "refresh").Logger(),
	}
}

// RefreshAll refreshes every watchlist and queues each for the next
// aligned NAV computation.
func (s *Service) RefreshAll() error {
	lists, err := s.watchlists.List()
	if err != nil {
		return fmt.Errorf("failed to list watchlists: %w", err)
	}

	for _, wl := range lists {
		if err := s.refresh(wl, false); err != nil {
			s.log.Error().Err(err).Str("watchlist_id", wl.ID).Msg("Watchlist refresh failed")
		}
	}

	return nil
}

// RefreshWatchlist refreshes a single watchlist. With immediate=true the
// NAV computation runs right away instead of waiting for the next
// 5-minute boundary.
func (s *Service) RefreshWatchlist(idOrSlug string, immediate bool) error {
	wl, err := s.watchlists.Get(idOrSlug)
	if err != nil {
		return err
	}
	if wl == nil {
		return fmt.Errorf("watchlist not found: %s", idOrSlug)
	}
	return s.refresh(wl, immediate)
}

func (s *Service) refresh(wl *domain.Watchlist, immediate bool) error {
	updated := 0
	for i := range wl.Items {
		if s.refreshItem(wl.ID, &wl.Items[i]) {
			updated++
		}
	}

	if updated > 0 {
		if err := s.watchlists.UpdateItems(wl.ID, wl.Items); err != nil {
			return fmt.Errorf("failed to persist refreshed items: %w", err)
		}
	}

	s.log.Info().
		Str("watchlist_id", wl.ID).
		Int("tickers", len(wl.Items)).
		Int("updated", updated).
		Bool("immediate", immediate).
		Msg("Refresh cycle complete")

	if immediate {
		s.scheduler.TriggerImmediate(wl.ID, wl.Items, domain.TimeframeMax, domain.NAVSourceManual)
	} else {
		s.scheduler.Queue(wl.ID, wl.Items, domain.TimeframeMax)
	}

	return nil
}

// refreshItem pulls quote and history for one position and merges them in.
// Reports whether anything changed. Synthetic placeholders are skipped;
// they have no live symbol to query.
func (s *Service) refreshItem(watchlistID string, item *domain.TickerPosition) bool {
	if item.Type == domain.TickerTypeSynthetic {
		return false
	}

	changed := false
	merged := 0

	quote, err := s.provider.FetchQuote(item.Symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", item.Symbol).Msg("Quote fetch failed")
	} else if quote != nil {
		price := quote.Price
		item.CurrentPrice = &price
		// A live quote is also today's point in the history.
		item.HistoricalData = history.Merge(item.HistoricalData, []domain.PricePoint{*quote})
		changed = true
	}

	points, err := s.provider.FetchHistory(item.Symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", item.Symbol).Msg("History fetch failed")
	} else if len(points) > 0 {
		item.HistoricalData = history.Merge(item.HistoricalData, points)
		item.HistoricalData = history.FilterFromBuyDate(item.HistoricalData, item.BuyDate)
		merged = len(points)
		changed = true
	}

	if changed {
		s.bus.EmitTyped(events.PriceUpdated, "refresh", &events.PriceUpdatedData{
			WatchlistID: watchlistID,
			Symbol:      item.Symbol,
			Merged:      merged,
		})
	}

	return changed
}
