package watchlist

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avramidis/tickernav/internal/domain"
	"github.com/avramidis/tickernav/internal/events"
	"github.com/avramidis/tickernav/internal/modules/ticker"
)

// Store is the persistence surface the service needs.
type Store interface {
	Load() (map[string]*domain.Watchlist, error)
	Save(watchlists map[string]*domain.Watchlist) error
	GetByID(id string) (*domain.Watchlist, error)
	GetBySlug(slug string) (*domain.Watchlist, error)
	Delete(id string) error
}

// Service manages watchlist lifecycle and membership. All raw ticker
// input goes through the normalizer before it touches a watchlist.
type Service struct {
	store      Store
	normalizer *ticker.Normalizer
	bus        *events.Bus
	clock      domain.Clock
	log        zerolog.Logger
}

// NewService creates a new watchlist service.
func NewService(store Store, normalizer *ticker.Normalizer, bus *events.Bus, clock domain.Clock, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		normalizer: normalizer,
		bus:        bus,
		clock:      clock,
		log:        log.With().Str("service", "watchlist").Logger(),
	}
}

// List returns all watchlists sorted by name.
func (s *Service) List() ([]*domain.Watchlist, error) {
	all, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Watchlist, 0, len(all))
	for _, wl := range all {
		result = append(result, wl)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Get resolves a watchlist by ID first, then by slug.
// Returns nil when neither matches.
func (s *Service) Get(idOrSlug string) (*domain.Watchlist, error) {
	wl, err := s.store.GetByID(idOrSlug)
	if err != nil {
		return nil, err
	}
	if wl != nil {
		return wl, nil
	}
	return s.store.GetBySlug(idOrSlug)
}

// Create makes a new empty watchlist. The slug is derived from the name
// and must be unique.
func (s *Service) Create(name string) (*domain.Watchlist, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("watchlist name %q produces an empty slug", name)
	}

	existing, err := s.store.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("watchlist with slug %q already exists", slug)
	}

	wl := &domain.Watchlist{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		Items:     []domain.TickerPosition{},
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.store.Save(map[string]*domain.Watchlist{wl.ID: wl}); err != nil {
		return nil, err
	}

	s.log.Info().Str("watchlist_id", wl.ID).Str("slug", slug).Msg("Created watchlist")
	s.bus.EmitTyped(events.WatchlistChanged, "watchlist", &events.WatchlistChangedData{
		WatchlistID: wl.ID,
		Slug:        slug,
		Action:      "created",
	})

	return wl, nil
}

// Rename changes a watchlist's name and re-derives its slug.
func (s *Service) Rename(id, name string) (*domain.Watchlist, error) {
	wl, err := s.mustGet(id)
	if err != nil {
		return nil, err
	}

	slug := Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("watchlist name %q produces an empty slug", name)
	}

	if slug != wl.Slug {
		existing, err := s.store.GetBySlug(slug)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != wl.ID {
			return nil, fmt.Errorf("watchlist with slug %q already exists", slug)
		}
	}

	wl.Name = name
	wl.Slug = slug
	if err := s.store.Save(map[string]*domain.Watchlist{wl.ID: wl}); err != nil {
		return nil, err
	}

	s.bus.EmitTyped(events.WatchlistChanged, "watchlist", &events.WatchlistChangedData{
		WatchlistID: wl.ID,
		Slug:        slug,
		Action:      "renamed",
	})

	return wl, nil
}

// Delete removes a watchlist.
func (s *Service) Delete(id string) error {
	wl, err := s.mustGet(id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(wl.ID); err != nil {
		return err
	}

	s.log.Info().Str("watchlist_id", wl.ID).Msg("Deleted watchlist")
	s.bus.EmitTyped(events.WatchlistChanged, "watchlist", &events.WatchlistChangedData{
		WatchlistID: wl.ID,
		Slug:        wl.Slug,
		Action:      "deleted",
	})

	return nil
}

// AddTicker normalizes raw ticker input and adds it to a watchlist.
// An existing position with the same symbol is replaced; its original
// AddedAt is kept so replacement doesn't reset position age.
// Returns the normalized position and any repair warnings.
func (s *Service) AddTicker(watchlistID string, raw map[string]interface{}) (*domain.TickerPosition, []ticker.Warning, error) {
	wl, err := s.mustGet(watchlistID)
	if err != nil {
		return nil, nil, err
	}

	pos, warnings := s.normalizer.Normalize(raw)
	if pos.AddedAt.IsZero() {
		pos.AddedAt = s.clock.Now().UTC()
	}

	replaced := false
	for i := range wl.Items {
		if wl.Items[i].Symbol == pos.Symbol {
			pos.AddedAt = wl.Items[i].AddedAt
			wl.Items[i] = pos
			replaced = true
			break
		}
	}
	if !replaced {
		wl.Items = append(wl.Items, pos)
	}

	if err := s.store.Save(map[string]*domain.Watchlist{wl.ID: wl}); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("watchlist_id", wl.ID).
		Str("symbol", pos.Symbol).
		Bool("replaced", replaced).
		Int("warnings", len(warnings)).
		Msg("Added ticker")

	s.bus.Emit(events.TickerAdded, "watchlist", map[string]interface{}{
		"watchlist_id": wl.ID,
		"symbol":       pos.Symbol,
		"replaced":     replaced,
	})

	return &pos, warnings, nil
}

// RemoveTicker removes a symbol from a watchlist.
// Removing a symbol that isn't present is not an error.
func (s *Service) RemoveTicker(watchlistID, symbol string) error {
	wl, err := s.mustGet(watchlistID)
	if err != nil {
		return err
	}

	kept := wl.Items[:0]
	removed := false
	for _, item := range wl.Items {
		if item.Symbol == symbol {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return nil
	}
	wl.Items = kept

	if err := s.store.Save(map[string]*domain.Watchlist{wl.ID: wl}); err != nil {
		return err
	}

	s.bus.Emit(events.TickerRemoved, "watchlist", map[string]interface{}{
		"watchlist_id": wl.ID,
		"symbol":       symbol,
	})

	return nil
}

// UpdateItems replaces a watchlist's items wholesale. Used by the refresh
// pipeline after merging fresh provider data into positions.
func (s *Service) UpdateItems(watchlistID string, items []domain.TickerPosition) error {
	wl, err := s.mustGet(watchlistID)
	if err != nil {
		return err
	}

	wl.Items = items
	return s.store.Save(map[string]*domain.Watchlist{wl.ID: wl})
}

func (s *Service) mustGet(idOrSlug string) (*domain.Watchlist, error) {
	wl, err := s.Get(idOrSlug)
	if err != nil {
		return nil, err
	}
	if wl == nil {
		return nil, fmt.Errorf("watchlist not found: %s", idOrSlug)
	}
	return wl, nil
}
