package nav

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/avramidis/tickernav/internal/domain"
)

// SeriesCache persists computed NAV series so cold starts can serve the
// last known curve without recomputing. Series are msgpack-encoded; they
// are written on every boundary tick and expire quickly.
type SeriesCache struct {
	db *sql.DB
}

// NewSeriesCache creates a cache backed by the nav_series table.
func NewSeriesCache(db *sql.DB) *SeriesCache {
	return &SeriesCache{db: db}
}

// cachedSeries is the stored payload. Points and metadata travel together
// so a read never mixes a series with another snapshot's counts.
type cachedSeries struct {
	Series       []domain.NAVPoint `msgpack:"series"`
	ValidTickers int               `msgpack:"valid_tickers"`
	TotalTickers int               `msgpack:"total_tickers"`
	ComputedAt   int64             `msgpack:"computed_at"`
}

// Store saves a computed series for a watchlist with the given TTL.
func (c *SeriesCache) Store(watchlistID string, series []domain.NAVPoint, valid, total int, ttl time.Duration) error {
	payload := cachedSeries{
		Series:       series,
		ValidTickers: valid,
		TotalTickers: total,
		ComputedAt:   time.Now().Unix(),
	}

	data, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode nav series: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO nav_series (watchlist_id, data, expires_at) VALUES (?, ?, ?)",
		watchlistID, data, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store nav series: %w", err)
	}

	return nil
}

// Get returns the cached series for a watchlist regardless of expiration.
// Returns nil series if nothing is cached.
func (c *SeriesCache) Get(watchlistID string) ([]domain.NAVPoint, int, int, error) {
	var data []byte
	err := c.db.QueryRow(
		"SELECT data FROM nav_series WHERE watchlist_id = ?",
		watchlistID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, 0, 0, nil
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to get nav series: %w", err)
	}

	var payload cachedSeries
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode nav series: %w", err)
	}

	return payload.Series, payload.ValidTickers, payload.TotalTickers, nil
}

// Delete removes the cached series for a watchlist.
func (c *SeriesCache) Delete(watchlistID string) error {
	if _, err := c.db.Exec("DELETE FROM nav_series WHERE watchlist_id = ?", watchlistID); err != nil {
		return fmt.Errorf("failed to delete nav series: %w", err)
	}
	return nil
}

// DeleteExpired removes expired series rows.
func (c *SeriesCache) DeleteExpired() (int64, error) {
	result, err := c.db.Exec("DELETE FROM nav_series WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired nav series: %w", err)
	}
	return result.RowsAffected()
}
