// Package watchlist provides persistence and management for watchlists.
// Watchlists are stored in watchlists.db with items serialized as a JSON
// column; the engine modules only ever see in-memory domain types.
package watchlist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/tickernav/internal/domain"
)

// Repository handles watchlist database operations.
// Items are stored as a JSON blob rather than a normalized table: the
// whole list is always read and written together, and the engine treats
// a watchlist as one unit.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new watchlist repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "watchlist").Logger(),
	}
}

// Load returns all watchlists keyed by ID.
func (r *Repository) Load() (map[string]*domain.Watchlist, error) {
	rows, err := r.db.Query("SELECT id, name, slug, items, created_at FROM watchlists")
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlists: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*domain.Watchlist)
	for rows.Next() {
		wl, err := scanWatchlist(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan watchlist row")
			continue
		}
		result[wl.ID] = wl
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watchlists: %w", err)
	}

	return result, nil
}

// Save upserts every watchlist in the map. Rows not present in the map
// are left alone; use Delete to remove one.
func (r *Repository) Save(watchlists map[string]*domain.Watchlist) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, wl := range watchlists {
		items, err := json.Marshal(wl.Items)
		if err != nil {
			return fmt.Errorf("failed to marshal items for %s: %w", wl.ID, err)
		}

		_, err = tx.Exec(`
			INSERT INTO watchlists (id, name, slug, items, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				slug = excluded.slug,
				items = excluded.items,
				updated_at = excluded.updated_at
		`, wl.ID, wl.Name, wl.Slug, string(items), wl.CreatedAt.Unix(), now)
		if err != nil {
			return fmt.Errorf("failed to save watchlist %s: %w", wl.ID, err)
		}
	}

	return tx.Commit()
}

// GetByID returns a single watchlist, or nil if it doesn't exist.
func (r *Repository) GetByID(id string) (*domain.Watchlist, error) {
	row := r.db.QueryRow("SELECT id, name, slug, items, created_at FROM watchlists WHERE id = ?", id)
	return scanOne(row)
}

// GetBySlug returns a single watchlist by its URL slug, or nil.
func (r *Repository) GetBySlug(slug string) (*domain.Watchlist, error) {
	row := r.db.QueryRow("SELECT id, name, slug, items, created_at FROM watchlists WHERE slug = ?", slug)
	return scanOne(row)
}

// Delete removes a watchlist. Deleting a missing ID is not an error.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM watchlists WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete watchlist %s: %w", id, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOne(row *sql.Row) (*domain.Watchlist, error) {
	wl, err := scanWatchlist(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return wl, err
}

func scanWatchlist(s scanner) (*domain.Watchlist, error) {
	var (
		wl        domain.Watchlist
		items     string
		createdAt int64
	)
	if err := s.Scan(&wl.ID, &wl.Name, &wl.Slug, &items, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &wl.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items for %s: %w", wl.ID, err)
	}
	if wl.Items == nil {
		wl.Items = []domain.TickerPosition{}
	}
	wl.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &wl, nil
}
