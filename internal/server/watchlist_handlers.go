package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/avramidis/tickernav/internal/clientdata"
	"github.com/avramidis/tickernav/internal/domain"
	"github.com/avramidis/tickernav/internal/modules/nav"
	"github.com/avramidis/tickernav/internal/modules/refresh"
	"github.com/avramidis/tickernav/internal/modules/returns"
	"github.com/avramidis/tickernav/internal/modules/ticker"
	"github.com/avramidis/tickernav/internal/modules/timeframe"
	"github.com/avramidis/tickernav/internal/modules/watchlist"
)

// WatchlistHandlers provides HTTP handlers for watchlist endpoints.
type WatchlistHandlers struct {
	watchlists *watchlist.Service
	refresh    *refresh.Service
	returns    *returns.Calculator
	sampler    *nav.Sampler
	navCache   *nav.SeriesCache
	log        zerolog.Logger
}

// NewWatchlistHandlers creates watchlist handlers.
func NewWatchlistHandlers(
	watchlists *watchlist.Service,
	refreshSvc *refresh.Service,
	calc *returns.Calculator,
	sampler *nav.Sampler,
	navCache *nav.SeriesCache,
	log zerolog.Logger,
) *WatchlistHandlers {
	return &WatchlistHandlers{
		watchlists: watchlists,
		refresh:    refreshSvc,
		returns:    calc,
		sampler:    sampler,
		navCache:   navCache,
		log:        log.With().Str("handler", "watchlist").Logger(),
	}
}

// RegisterRoutes registers watchlist routes on the router.
func (h *WatchlistHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/watchlists", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleRename)
			r.Delete("/", h.HandleDelete)

			r.Post("/tickers", h.HandleAddTicker)
			r.Delete("/tickers/{symbol}", h.HandleRemoveTicker)

			r.Get("/returns", h.HandleReturns)
			r.Get("/nav", h.HandleNAV)
			r.Post("/refresh", h.HandleRefresh)
		})
	})
}

// HandleList handles GET /api/watchlists
func (h *WatchlistHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	lists, err := h.watchlists.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list watchlists")
		http.Error(w, "Failed to list watchlists", http.StatusInternalServerError)
		return
	}
	writeJSON(w, lists)
}

// HandleCreate handles POST /api/watchlists
func (h *WatchlistHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	wl, err := h.watchlists.Create(body.Name)
	if err != nil {
		h.log.Warn().Err(err).Str("name", body.Name).Msg("Failed to create watchlist")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, wl)
}

// HandleGet handles GET /api/watchlists/{id}
func (h *WatchlistHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	wl := h.load(w, r)
	if wl == nil {
		return
	}
	writeJSON(w, wl)
}

// HandleRename handles PUT /api/watchlists/{id}
func (h *WatchlistHandlers) HandleRename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	wl, err := h.watchlists.Rename(chi.URLParam(r, "id"), body.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, wl)
}

// HandleDelete handles DELETE /api/watchlists/{id}
func (h *WatchlistHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.watchlists.Delete(chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addTickerResponse carries the normalized position and any repairs the
// normalizer applied to the raw input.
type addTickerResponse struct {
	Ticker   *domain.TickerPosition `json:"ticker"`
	Warnings []ticker.Warning       `json:"warnings,omitempty"`
}

// HandleAddTicker handles POST /api/watchlists/{id}/tickers
// The body is raw ticker data; it passes through the normalizer, so
// malformed fields are repaired rather than rejected.
func (h *WatchlistHandlers) HandleAddTicker(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pos, warnings, err := h.watchlists.AddTicker(chi.URLParam(r, "id"), raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, addTickerResponse{Ticker: pos, Warnings: warnings})
}

// HandleRemoveTicker handles DELETE /api/watchlists/{id}/tickers/{symbol}
func (h *WatchlistHandlers) HandleRemoveTicker(w http.ResponseWriter, r *http.Request) {
	err := h.watchlists.RemoveTicker(chi.URLParam(r, "id"), chi.URLParam(r, "symbol"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tickerReturnEntry is one row of the returns response.
type tickerReturnEntry struct {
	Symbol        string   `json:"symbol"`
	ReturnPercent *float64 `json:"return_percent"` // null when not computable
	Incomplete    bool     `json:"incomplete"`
}

type returnsResponse struct {
	Timeframe       domain.Timeframe    `json:"timeframe"`
	Tickers         []tickerReturnEntry `json:"tickers"`
	PortfolioReturn *float64            `json:"portfolio_return"`
}

// HandleReturns handles GET /api/watchlists/{id}/returns?timeframe=day
// Custom windows use timeframe=custom&start=...&end=... (RFC 3339).
func (h *WatchlistHandlers) HandleReturns(w http.ResponseWriter, r *http.Request) {
	wl := h.load(w, r)
	if wl == nil {
		return
	}

	tf, err := domain.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var customStart, customEnd time.Time
	if tf == domain.TimeframeCustom {
		customStart, customEnd, err = parseCustomRange(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	now := time.Now().UTC()
	resp := returnsResponse{Timeframe: tf, Tickers: make([]tickerReturnEntry, 0, len(wl.Items))}

	for i := range wl.Items {
		item := &wl.Items[i]
		entry := tickerReturnEntry{Symbol: item.Symbol, Incomplete: item.Incomplete}

		var slice domain.ReturnSlice
		if tf == domain.TimeframeCustom {
			slice = timeframe.ResolveCustom(item.HistoricalData, customStart, customEnd)
		} else {
			buyPrice := item.BuyPrice
			slice = timeframe.Resolve(item.HistoricalData, tf, item.BuyDate, &buyPrice, now)
		}

		if ret, ok := h.returns.TickerReturn(item, slice, tf); ok {
			entry.ReturnPercent = &ret
		}
		resp.Tickers = append(resp.Tickers, entry)
	}

	if tf != domain.TimeframeCustom {
		resp.PortfolioReturn = h.returns.PortfolioReturn(wl.Items, tf, now)
	}

	writeJSON(w, resp)
}

type navResponse struct {
	Series       []domain.NAVPoint `json:"series"`
	ValidTickers int               `json:"valid_tickers"`
	TotalTickers int               `json:"total_tickers"`
	SMA          []float64         `json:"sma,omitempty"`
	Cached       bool              `json:"cached"`
}

// HandleNAV handles GET /api/watchlists/{id}/nav?sma=20
// Serves the cached series when one exists; otherwise computes on demand
// and caches the result. Pass refresh=true to force recomputation.
func (h *WatchlistHandlers) HandleNAV(w http.ResponseWriter, r *http.Request) {
	wl := h.load(w, r)
	if wl == nil {
		return
	}

	force := r.URL.Query().Get("refresh") == "true"

	var resp navResponse
	if !force {
		series, valid, total, err := h.navCache.Get(wl.ID)
		if err != nil {
			h.log.Warn().Err(err).Str("watchlist_id", wl.ID).Msg("NAV cache read failed")
		} else if series != nil {
			resp = navResponse{Series: series, ValidTickers: valid, TotalTickers: total, Cached: true}
		}
	}

	if resp.Series == nil {
		series, valid := h.sampler.ComputeSeries(wl.Items)
		resp = navResponse{Series: series, ValidTickers: valid, TotalTickers: len(wl.Items)}

		if err := h.navCache.Store(wl.ID, series, valid, len(wl.Items), clientdata.TTLNAVSeries); err != nil {
			h.log.Warn().Err(err).Str("watchlist_id", wl.ID).Msg("NAV cache write failed")
		}
	}

	if smaStr := r.URL.Query().Get("sma"); smaStr != "" {
		period, err := strconv.Atoi(smaStr)
		if err != nil || period < 2 {
			http.Error(w, "sma must be an integer >= 2", http.StatusBadRequest)
			return
		}
		resp.SMA = nav.SMAOverlay(resp.Series, period)
	}

	writeJSON(w, resp)
}

// HandleRefresh handles POST /api/watchlists/{id}/refresh?immediate=true
func (h *WatchlistHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	immediate := r.URL.Query().Get("immediate") == "true"

	if err := h.refresh.RefreshWatchlist(chi.URLParam(r, "id"), immediate); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{
		"status":    "refreshing",
		"immediate": immediate,
	})
}

// load resolves the {id} URL parameter, writing a 404 on failure.
func (h *WatchlistHandlers) load(w http.ResponseWriter, r *http.Request) *domain.Watchlist {
	wl, err := h.watchlists.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load watchlist")
		http.Error(w, "Failed to load watchlist", http.StatusInternalServerError)
		return nil
	}
	if wl == nil {
		http.Error(w, "Watchlist not found", http.StatusNotFound)
		return nil
	}
	return wl
}

func parseCustomRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
