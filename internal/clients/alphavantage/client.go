// Package alphavantage provides a client for the Alpha Vantage API.
// The free tier allows 25 requests per day, so the client carries its own
// in-memory response cache and a daily request counter that resets at
// midnight UTC. Callers should treat a rate-limit error as "use stale
// data", not as a failure.
package alphavantage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	baseURL           = "https://www.alphavantage.co/query"
	dailyRequestLimit = 25
	requestTimeout    = 30 * time.Second
)

// CacheTTL configures how long each response class stays fresh in the
// in-memory cache.
type CacheTTL struct {
	PriceData time.Duration
	History   time.Duration
	Search    time.Duration
}

// DefaultCacheTTL returns the standard TTL configuration.
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{
		PriceData: 15 * time.Minute,
		History:   6 * time.Hour,
		Search:    24 * time.Hour,
	}
}

// ClientInterface defines the operations exposed by the client.
type ClientInterface interface {
	GetQuote(ctx context.Context, symbol string) (*GlobalQuote, error)
	GetDailyHistory(ctx context.Context, symbol string, full bool) ([]DailyPrice, error)
	SearchSymbol(ctx context.Context, keywords string) ([]SymbolMatch, error)
	GetRemainingRequests() int
	ResetDailyCounter()
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// Client is the Alpha Vantage API client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.Mutex
	requestCount int
	resetAt      time.Time

	cacheMu  sync.RWMutex
	cache    map[string]cacheEntry
	cacheTTL CacheTTL
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log.With().Str("client", "alphavantage").Logger(),
		resetAt:    nextMidnightUTC(),
		cache:      make(map[string]cacheEntry),
		cacheTTL:   DefaultCacheTTL(),
	}
}

// SetCacheTTL overrides the cache TTL configuration.
func (c *Client) SetCacheTTL(ttl CacheTTL) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cacheTTL = ttl
}

// GetQuote fetches the latest quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	params := map[string]string{"symbol": symbol}
	key := buildCacheKey("GLOBAL_QUOTE", params)

	if cached, ok := c.getFromCache(key); ok {
		return cached.(*GlobalQuote), nil
	}

	body, err := c.request(ctx, "GLOBAL_QUOTE", params)
	if err != nil {
		return nil, err
	}

	quote, err := parseGlobalQuote(body)
	if err != nil {
		return nil, err
	}
	if quote.Symbol == "" {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	c.setCache(key, quote, c.cacheTTL.PriceData)
	return quote, nil
}

// GetDailyHistory fetches daily bars for a symbol, newest first.
// With full=false the API returns roughly the last 100 trading days.
func (c *Client) GetDailyHistory(ctx context.Context, symbol string, full bool) ([]DailyPrice, error) {
	outputsize := "compact"
	if full {
		outputsize = "full"
	}
	params := map[string]string{"symbol": symbol, "outputsize": outputsize}
	key := buildCacheKey("TIME_SERIES_DAILY", params)

	if cached, ok := c.getFromCache(key); ok {
		return cached.([]DailyPrice), nil
	}

	body, err := c.request(ctx, "TIME_SERIES_DAILY", params)
	if err != nil {
		return nil, err
	}

	prices, err := parseDailyTimeSeries(body)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	c.setCache(key, prices, c.cacheTTL.History)
	return prices, nil
}

// SearchSymbol looks up symbols matching the given keywords.
func (c *Client) SearchSymbol(ctx context.Context, keywords string) ([]SymbolMatch, error) {
	params := map[string]string{"keywords": keywords}
	key := buildCacheKey("SYMBOL_SEARCH", params)

	if cached, ok := c.getFromCache(key); ok {
		return cached.([]SymbolMatch), nil
	}

	body, err := c.request(ctx, "SYMBOL_SEARCH", params)
	if err != nil {
		return nil, err
	}

	matches, err := parseSymbolSearch(body)
	if err != nil {
		return nil, err
	}

	c.setCache(key, matches, c.cacheTTL.Search)
	return matches, nil
}

// GetRemainingRequests returns how many API calls are left today.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeResetLocked()
	return dailyRequestLimit - c.requestCount
}

// ResetDailyCounter resets the request counter. The counter also resets
// automatically at midnight UTC.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.resetAt = nextMidnightUTC()
	c.log.Info().Msg("Daily request counter reset")
}

// ClearCache drops all cached responses.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// request performs a rate-limited API call and checks the body for the
// in-band error shapes Alpha Vantage uses.
func (c *Client) request(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	values := url.Values{
		"function": {function},
		"apikey":   {c.apiKey},
	}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidAPIKey{}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("function", function).
		Int("remaining", c.GetRemainingRequests()).
		Msg("API request completed")

	return body, nil
}

// checkRateLimit consumes one request from the daily budget.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeResetLocked()

	if c.requestCount >= dailyRequestLimit {
		return ErrRateLimitExceeded{}
	}
	c.requestCount++
	return nil
}

func (c *Client) maybeResetLocked() {
	if time.Now().UTC().After(c.resetAt) {
		c.requestCount = 0
		c.resetAt = nextMidnightUTC()
	}
}

// checkAPIError detects Alpha Vantage's in-band error responses.
// The API returns HTTP 200 with a "Note" on rate limits and an
// "Error Message" for bad requests.
func (c *Client) checkAPIError(body []byte) error {
	s := string(body)
	if strings.Contains(s, `"Note"`) || strings.Contains(s, "Thank you for using Alpha Vantage") {
		return ErrRateLimitExceeded{}
	}
	if strings.Contains(s, `"Error Message"`) {
		return fmt.Errorf("API error response: %s", truncate(s, 200))
	}
	if strings.Contains(s, `"Information"`) && strings.Contains(s, "premium") {
		return ErrRateLimitExceeded{}
	}
	return nil
}

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

// buildCacheKey builds a deterministic cache key from a function name and
// its parameters. The API key is never part of the cache key.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(function)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(params[k])
	}
	return b.String()
}

// nextMidnightUTC returns the next 00:00:00 UTC instant.
func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
