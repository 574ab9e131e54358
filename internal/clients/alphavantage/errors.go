package alphavantage

import "fmt"

// ErrRateLimitExceeded indicates the daily request budget is exhausted.
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "alphavantage: daily rate limit exceeded"
}

// ErrInvalidAPIKey indicates the API rejected our key.
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "alphavantage: invalid API key"
}

// ErrSymbolNotFound indicates the API returned no data for a symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("alphavantage: symbol not found: %s", e.Symbol)
}
