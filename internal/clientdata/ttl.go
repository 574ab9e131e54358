package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// TTLQuote - current quotes go stale quickly; the refresh cycle
	// runs every few minutes anyway.
	TTLQuote = 10 * time.Minute

	// TTLDailyHistory - daily bars gain at most one point per day.
	TTLDailyHistory = 6 * time.Hour

	// TTLNAVSeries - computed series are recomputed at every 5-minute
	// boundary; cached copies only serve cold starts.
	TTLNAVSeries = 15 * time.Minute
)
