package events

// EventData is the interface that all typed event payloads implement.
// It keeps event payloads type-safe at the emit site while the bus itself
// stays schemaless.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType

	// Fields flattens the payload into the event's data map
	Fields() map[string]interface{}
}

// NAVComputedData contains data for NAVComputed events.
// Series carries the full return series; subscribers that only need the
// latest value read the snapshot fields.
type NAVComputedData struct {
	WatchlistID   string      `json:"watchlist_id"`
	Source        string      `json:"source"`
	Series        interface{} `json:"series"`
	ReturnPercent float64     `json:"return_percent"`
	ValidTickers  int         `json:"valid_tickers"`
	TotalTickers  int         `json:"total_tickers"`
}

// EventType returns the event type for NAVComputedData
func (d *NAVComputedData) EventType() EventType {
	return NAVComputed
}

// Fields flattens the payload for the bus
func (d *NAVComputedData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"watchlist_id":   d.WatchlistID,
		"source":         d.Source,
		"series":         d.Series,
		"return_percent": d.ReturnPercent,
		"valid_tickers":  d.ValidTickers,
		"total_tickers":  d.TotalTickers,
	}
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	WatchlistID string `json:"watchlist_id"`
	Symbol      string `json:"symbol"`
	Merged      int    `json:"merged"`
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// Fields flattens the payload for the bus
func (d *PriceUpdatedData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"watchlist_id": d.WatchlistID,
		"symbol":       d.Symbol,
		"merged":       d.Merged,
	}
}

// WatchlistChangedData contains data for WatchlistChanged events
type WatchlistChangedData struct {
	WatchlistID string `json:"watchlist_id"`
	Slug        string `json:"slug"`
	Action      string `json:"action"` // created, renamed, deleted
}

// EventType returns the event type for WatchlistChangedData
func (d *WatchlistChangedData) EventType() EventType {
	return WatchlistChanged
}

// Fields flattens the payload for the bus
func (d *WatchlistChangedData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"watchlist_id": d.WatchlistID,
		"slug":         d.Slug,
		"action":       d.Action,
	}
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// Fields flattens the payload for the bus
func (d *BackupCompletedData) Fields() map[string]interface{} {
	return map[string]interface{}{
		"key":        d.Key,
		"size_bytes": d.SizeBytes,
	}
}
