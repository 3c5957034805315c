package model

import "time"

// CacheEntry is one cached external signal. (SourceName, DataKey) is unique.
type CacheEntry struct {
	SourceName   string    `json:"source_name"`
	DataKey      string    `json:"data_key"`
	Category     string    `json:"category"`
	DataValue    string    `json:"data_value"`
	NumericValue *float64  `json:"numeric_value,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Live reports whether the entry is still valid at now.
func (e *CacheEntry) Live(now time.Time) bool {
	return e != nil && e.ExpiresAt.After(now)
}

// CacheFreshness summarizes cached entries for one category.
type CacheFreshness struct {
	Category string    `json:"category"`
	Entries  int       `json:"entries"`
	Expired  int       `json:"expired"`
	Oldest   time.Time `json:"oldest"`
	Newest   time.Time `json:"newest"`
}
