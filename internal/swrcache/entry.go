package swrcache

import "time"

// Entry wraps cached data with metadata.
type Entry[T any] struct {
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Result is what GetOrFetch hands back to callers.
type Result[T any] struct {
	Data      T
	FetchedAt time.Time

	// Stale is set when the refetch failed and the last-known-good entry
	// was served past its TTL.
	Stale bool

	// Hit is set when no fetch was performed.
	Hit bool
}
