package feed

import (
	"net/http"
	"time"
)

// IsDue decides whether a source needs refreshing. A source with no
// recorded stale-at timestamp is always due. Otherwise the stored
// timestamp is compared against now minus the grace window; a remote
// Last-Modified value that is more recent than the stored timestamp
// replaces it for the comparison, so an externally-updated source is
// detected before the local window fires. Absence of Last-Modified falls
// back to the stored timestamp only.
func IsDue(staleAt *time.Time, grace time.Duration, remoteLastModified *time.Time) bool {
	return isDueAt(time.Now(), staleAt, grace, remoteLastModified)
}

func isDueAt(now time.Time, staleAt *time.Time, grace time.Duration, remoteLastModified *time.Time) bool {
	if staleAt == nil {
		return true
	}

	cutoff := now.Add(-grace)

	effective := *staleAt
	if remoteLastModified != nil && remoteLastModified.After(effective) {
		effective = *remoteLastModified
	}

	return !effective.After(cutoff)
}

// LastModified parses the Last-Modified header from a probe response.
// Returns nil when the header is absent or unparseable.
func LastModified(headers http.Header) *time.Time {
	value := headers.Get("Last-Modified")
	if value == "" {
		return nil
	}

	t, err := http.ParseTime(value)
	if err != nil {
		return nil
	}
	return &t
}
