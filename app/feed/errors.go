package feed

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrDiscoveryNotFound is returned when no feed URLs could be resolved
// from a submitted URL.
var ErrDiscoveryNotFound = errors.New("no feed URLs found")

// FetchError indicates a transport-level failure: the stream could not be
// opened or the source answered with a non-2xx status. It is counted
// against the feed's scrape failure counter by the scheduler.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the source confirmed the resource is gone.
func (e *FetchError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ParseError indicates a malformed feed document. It fails the job it
// occurred in without retry.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
