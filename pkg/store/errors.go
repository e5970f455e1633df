package store

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingURL is wrapped by a ValidationError for records without a URL.
	ErrMissingURL = errors.New("page record has no url")

	// ErrStaleGeneration is returned when a write targets a session that has been cleared.
	// Callers treat it as a silent discard.
	ErrStaleGeneration = errors.New("stale session generation")
)

// ValidationError reports a malformed record inside a batch
type ValidationError struct {
	Index int
	URL   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
