package tracker

import (
	"errors"
	"fmt"
)

var ErrEmptyQuery = errors.New("tracker: empty query")

// FetchError means the tracker could not be reached or refused the request.
type FetchError struct {
	Op     string
	Status int // HTTP status, 0 for transport failures
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tracker %s: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("tracker %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Auth reports whether the tracker rejected the credentials.
func (e *FetchError) Auth() bool { return e.Status == 401 || e.Status == 403 }

// ParseError means the tracker answered with a payload we could not read.
type ParseError struct {
	Key string // issue key when the failure is issue-specific
	Err error
}

func (e *ParseError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("tracker: parse issue %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("tracker: parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
