package roster

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotReady is returned by a Fetcher when the portal has not finalised the roster yet
var ErrNotReady = errors.New("roster not finalised yet")

// FetchError wraps a portal failure (login, navigation, network). It is transient
// and retried a bounded number of times.
type FetchError struct {
	Date    time.Time
	Attempt int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch roster for %s (attempt %d): %v", e.Date.Format("2006-01-02"), e.Attempt, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// GiveUpError is returned when the roster was still not finalised after the last attempt
type GiveUpError struct {
	Date     time.Time
	Attempts int
}

func (e *GiveUpError) Error() string {
	return fmt.Sprintf("retry limit (%d) reached: roster for %s was not finalised", e.Attempts, e.Date.Format("2006-01-02"))
}

// ParseError is returned when raw roster text has no recognisable structure
type ParseError struct {
	Lines   int
	Dropped int
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognised roster format (%d lines, %d dropped): %s", e.Lines, e.Dropped, e.Reason)
}

// ErrorKind names the error for structured logs
func ErrorKind(err error) string {
	var fetchErr *FetchError
	var giveUpErr *GiveUpError
	var parseErr *ParseError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotReady):
		return "not_finalised"
	case errors.As(err, &giveUpErr):
		return "give_up"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &fetchErr):
		return "fetch"
	default:
		return "unexpected"
	}
}
