package resolver

import (
	"errors"
	"time"
)

var (
	// ErrNoSession means the authenticated session is not available. It is a lifecycle problem
	// and lets the next strategy run.
	ErrNoSession = errors.New("no active session")

	// ErrUpstream is a transient backend failure: network errors, non-200 answers, error envelopes.
	ErrUpstream = errors.New("upstream failure")

	// ErrContract means the backend answered with data of the wrong shape. Retrying will not help.
	ErrContract = errors.New("unexpected upstream data")
)

// Failure is a failed resolution together with the time spent on it.
type Failure struct {
	Reason  error
	Elapsed time.Duration
}

func (f *Failure) Error() string {
	return f.Reason.Error()
}

func (f *Failure) Unwrap() error {
	return f.Reason
}

// Retryable reports whether err is worth retrying later.
func Retryable(err error) bool {
	if errors.Is(err, ErrContract) {
		return false
	}
	return errors.Is(err, ErrUpstream) || errors.Is(err, ErrNoSession)
}
