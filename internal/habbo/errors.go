package habbo

import (
	"errors"
	"fmt"
)

// ErrProfileNotFound means the upstream reported the profile does not
// exist right now (404 or hidden profile). Not retryable within the same
// cycle, but tracking must not be deactivated — profiles can be
// temporarily private.
var ErrProfileNotFound = errors.New("habbo: profile not found")

// ErrUnknownHotel means the hotel identifier does not map to a known
// API domain.
var ErrUnknownHotel = errors.New("habbo: unknown hotel")

// TransientError covers timeouts, network failures and upstream 5xx.
// The batch scheduler does not retry within a run; the next scheduled
// run retries naturally.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("habbo: transient failure in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("habbo: transient failure in %s: status=%d", e.Op, e.Status)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is retryable on a later run.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
