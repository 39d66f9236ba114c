package dispatch

import (
	"errors"
	"fmt"
)

// ErrProcessIDRequired is returned when multi-process ownership is
// configured but no process id was supplied to a claim call. A silent
// no-op here would let two workers dispatch the same rows.
var ErrProcessIDRequired = errors.New("dispatch: process id required when multiprocess ownership is configured")

// ConsistencyError reports that a request was pre-marked SENT, delivery
// failed, and the compensating FAILED update also failed. The row is now
// marked SENT without having been delivered and needs manual correction;
// the whole batch is aborted.
type ConsistencyError struct {
	RequestID string
	SendErr   error
	Err       error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("request %s marked SENT but delivery failed (%v) and compensation failed: %v",
		e.RequestID, e.SendErr, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}
