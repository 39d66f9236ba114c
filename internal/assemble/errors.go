package assemble

import (
	"errors"
	"fmt"
)

// ErrNoRecipients indicates a fetched request has no recipient rows.
// Submission validation prevents this; hitting it means the stored data
// was modified out of band.
var ErrNoRecipients = errors.New("assemble: request has no recipients")

// InvalidCharacterError reports a header-bound field containing a CR or LF,
// the signature of a header-injection attempt. The request is failed;
// the rest of the batch continues.
type InvalidCharacterError struct {
	RequestID string
	Field     string
}

func (e *InvalidCharacterError) Error() string {
	return fmt.Sprintf("invalid character in field %s of request %s", e.Field, e.RequestID)
}

// AddressError reports a recipient or addressing field that failed to parse
// as a mail address.
type AddressError struct {
	RequestID string
	Field     string
	Address   string
	Err       error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("parse %s address %q of request %s: %v", e.Field, e.Address, e.RequestID, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}
