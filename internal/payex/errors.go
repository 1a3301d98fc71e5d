package payex

import "fmt"

// AuthError reports a failed credential-to-token exchange. The token request
// is never retried; callers surface a generic message to the buyer.
type AuthError struct {
	Status int
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payex: token request failed: %v", e.Err)
	}
	return fmt.Sprintf("payex: token request failed with status %d", e.Status)
}

// Unwrap exposes the underlying transport error, if any.
func (e *AuthError) Unwrap() error { return e.Err }

// TransientError reports a transport failure or a non-200 remote status on a
// submit call. There is no automatic retry.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payex: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payex: %s failed with status %d", e.Op, e.Status)
}

// Unwrap exposes the underlying transport error, if any.
func (e *TransientError) Unwrap() error { return e.Err }

// RejectionError reports an HTTP 200 response whose body signals that the
// processor declined the request (status "99" or an empty result set).
type RejectionError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payex: %s rejected by processor", e.Op)
	}
	return fmt.Sprintf("payex: %s rejected by processor: %s", e.Op, e.Message)
}
