package provider

import "errors"

var (
	// ErrUnauthorized indicates missing or invalid provider credentials.
	// Never retried; a configuration problem the operator must fix.
	ErrUnauthorized = errors.New("provider unauthorized")

	// ErrUnavailable indicates the provider could not be reached after the
	// retry budget was exhausted.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrInvalidResponse indicates the provider responded with something that
	// cannot be used (empty embedding, unparseable payload). Not retried;
	// retrying will not fix a malformed response.
	ErrInvalidResponse = errors.New("provider response invalid")
)
