package client

import "errors"

var (
	// ErrUnavailable covers unreachable servers and expired deadlines.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized means the access token is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected means the server refused the request itself: invalid
	// payload, unknown id, or a violated precondition.
	ErrRejected = errors.New("rejected by server")
)
