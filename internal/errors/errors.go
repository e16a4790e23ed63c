package errors

import "errors"

// Session errors.
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoUser       = errors.New("no signed-in user")
)

// Local storage errors.
var (
	ErrMalformedRecord = errors.New("malformed local record")
	ErrOwnerMismatch   = errors.New("pending game belongs to another user")
)

// Remote store errors.
var (
	ErrPuzzleNotFound = errors.New("puzzle allocation not found")
	ErrUnknownMode    = errors.New("unknown puzzle mode")
	ErrStatsNotFound  = errors.New("stats not found")
)
