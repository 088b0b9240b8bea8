package hookrelay_errors

import (
	"errors"
)

// Common errors
var (
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidURL         = errors.New("invalid url")
	ErrNoEvents           = errors.New("subscription has no events")
	ErrUnknownEventKind   = errors.New("unknown event kind")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)
