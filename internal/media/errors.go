package media

import "errors"

var (
	// ErrNotFound is returned when no live, servable record exists for an id.
	ErrNotFound = errors.New("file not found")
	// ErrForbidden is returned when the caller may not access a record.
	ErrForbidden = errors.New("access to file denied")
	// ErrInvalidInput is returned for malformed upload requests.
	ErrInvalidInput = errors.New("invalid file input")
	// ErrConflict is returned when a concurrent write violates a uniqueness rule,
	// such as two live covers for one trip.
	ErrConflict = errors.New("conflicting file record")
)
