package database

import "errors"

var (
	// ErrCodeExists is returned when an insert collides with a short code
	// that is already taken.
	ErrCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when no link matches the requested
	// short code.
	ErrLinkNotFound = errors.New("link not found")
)
