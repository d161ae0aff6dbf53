package service

import "errors"

var (
	// ErrLinkExpired is returned when a link's expiry timestamp lies in
	// the past.
	ErrLinkExpired = errors.New("link expired")
	// ErrLinkUsesExhausted is returned when a link has reached its usage
	// cap.
	ErrLinkUsesExhausted = errors.New("link usage limit reached")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries
	// for inserting a freshly generated short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for inserting short code")
)
