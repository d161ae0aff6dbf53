// Package ratelimit enforces the per-client creation budget over a sliding
// time window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultWindow is the trailing window entries are counted in.
	DefaultWindow = time.Hour
	// DefaultLimit is the number of entries allowed per client and window.
	DefaultLimit = 30
)

// ErrLimitExceeded is returned by Check when the client has used up its
// budget for the current window.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// EntryStore persists one timestamped entry per accepted request.
type EntryStore interface {
	// CountSince counts the client's entries created after the given instant.
	CountSince(ctx context.Context, clientID string, since time.Time) (int64, error)

	// Record stores one entry for the client, stamped with the current time.
	Record(ctx context.Context, clientID string) error

	// PurgeOlderThan deletes entries across all clients created before the
	// given cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) error
}

// Limiter counts a client's entries inside the trailing window and rejects
// requests once the configured limit is reached.
type Limiter struct {
	store   EntryStore
	window  time.Duration
	limit   int64
	nowFunc func() time.Time
}

// New creates a new Limiter. Non-positive window or limit values fall back
// to the defaults.
func New(store EntryStore, window time.Duration, limit int64) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	return &Limiter{
		store:   store,
		window:  window,
		limit:   limit,
		nowFunc: time.Now,
	}
}

// Check purges entries that fell out of the window, then fails with
// ErrLimitExceeded if the client already has limit entries inside it. It
// never charges the client's budget itself.
func (l *Limiter) Check(ctx context.Context, clientID string) error {
	const op = "ratelimit.Limiter.Check"

	cutoff := l.nowFunc().Add(-l.window)

	if err := l.store.PurgeOlderThan(ctx, cutoff); err != nil {
		return fmt.Errorf("%s: failed to purge stale entries: %w", op, err)
	}

	count, err := l.store.CountSince(ctx, clientID, cutoff)
	if err != nil {
		return fmt.Errorf("%s: failed to count entries: %w", op, err)
	}
	if count >= l.limit {
		return fmt.Errorf("%s: %w", op, ErrLimitExceeded)
	}

	return nil
}

// Record charges one entry to the client. Callers invoke it only after the
// operation the limiter gates has succeeded, so rejected or failed attempts
// never consume budget.
func (l *Limiter) Record(ctx context.Context, clientID string) error {
	const op = "ratelimit.Limiter.Record"

	if err := l.store.Record(ctx, clientID); err != nil {
		return fmt.Errorf("%s: failed to record entry: %w", op, err)
	}

	return nil
}
