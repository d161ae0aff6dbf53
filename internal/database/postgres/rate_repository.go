package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RateLimitRepository persists the timestamped entries the rate limiter
// counts inside its sliding window.
type RateLimitRepository struct {
	db *sqlx.DB
}

// NewRateLimitRepository creates a new instance of RateLimitRepository.
func NewRateLimitRepository(db *sqlx.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// CountSince counts the client's entries created after the given instant.
func (r *RateLimitRepository) CountSince(ctx context.Context, clientID string, since time.Time) (int64, error) {
	const op = "database.postgres.RateLimitRepository.CountSince"

	var count int64
	query := `SELECT COUNT(*) FROM rate_limit_entries WHERE client_ip = $1 AND created_at > $2`

	if err := r.db.GetContext(ctx, &count, query, clientID, since); err != nil {
		return 0, fmt.Errorf("%s: failed to count rate limit entries: %w", op, err)
	}

	return count, nil
}

// Record stores one entry for the client, stamped with the current time.
func (r *RateLimitRepository) Record(ctx context.Context, clientID string) error {
	const op = "database.postgres.RateLimitRepository.Record"

	query := `INSERT INTO rate_limit_entries(client_ip) VALUES($1)`

	if _, err := r.db.ExecContext(ctx, query, clientID); err != nil {
		return fmt.Errorf("%s: failed to insert rate limit entry: %w", op, err)
	}

	return nil
}

// PurgeOlderThan deletes entries across all clients that fell out of the
// window before the given cutoff.
func (r *RateLimitRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) error {
	const op = "database.postgres.RateLimitRepository.PurgeOlderThan"

	query := `DELETE FROM rate_limit_entries WHERE created_at < $1`

	if _, err := r.db.ExecContext(ctx, query, cutoff); err != nil {
		return fmt.Errorf("%s: failed to purge rate limit entries: %w", op, err)
	}

	return nil
}
