package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"
)

// LinkRepository provides methods for interacting with the database
// to manage link records and their visit history.
type LinkRepository struct {
	db *sqlx.DB
}

// NewLinkRepository creates a new instance of LinkRepository.
func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// linkRecord represents the database record for a link.
type linkRecord struct {
	ID          int64         `db:"id"`
	Code        string        `db:"code"`
	OriginalURL string        `db:"original_url"`
	CreatorIP   string        `db:"creator_ip"`
	ExpiresAt   sql.NullTime  `db:"expires_at"`
	MaxUses     sql.NullInt64 `db:"max_uses"`
	VisitCount  int64         `db:"visit_count"`
	IsActive    bool          `db:"is_active"`
	CreatedAt   time.Time     `db:"created_at"`
}

// toLink converts a linkRecord to a models.Link.
func toLink(record linkRecord) *models.Link {
	link := &models.Link{
		ID:          record.ID,
		Code:        record.Code,
		OriginalURL: record.OriginalURL,
		CreatorIP:   record.CreatorIP,
		VisitCount:  record.VisitCount,
		IsActive:    record.IsActive,
		CreatedAt:   record.CreatedAt,
	}

	if record.ExpiresAt.Valid {
		t := record.ExpiresAt.Time
		link.ExpiresAt = &t
	}
	if record.MaxUses.Valid {
		n := record.MaxUses.Int64
		link.MaxUses = &n
	}

	return link
}

// visitRecord represents the database record for a visit.
type visitRecord struct {
	ID        int64     `db:"id"`
	LinkCode  string    `db:"link_code"`
	VisitorIP string    `db:"visitor_ip"`
	UserAgent string    `db:"user_agent"`
	VisitedAt time.Time `db:"visited_at"`
}

// toVisit converts a visitRecord to a models.Visit.
func toVisit(record visitRecord) models.Visit {
	return models.Visit{
		ID:        record.ID,
		LinkCode:  record.LinkCode,
		VisitorIP: record.VisitorIP,
		UserAgent: record.UserAgent,
		VisitedAt: record.VisitedAt,
	}
}

// Insert stores a new link record and returns the stored representation.
// It returns database.ErrCodeExists if the short code is already taken.
func (r *LinkRepository) Insert(ctx context.Context, link *models.Link) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Insert"

	record := linkRecord{}
	query := `INSERT INTO links(code, original_url, creator_ip, expires_at, max_uses)
		VALUES($1, $2, $3, $4, $5)
		RETURNING *`

	err := r.db.GetContext(ctx, &record, query,
		link.Code, link.OriginalURL, link.CreatorIP, link.ExpiresAt, link.MaxUses)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert link record: %w", op, err)
	}

	return toLink(record), nil
}

// Lookup retrieves the link record for the given short code. It returns
// database.ErrLinkNotFound if no record matches.
func (r *LinkRepository) Lookup(ctx context.Context, code string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Lookup"

	record := linkRecord{}
	query := `SELECT * FROM links WHERE code = $1`

	err := r.db.GetContext(ctx, &record, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return toLink(record), nil
}

// CodeExists reports whether a link record with the given short code exists.
func (r *LinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "database.postgres.LinkRepository.CodeExists"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM links WHERE code = $1)`

	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("%s: failed to check short code existence: %w", op, err)
	}

	return exists, nil
}

// RecordVisit increments the link's visit counter and appends a visit record
// in a single transaction, so the counter never drifts from the visit log.
// It returns database.ErrLinkNotFound if the short code doesn't exist.
func (r *LinkRepository) RecordVisit(ctx context.Context, code, visitorIP, userAgent string) error {
	const op = "database.postgres.LinkRepository.RecordVisit"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE links SET visit_count = visit_count + 1 WHERE code = $1`

	res, err := tx.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("%s: failed to increment visit count: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	query = `INSERT INTO visits(link_code, visitor_ip, user_agent) VALUES($1, $2, $3)`

	if _, err := tx.ExecContext(ctx, query, code, visitorIP, userAgent); err != nil {
		return fmt.Errorf("%s: failed to insert visit record: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// VisitsByDay aggregates the link's visits per calendar day since the given
// instant, ordered oldest day first. Days without visits are omitted.
func (r *LinkRepository) VisitsByDay(ctx context.Context, code string, since time.Time) ([]models.DayCount, error) {
	const op = "database.postgres.LinkRepository.VisitsByDay"

	var records []struct {
		Day    string `db:"day"`
		Visits int64  `db:"visits"`
	}
	query := `SELECT to_char(visited_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS visits
		FROM visits
		WHERE link_code = $1 AND visited_at >= $2
		GROUP BY day
		ORDER BY day ASC`

	if err := r.db.SelectContext(ctx, &records, query, code, since); err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate visit records: %w", op, err)
	}

	counts := make([]models.DayCount, 0, len(records))
	for _, record := range records {
		counts = append(counts, models.DayCount{
			Day:    record.Day,
			Visits: record.Visits,
		})
	}

	return counts, nil
}

// LastVisits retrieves the link's most recent visit records, newest first.
func (r *LinkRepository) LastVisits(ctx context.Context, code string, limit int) ([]models.Visit, error) {
	const op = "database.postgres.LinkRepository.LastVisits"

	var records []visitRecord
	query := `SELECT * FROM visits
		WHERE link_code = $1
		ORDER BY visited_at DESC, id DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &records, query, code, limit); err != nil {
		return nil, fmt.Errorf("%s: failed to get visit records: %w", op, err)
	}

	visits := make([]models.Visit, 0, len(records))
	for _, record := range records {
		visits = append(visits, toVisit(record))
	}

	return visits, nil
}

// CountUniqueVisitors counts the distinct visitor addresses seen for the link.
func (r *LinkRepository) CountUniqueVisitors(ctx context.Context, code string) (int64, error) {
	const op = "database.postgres.LinkRepository.CountUniqueVisitors"

	var count int64
	query := `SELECT COUNT(DISTINCT visitor_ip) FROM visits WHERE link_code = $1`

	if err := r.db.GetContext(ctx, &count, query, code); err != nil {
		return 0, fmt.Errorf("%s: failed to count unique visitors: %w", op, err)
	}

	return count, nil
}
