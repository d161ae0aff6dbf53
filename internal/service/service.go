// Package service implements the short-link lifecycle: creation behind rate
// limiting and URL validation, resolution with expiry and usage enforcement,
// and statistics reporting.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"
	"github.com/vadimbarashkov/shortlink/internal/validation"
)

const (
	// statsDayWindow is the reporting window for per-day visit counts.
	statsDayWindow = 30 * 24 * time.Hour
	// statsLastVisits is the number of recent visits included in a report.
	statsLastVisits = 10
	// maxUserAgentLength bounds the user agent string stored with a visit.
	maxUserAgentLength = 512
)

// LinkRepository defines the interface for working with links at the
// business logic layer.
type LinkRepository interface {
	// Insert stores a new link and returns the stored representation.
	// Returns database.ErrCodeExists if the short code is already taken.
	Insert(ctx context.Context, link *models.Link) (*models.Link, error)

	// Lookup retrieves a link by its short code.
	// Returns database.ErrLinkNotFound if no link matches.
	Lookup(ctx context.Context, code string) (*models.Link, error)

	// RecordVisit increments the link's visit counter and appends a visit
	// record atomically.
	RecordVisit(ctx context.Context, code, visitorIP, userAgent string) error

	// VisitsByDay aggregates the link's visits per calendar day since the
	// given instant, ordered oldest day first.
	VisitsByDay(ctx context.Context, code string, since time.Time) ([]models.DayCount, error)

	// LastVisits retrieves the link's most recent visits, newest first.
	LastVisits(ctx context.Context, code string, limit int) ([]models.Visit, error)

	// CountUniqueVisitors counts the distinct visitor addresses seen for
	// the link.
	CountUniqueVisitors(ctx context.Context, code string) (int64, error)
}

// CodeGenerator produces short codes that are unused at generation time.
type CodeGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// RateLimiter gates link creation per client.
type RateLimiter interface {
	// Check fails with ratelimit.ErrLimitExceeded if the client has used
	// up its budget. It never charges the budget itself.
	Check(ctx context.Context, clientID string) error

	// Record charges one entry to the client's budget.
	Record(ctx context.Context, clientID string) error
}

// URLValidator decides whether a URL is admissible as a shortening target.
type URLValidator interface {
	Validate(rawURL string) error
}

// CreateParams carries the merged request parameters for link creation.
type CreateParams struct {
	URL       string
	ExpiresAt *time.Time
	MaxUses   *int64
	ClientIP  string
}

// ShortLinkService provides the create, resolve and stats operations.
type ShortLinkService struct {
	repo      LinkRepository
	generator CodeGenerator
	limiter   RateLimiter
	validator URLValidator
	nowFunc   func() time.Time
}

// New creates a new instance of ShortLinkService.
func New(repo LinkRepository, generator CodeGenerator, limiter RateLimiter, validator URLValidator) *ShortLinkService {
	return &ShortLinkService{
		repo:      repo,
		generator: generator,
		limiter:   limiter,
		validator: validator,
		nowFunc:   time.Now,
	}
}

// Create runs the creation pipeline: rate limit check, URL validation,
// constraint validation, code generation and insert. The client's rate
// budget is charged only after the link has been stored, so rejected and
// failed attempts stay free.
func (s *ShortLinkService) Create(ctx context.Context, params CreateParams) (*models.Link, error) {
	const op = "service.ShortLinkService.Create"

	if err := s.limiter.Check(ctx, params.ClientIP); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params.URL = strings.TrimSpace(params.URL)
	if err := s.validator.Validate(params.URL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if params.ExpiresAt != nil && !params.ExpiresAt.After(s.nowFunc()) {
		return nil, fmt.Errorf("%s: %w", op, &validation.Error{Reason: "expires_at must be in the future"})
	}
	if params.MaxUses != nil && *params.MaxUses <= 0 {
		return nil, fmt.Errorf("%s: %w", op, &validation.Error{Reason: "max_uses must be a positive integer"})
	}

	link, err := s.insertWithFreshCode(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.limiter.Record(ctx, params.ClientIP); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return link, nil
}

// insertWithFreshCode pairs code generation with the insert. The generator
// retries collisions it can see; the loop here absorbs the race where a
// concurrent creator claims the same code between the existence check and
// the insert.
func (s *ShortLinkService) insertWithFreshCode(ctx context.Context, params CreateParams) (*models.Link, error) {
	const maxRetries = 5

	for i := 0; i < maxRetries; i++ {
		code, err := s.generator.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short code: %w", err)
		}

		link, err := s.repo.Insert(ctx, &models.Link{
			Code:        code,
			OriginalURL: params.URL,
			CreatorIP:   params.ClientIP,
			ExpiresAt:   params.ExpiresAt,
			MaxUses:     params.MaxUses,
			IsActive:    true,
		})
		if err != nil {
			if errors.Is(err, database.ErrCodeExists) {
				continue
			}

			return nil, fmt.Errorf("failed to insert link: %w", err)
		}

		return link, nil
	}

	return nil, ErrMaxRetriesExceeded
}

// Resolve returns the original URL bound to the short code after enforcing
// the link's active, expiry and usage constraints, and records the visit.
// The counter increment and the visit insert happen atomically in the
// repository.
func (s *ShortLinkService) Resolve(ctx context.Context, code, visitorIP, userAgent string) (string, error) {
	const op = "service.ShortLinkService.Resolve"

	link, err := s.repo.Lookup(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if !link.IsActive {
		// Deactivated links are indistinguishable from missing ones.
		return "", fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}
	if link.Expired(s.nowFunc()) {
		return "", fmt.Errorf("%s: %w", op, ErrLinkExpired)
	}
	if link.UsesExhausted() {
		return "", fmt.Errorf("%s: %w", op, ErrLinkUsesExhausted)
	}

	if len(userAgent) > maxUserAgentLength {
		userAgent = userAgent[:maxUserAgentLength]
	}

	if err := s.repo.RecordVisit(ctx, code, visitorIP, userAgent); err != nil {
		return "", fmt.Errorf("%s: failed to record visit: %w", op, err)
	}

	return link.OriginalURL, nil
}

// Stats assembles the statistics report for the short code. Expired,
// exhausted and deactivated links still report their history.
func (s *ShortLinkService) Stats(ctx context.Context, code string) (*models.LinkStats, error) {
	const op = "service.ShortLinkService.Stats"

	link, err := s.repo.Lookup(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link stats: %w", op, err)
	}

	since := s.nowFunc().Add(-statsDayWindow)

	visitsByDay, err := s.repo.VisitsByDay(ctx, code, since)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate visits by day: %w", op, err)
	}

	lastVisits, err := s.repo.LastVisits(ctx, code, statsLastVisits)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get last visits: %w", op, err)
	}

	uniqueVisitors, err := s.repo.CountUniqueVisitors(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to count unique visitors: %w", op, err)
	}

	return &models.LinkStats{
		Link:           link,
		TotalVisits:    link.VisitCount,
		UniqueVisitors: uniqueVisitors,
		VisitsByDay:    visitsByDay,
		LastVisits:     lastVisits,
	}, nil
}
