package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/internal/validation"
)

type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Insert(ctx context.Context, link *models.Link) (*models.Link, error) {
	args := m.Called(ctx, link)
	stored, _ := args.Get(0).(*models.Link)
	return stored, args.Error(1)
}

func (m *MockLinkRepository) Lookup(ctx context.Context, code string) (*models.Link, error) {
	args := m.Called(ctx, code)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (m *MockLinkRepository) RecordVisit(ctx context.Context, code, visitorIP, userAgent string) error {
	args := m.Called(ctx, code, visitorIP, userAgent)
	return args.Error(0)
}

func (m *MockLinkRepository) VisitsByDay(ctx context.Context, code string, since time.Time) ([]models.DayCount, error) {
	args := m.Called(ctx, code, since)
	counts, _ := args.Get(0).([]models.DayCount)
	return counts, args.Error(1)
}

func (m *MockLinkRepository) LastVisits(ctx context.Context, code string, limit int) ([]models.Visit, error) {
	args := m.Called(ctx, code, limit)
	visits, _ := args.Get(0).([]models.Visit)
	return visits, args.Error(1)
}

func (m *MockLinkRepository) CountUniqueVisitors(ctx context.Context, code string) (int64, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(int64), args.Error(1)
}

type MockCodeGenerator struct {
	mock.Mock
}

func (m *MockCodeGenerator) Generate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Check(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockRateLimiter) Record(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

type MockURLValidator struct {
	mock.Mock
}

func (m *MockURLValidator) Validate(rawURL string) error {
	args := m.Called(rawURL)
	return args.Error(0)
}

type ShortLinkServiceTestSuite struct {
	suite.Suite
	now           time.Time
	errUnknown    error
	repoMock      *MockLinkRepository
	generatorMock *MockCodeGenerator
	limiterMock   *MockRateLimiter
	validatorMock *MockURLValidator
	svc           *ShortLinkService
}

func (suite *ShortLinkServiceTestSuite) SetupSuite() {
	suite.now = time.Date(2026, time.August, 3, 12, 0, 0, 0, time.UTC)
	suite.errUnknown = errors.New("unknown error")
}

func (suite *ShortLinkServiceTestSuite) SetupSubTest() {
	suite.repoMock = &MockLinkRepository{}
	suite.generatorMock = &MockCodeGenerator{}
	suite.limiterMock = &MockRateLimiter{}
	suite.validatorMock = &MockURLValidator{}
	suite.svc = New(suite.repoMock, suite.generatorMock, suite.limiterMock, suite.validatorMock)
	suite.svc.nowFunc = func() time.Time { return suite.now }
}

func (suite *ShortLinkServiceTestSuite) TearDownSubTest() {
	suite.repoMock.AssertExpectations(suite.T())
	suite.generatorMock.AssertExpectations(suite.T())
	suite.limiterMock.AssertExpectations(suite.T())
	suite.validatorMock.AssertExpectations(suite.T())
}

func (suite *ShortLinkServiceTestSuite) TestCreate() {
	params := CreateParams{
		URL:      "https://example.com",
		ClientIP: "203.0.113.7",
	}

	suite.Run("rate limit exceeded", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(ratelimit.ErrLimitExceeded)

		link, err := suite.svc.Create(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, ratelimit.ErrLimitExceeded)
		suite.Nil(link)
	})

	suite.Run("rejected url", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(&validation.Error{Reason: "url host \"example.com\" is not allowed"})

		link, err := suite.svc.Create(context.Background(), params)

		suite.Error(err)
		var vErr *validation.Error
		suite.ErrorAs(err, &vErr)
		suite.Nil(link)
	})

	suite.Run("trims url before validating", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(&validation.Error{Reason: "url host \"example.com\" is not allowed"})

		link, err := suite.svc.Create(context.Background(), CreateParams{
			URL:      "  https://example.com  ",
			ClientIP: "203.0.113.7",
		})

		suite.Error(err)
		suite.Nil(link)
	})

	suite.Run("expiry not in the future", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)

		expiresAt := suite.now
		link, err := suite.svc.Create(context.Background(), CreateParams{
			URL:       "https://example.com",
			ExpiresAt: &expiresAt,
			ClientIP:  "203.0.113.7",
		})

		suite.Error(err)
		var vErr *validation.Error
		suite.ErrorAs(err, &vErr)
		suite.Contains(vErr.Reason, "expires_at")
		suite.Nil(link)
	})

	suite.Run("non-positive max uses", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)

		maxUses := int64(0)
		link, err := suite.svc.Create(context.Background(), CreateParams{
			URL:      "https://example.com",
			MaxUses:  &maxUses,
			ClientIP: "203.0.113.7",
		})

		suite.Error(err)
		var vErr *validation.Error
		suite.ErrorAs(err, &vErr)
		suite.Contains(vErr.Reason, "max_uses")
		suite.Nil(link)
	})

	suite.Run("generation exhausted", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)
		suite.generatorMock.
			On("Generate", context.Background()).
			Once().
			Return("", shortcode.ErrExhausted)

		link, err := suite.svc.Create(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, shortcode.ErrExhausted)
		suite.Nil(link)
	})

	suite.Run("retries on insert race", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)
		suite.generatorMock.
			On("Generate", context.Background()).
			Twice().
			Return("abc123", nil)
		suite.repoMock.
			On("Insert", context.Background(), mock.Anything).
			Once().
			Return(nil, database.ErrCodeExists)
		suite.repoMock.
			On("Insert", context.Background(), mock.Anything).
			Once().
			Return(&models.Link{Code: "abc123", OriginalURL: "https://example.com", IsActive: true}, nil)
		suite.limiterMock.
			On("Record", context.Background(), "203.0.113.7").
			Once().
			Return(nil)

		link, err := suite.svc.Create(context.Background(), params)

		suite.NoError(err)
		suite.NotNil(link)
		suite.Equal("abc123", link.Code)
	})

	suite.Run("maximum retries error", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)
		suite.generatorMock.
			On("Generate", context.Background()).
			Times(5).
			Return("abc123", nil)
		suite.repoMock.
			On("Insert", context.Background(), mock.Anything).
			Times(5).
			Return(nil, database.ErrCodeExists)

		link, err := suite.svc.Create(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, ErrMaxRetriesExceeded)
		suite.Nil(link)
	})

	suite.Run("unknown insert error", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)
		suite.generatorMock.
			On("Generate", context.Background()).
			Once().
			Return("abc123", nil)
		suite.repoMock.
			On("Insert", context.Background(), mock.Anything).
			Once().
			Return(nil, suite.errUnknown)

		link, err := suite.svc.Create(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(link)
	})

	suite.Run("record error after insert", func() {
		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)
		suite.generatorMock.
			On("Generate", context.Background()).
			Once().
			Return("abc123", nil)
		suite.repoMock.
			On("Insert", context.Background(), mock.Anything).
			Once().
			Return(&models.Link{Code: "abc123", OriginalURL: "https://example.com", IsActive: true}, nil)
		suite.limiterMock.
			On("Record", context.Background(), "203.0.113.7").
			Once().
			Return(suite.errUnknown)

		link, err := suite.svc.Create(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		expiresAt := suite.now.Add(24 * time.Hour)
		maxUses := int64(5)

		suite.limiterMock.
			On("Check", context.Background(), "203.0.113.7").
			Once().
			Return(nil)
		suite.validatorMock.
			On("Validate", "https://example.com").
			Once().
			Return(nil)
		suite.generatorMock.
			On("Generate", context.Background()).
			Once().
			Return("abc123", nil)
		suite.repoMock.
			On("Insert", context.Background(), mock.MatchedBy(func(link *models.Link) bool {
				return link.Code == "abc123" &&
					link.OriginalURL == "https://example.com" &&
					link.CreatorIP == "203.0.113.7" &&
					link.IsActive &&
					link.ExpiresAt != nil && link.ExpiresAt.Equal(expiresAt) &&
					link.MaxUses != nil && *link.MaxUses == maxUses
			})).
			Once().
			Return(&models.Link{
				ID:          1,
				Code:        "abc123",
				OriginalURL: "https://example.com",
				CreatorIP:   "203.0.113.7",
				ExpiresAt:   &expiresAt,
				MaxUses:     &maxUses,
				IsActive:    true,
			}, nil)
		suite.limiterMock.
			On("Record", context.Background(), "203.0.113.7").
			Once().
			Return(nil)

		link, err := suite.svc.Create(context.Background(), CreateParams{
			URL:       "https://example.com",
			ExpiresAt: &expiresAt,
			MaxUses:   &maxUses,
			ClientIP:  "203.0.113.7",
		})

		suite.NoError(err)
		suite.NotNil(link)
		suite.Equal("abc123", link.Code)
		suite.Equal("https://example.com", link.OriginalURL)
		suite.True(link.IsActive)
	})
}

func (suite *ShortLinkServiceTestSuite) TestResolve() {
	suite.Run("link not found", func() {
		suite.repoMock.
			On("Lookup", context.Background(), "missing").
			Once().
			Return(nil, database.ErrLinkNotFound)

		originalURL, err := suite.svc.Resolve(context.Background(), "missing", "198.51.100.1", "curl/8.0")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Empty(originalURL)
	})

	suite.Run("inactive link", func() {
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{Code: "abc123", OriginalURL: "https://example.com", IsActive: false}, nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", "curl/8.0")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Empty(originalURL)
	})

	suite.Run("expired link", func() {
		expiresAt := suite.now.Add(-time.Minute)
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{
				Code:        "abc123",
				OriginalURL: "https://example.com",
				ExpiresAt:   &expiresAt,
				IsActive:    true,
			}, nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", "curl/8.0")

		suite.Error(err)
		suite.ErrorIs(err, ErrLinkExpired)
		suite.Empty(originalURL)
	})

	suite.Run("expiry boundary is exclusive", func() {
		expiresAt := suite.now
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{
				Code:        "abc123",
				OriginalURL: "https://example.com",
				ExpiresAt:   &expiresAt,
				IsActive:    true,
			}, nil)
		suite.repoMock.
			On("RecordVisit", context.Background(), "abc123", "198.51.100.1", "curl/8.0").
			Once().
			Return(nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", "curl/8.0")

		suite.NoError(err)
		suite.Equal("https://example.com", originalURL)
	})

	suite.Run("uses exhausted", func() {
		maxUses := int64(2)
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{
				Code:        "abc123",
				OriginalURL: "https://example.com",
				MaxUses:     &maxUses,
				VisitCount:  2,
				IsActive:    true,
			}, nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", "curl/8.0")

		suite.Error(err)
		suite.ErrorIs(err, ErrLinkUsesExhausted)
		suite.Empty(originalURL)
	})

	suite.Run("last remaining use", func() {
		maxUses := int64(3)
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{
				Code:        "abc123",
				OriginalURL: "https://example.com",
				MaxUses:     &maxUses,
				VisitCount:  2,
				IsActive:    true,
			}, nil)
		suite.repoMock.
			On("RecordVisit", context.Background(), "abc123", "198.51.100.1", "curl/8.0").
			Once().
			Return(nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", "curl/8.0")

		suite.NoError(err)
		suite.Equal("https://example.com", originalURL)
	})

	suite.Run("record visit error", func() {
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{Code: "abc123", OriginalURL: "https://example.com", IsActive: true}, nil)
		suite.repoMock.
			On("RecordVisit", context.Background(), "abc123", "198.51.100.1", "curl/8.0").
			Once().
			Return(suite.errUnknown)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", "curl/8.0")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Empty(originalURL)
	})

	suite.Run("truncates long user agent", func() {
		longAgent := strings.Repeat("a", maxUserAgentLength+100)

		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{Code: "abc123", OriginalURL: "https://example.com", IsActive: true}, nil)
		suite.repoMock.
			On("RecordVisit", context.Background(), "abc123", "198.51.100.1", longAgent[:maxUserAgentLength]).
			Once().
			Return(nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", longAgent)

		suite.NoError(err)
		suite.Equal("https://example.com", originalURL)
	})

	suite.Run("success", func() {
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{Code: "abc123", OriginalURL: "https://example.com", IsActive: true}, nil)
		suite.repoMock.
			On("RecordVisit", context.Background(), "abc123", "198.51.100.1", "curl/8.0").
			Once().
			Return(nil)

		originalURL, err := suite.svc.Resolve(context.Background(), "abc123", "198.51.100.1", "curl/8.0")

		suite.NoError(err)
		suite.Equal("https://example.com", originalURL)
	})
}

func (suite *ShortLinkServiceTestSuite) TestStats() {
	suite.Run("link not found", func() {
		suite.repoMock.
			On("Lookup", context.Background(), "missing").
			Once().
			Return(nil, database.ErrLinkNotFound)

		stats, err := suite.svc.Stats(context.Background(), "missing")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(stats)
	})

	suite.Run("aggregation error", func() {
		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{Code: "abc123", OriginalURL: "https://example.com", IsActive: true}, nil)
		suite.repoMock.
			On("VisitsByDay", context.Background(), "abc123", suite.now.Add(-statsDayWindow)).
			Once().
			Return(nil, suite.errUnknown)

		stats, err := suite.svc.Stats(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(stats)
	})

	suite.Run("success", func() {
		visitedAt := suite.now.Add(-time.Hour)

		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{
				Code:        "abc123",
				OriginalURL: "https://example.com",
				VisitCount:  7,
				IsActive:    true,
			}, nil)
		suite.repoMock.
			On("VisitsByDay", context.Background(), "abc123", suite.now.Add(-statsDayWindow)).
			Once().
			Return([]models.DayCount{
				{Day: "2026-08-01", Visits: 3},
				{Day: "2026-08-02", Visits: 4},
			}, nil)
		suite.repoMock.
			On("LastVisits", context.Background(), "abc123", statsLastVisits).
			Once().
			Return([]models.Visit{
				{LinkCode: "abc123", VisitorIP: "198.51.100.1", VisitedAt: visitedAt},
			}, nil)
		suite.repoMock.
			On("CountUniqueVisitors", context.Background(), "abc123").
			Once().
			Return(int64(3), nil)

		stats, err := suite.svc.Stats(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(stats)
		suite.Equal("abc123", stats.Link.Code)
		suite.EqualValues(7, stats.TotalVisits)
		suite.EqualValues(3, stats.UniqueVisitors)
		suite.Len(stats.VisitsByDay, 2)
		suite.Equal("2026-08-01", stats.VisitsByDay[0].Day)
		suite.Len(stats.LastVisits, 1)
	})

	suite.Run("reports expired links", func() {
		expiresAt := suite.now.Add(-time.Hour)

		suite.repoMock.
			On("Lookup", context.Background(), "abc123").
			Once().
			Return(&models.Link{
				Code:        "abc123",
				OriginalURL: "https://example.com",
				ExpiresAt:   &expiresAt,
				VisitCount:  2,
				IsActive:    false,
			}, nil)
		suite.repoMock.
			On("VisitsByDay", context.Background(), "abc123", suite.now.Add(-statsDayWindow)).
			Once().
			Return([]models.DayCount{}, nil)
		suite.repoMock.
			On("LastVisits", context.Background(), "abc123", statsLastVisits).
			Once().
			Return([]models.Visit{}, nil)
		suite.repoMock.
			On("CountUniqueVisitors", context.Background(), "abc123").
			Once().
			Return(int64(1), nil)

		stats, err := suite.svc.Stats(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(stats)
		suite.False(stats.Link.IsActive)
		suite.EqualValues(2, stats.TotalVisits)
	})
}

func TestShortLinkServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ShortLinkServiceTestSuite))
}
