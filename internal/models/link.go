// Package models contains the domain types shared between the storage,
// service and delivery layers.
package models

import "time"

// TimeLayout is the canonical timestamp format exposed by the API. Formatted
// values sort lexicographically in chronological order.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in the canonical API format, normalized to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Link represents a short code bound to a target URL, together with the
// optional constraints that govern its resolution.
type Link struct {
	// ID is the unique identifier of the link.
	ID int64

	// Code is the unique short code the link is addressed by.
	Code string

	// OriginalURL is the validated target the short code redirects to.
	OriginalURL string

	// CreatorIP is the client address the link was created from.
	CreatorIP string

	// ExpiresAt is the optional instant after which the link stops resolving.
	ExpiresAt *time.Time

	// MaxUses is the optional cap on successful resolutions.
	MaxUses *int64

	// VisitCount is the number of successful resolutions so far.
	VisitCount int64

	// IsActive reports whether the link is administratively enabled.
	IsActive bool

	// CreatedAt is the timestamp when the link was created.
	CreatedAt time.Time
}

// Expired reports whether the link carries an expiry that lies before now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// UsesExhausted reports whether the visit counter has reached the usage cap.
func (l *Link) UsesExhausted() bool {
	return l.MaxUses != nil && l.VisitCount >= *l.MaxUses
}

// Visit is an immutable record of one successful resolution.
type Visit struct {
	ID        int64
	LinkCode  string
	VisitorIP string
	UserAgent string
	VisitedAt time.Time
}

// DayCount is the number of visits recorded on one calendar day.
type DayCount struct {
	// Day is the calendar day in YYYY-MM-DD form.
	Day string

	// Visits is the number of visits recorded on that day.
	Visits int64
}

// LinkStats aggregates a link's visit history for reporting.
type LinkStats struct {
	// Link is the link the statistics belong to.
	Link *Link

	// TotalVisits is the all-time number of successful resolutions.
	TotalVisits int64

	// UniqueVisitors is the number of distinct visitor addresses.
	UniqueVisitors int64

	// VisitsByDay holds per-day visit counts for the reporting window,
	// ordered oldest day first.
	VisitsByDay []DayCount

	// LastVisits holds the most recent visits, newest first.
	LastVisits []Visit
}
