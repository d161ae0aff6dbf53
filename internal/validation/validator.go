// Package validation decides whether a candidate URL is admissible as a
// shortening target. All checks are syntactic; no network access is involved.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// MaxURLLength bounds the length of a candidate URL after trimming.
const MaxURLLength = 2048

// Error reports why a URL was rejected. The reason is safe to return to
// clients.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func newError(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// defaultBlockedHosts are never acceptable targets regardless of
// configuration.
var defaultBlockedHosts = []string{"localhost", "127.0.0.1", "::1", "0.0.0.0"}

// Validator runs the admissibility checks in a fixed order and reports the
// first rule a URL violates.
type Validator struct {
	ownHost      string
	blockedHosts map[string]struct{}
	patterns     []*regexp.Regexp
}

// New creates a Validator that additionally rejects URLs pointing back at
// ownHost, URLs whose host appears in extraHosts, and URLs matching any of
// the given patterns. It returns an error if a pattern doesn't compile.
func New(ownHost string, extraHosts, patterns []string) (*Validator, error) {
	const op = "validation.New"

	blocked := make(map[string]struct{}, len(defaultBlockedHosts)+len(extraHosts))
	for _, host := range defaultBlockedHosts {
		blocked[host] = struct{}{}
	}
	for _, host := range extraHosts {
		blocked[strings.ToLower(strings.TrimSpace(host))] = struct{}{}
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to compile pattern %q: %w", op, pattern, err)
		}
		compiled = append(compiled, re)
	}

	return &Validator{
		ownHost:      strings.ToLower(ownHost),
		blockedHosts: blocked,
		patterns:     compiled,
	}, nil
}

// Validate checks rawURL against every admissibility rule and returns an
// *Error naming the first rule that failed, or nil if the URL is acceptable.
func (v *Validator) Validate(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)

	if rawURL == "" {
		return newError("url must not be empty")
	}
	if len(rawURL) > MaxURLLength {
		return newError("url must not exceed %d characters", MaxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return newError("url must be a well-formed absolute url")
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return newError("url scheme must be http or https")
	}

	host := strings.ToLower(parsed.Hostname())
	if _, ok := v.blockedHosts[host]; ok {
		return newError("url host %q is not allowed", host)
	}

	if ip := net.ParseIP(host); ip != nil && isReservedIP(ip) {
		return newError("url host must not be a private or reserved address")
	}

	if v.ownHost != "" && host == v.ownHost {
		return newError("url must not point back at this service")
	}

	for _, re := range v.patterns {
		if re.MatchString(rawURL) {
			return newError("url matches a blocked content pattern")
		}
	}

	return nil
}

// isReservedIP reports whether ip belongs to a private or otherwise
// non-routable range.
func isReservedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}
