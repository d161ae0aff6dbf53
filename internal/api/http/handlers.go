package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"
	"github.com/vadimbarashkov/shortlink/internal/password"
	"github.com/vadimbarashkov/shortlink/internal/qr"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
	"github.com/vadimbarashkov/shortlink/internal/service"
	"github.com/vadimbarashkov/shortlink/internal/validation"
	"github.com/vadimbarashkov/shortlink/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// createLinkRequest represents the payload for creating a short link. Values
// may arrive as query parameters, as a JSON body, or both; body values win.
type createLinkRequest struct {
	URL       string `json:"url" validate:"required"`
	ExpiresAt string `json:"expires_at,omitempty"`
	MaxUses   *int64 `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
}

// fromQuery prefills the request from query parameters, before the JSON body
// is decoded over it.
func (req *createLinkRequest) fromQuery(r *http.Request) error {
	q := r.URL.Query()

	req.URL = q.Get("url")
	req.ExpiresAt = q.Get("expires_at")

	if raw := q.Get("max_uses"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("max_uses must be an integer")
		}
		req.MaxUses = &n
	}

	return nil
}

// parseTimestamp accepts the canonical layout and falls back to RFC 3339.
// Values without zone information are taken as UTC.
func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(models.TimeLayout, value); err == nil {
		return t, nil
	}

	return time.Parse(time.RFC3339, value)
}

// clientIP extracts the client address normalized by the RealIP middleware,
// stripping the port when the raw remote address is used.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "unknown"
	}

	return addr
}

// linkResponse represents the response payload for a created short link.
type linkResponse struct {
	Code        string  `json:"code"`
	ShortURL    string  `json:"short_url"`
	OriginalURL string  `json:"original_url"`
	CreatedAt   string  `json:"created_at"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
	MaxUses     *int64  `json:"max_uses,omitempty"`
}

// toLinkResponse converts a link model from the business layer into a
// response payload.
func toLinkResponse(baseURL string, link *models.Link) linkResponse {
	resp := linkResponse{
		Code:        link.Code,
		ShortURL:    strings.TrimRight(baseURL, "/") + "/" + link.Code,
		OriginalURL: link.OriginalURL,
		CreatedAt:   models.FormatTime(link.CreatedAt),
		MaxUses:     link.MaxUses,
	}

	if link.ExpiresAt != nil {
		formatted := models.FormatTime(*link.ExpiresAt)
		resp.ExpiresAt = &formatted
	}

	return resp
}

// visitResponse represents one visit entry in a statistics payload.
type visitResponse struct {
	VisitedAt string `json:"visited_at"`
	VisitorIP string `json:"visitor_ip"`
	UserAgent string `json:"user_agent"`
}

// dayCountResponse represents the visits recorded on one calendar day.
type dayCountResponse struct {
	Day    string `json:"day"`
	Visits int64  `json:"visits"`
}

// linkStatsResponse represents the statistics payload for a short link.
type linkStatsResponse struct {
	linkResponse
	IsActive       bool               `json:"is_active"`
	TotalVisits    int64              `json:"total_visits"`
	UniqueVisitors int64              `json:"unique_visitors"`
	VisitsByDay    []dayCountResponse `json:"visits_by_day"`
	LastVisits     []visitResponse    `json:"last_visits"`
}

// toLinkStatsResponse converts a statistics model into a response payload.
func toLinkStatsResponse(baseURL string, stats *models.LinkStats) linkStatsResponse {
	resp := linkStatsResponse{
		linkResponse:   toLinkResponse(baseURL, stats.Link),
		IsActive:       stats.Link.IsActive,
		TotalVisits:    stats.TotalVisits,
		UniqueVisitors: stats.UniqueVisitors,
		VisitsByDay:    make([]dayCountResponse, 0, len(stats.VisitsByDay)),
		LastVisits:     make([]visitResponse, 0, len(stats.LastVisits)),
	}

	for _, count := range stats.VisitsByDay {
		resp.VisitsByDay = append(resp.VisitsByDay, dayCountResponse{
			Day:    count.Day,
			Visits: count.Visits,
		})
	}

	for _, visit := range stats.LastVisits {
		resp.LastVisits = append(resp.LastVisits, visitResponse{
			VisitedAt: models.FormatTime(visit.VisitedAt),
			VisitorIP: visit.VisitorIP,
			UserAgent: visit.UserAgent,
		})
	}

	return resp
}

// renderServiceError maps errors from the business layer onto the HTTP
// error taxonomy. Unrecognized errors become opaque server errors; their
// details go to the log only.
func renderServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var vErr *validation.Error

	switch {
	case errors.As(err, &vErr):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ClientErrorResponse(vErr.Reason))
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, response.RateLimitExceededResponse)
	case errors.Is(err, database.ErrLinkNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.ResourceNotFoundResponse)
	case errors.Is(err, service.ErrLinkExpired):
		render.Status(r, http.StatusGone)
		render.JSON(w, r, response.LinkExpiredResponse)
	case errors.Is(err, service.ErrLinkUsesExhausted):
		render.Status(r, http.StatusGone)
		render.JSON(w, r, response.LinkExhaustedResponse)
	default:
		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ServerErrorResponse)
	}
}

// handleCreateLink handles POST requests to shorten a URL.
//
// Parameters are accepted as query parameters and as a JSON body; the body
// takes precedence. The handler validates the input, calls the link service
// and returns the created link with its short URL.
func handleCreateLink(baseURL string, svc ShortLinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateLink"
	const successMsg = "The link has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest

		if err := req.fromQuery(r); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ClientErrorResponse(err.Error()))
			return
		}

		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		params := service.CreateParams{
			URL:      req.URL,
			MaxUses:  req.MaxUses,
			ClientIP: clientIP(r),
		}

		if req.ExpiresAt != "" {
			t, err := parseTimestamp(req.ExpiresAt)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse("expires_at must be formatted as "+models.TimeLayout))
				return
			}
			params.ExpiresAt = &t
		}

		link, err := svc.Create(r.Context(), params)
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(baseURL, link)))
	}
}

// handleResolveCode handles GET requests on a short code and redirects to
// the original URL.
//
// Every successful resolution is recorded as a visit before the redirect is
// issued.
func handleResolveCode(svc ShortLinkService) http.HandlerFunc {
	const op = "api.http.handleResolveCode"

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		originalURL, err := svc.Resolve(r.Context(), code, clientIP(r), r.UserAgent())
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		http.Redirect(w, r, originalURL, http.StatusMovedPermanently)
	}
}

// handleLinkStats handles GET requests for the statistics of a short link.
//
// Expired, exhausted and deactivated links still report their history.
func handleLinkStats(baseURL string, svc ShortLinkService) http.HandlerFunc {
	const op = "api.http.handleLinkStats"
	const successMsg = "The link stats were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		stats, err := svc.Stats(r.Context(), code)
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkStatsResponse(baseURL, stats)))
	}
}

// passwordResponse represents the response payload for a generated password.
type passwordResponse struct {
	Password string `json:"password"`
	Length   int    `json:"length"`
}

// handleGeneratePassword handles GET requests for a random password.
//
// Character classes are selected with the digits, symbols and uppercase
// query flags; length defaults to password.DefaultLength.
func handleGeneratePassword(gen PasswordGenerator) http.HandlerFunc {
	const op = "api.http.handleGeneratePassword"
	const successMsg = "The password has been generated successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		opts := password.DefaultOptions()
		q := r.URL.Query()

		if raw := q.Get("length"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse("length must be an integer"))
				return
			}
			opts.Length = n
		}

		for flag, dst := range map[string]*bool{
			"digits":    &opts.Digits,
			"symbols":   &opts.Symbols,
			"uppercase": &opts.Uppercase,
		} {
			raw := q.Get(flag)
			if raw == "" {
				continue
			}

			v, err := strconv.ParseBool(raw)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse(flag+" must be a boolean"))
				return
			}
			*dst = v
		}

		pass, err := gen.Generate(opts)
		if err != nil {
			if errors.Is(err, password.ErrInvalidLength) {
				msg := fmt.Sprintf("length must be between %d and %d", password.MinLength, password.MaxLength)
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse(msg))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, passwordResponse{
			Password: pass,
			Length:   opts.Length,
		}))
	}
}

// handleGenerateQR handles GET requests for a QR code image.
//
// The response is a PNG rendering of the text query parameter, sized by the
// optional size parameter.
func handleGenerateQR(enc QREncoder) http.HandlerFunc {
	const op = "api.http.handleGenerateQR"

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		text := q.Get("text")
		size := qr.DefaultSize

		if raw := q.Get("size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse("size must be an integer"))
				return
			}
			size = n
		}

		data, err := enc.EncodePNG(text, size)
		if err != nil {
			switch {
			case errors.Is(err, qr.ErrEmptyText):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse("text is required"))
			case errors.Is(err, qr.ErrTextTooLong):
				msg := fmt.Sprintf("text must not exceed %d characters", qr.MaxTextLength)
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse(msg))
			case errors.Is(err, qr.ErrInvalidSize):
				msg := fmt.Sprintf("size must be between %d and %d", qr.MinSize, qr.MaxSize)
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ClientErrorResponse(msg))
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
