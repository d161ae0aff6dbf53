// Package http provides the HTTP delivery layer for the short link service.
// It contains the router, the request handlers and the types used for
// decoding input, validating it and formatting responses.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vadimbarashkov/shortlink/internal/models"
	"github.com/vadimbarashkov/shortlink/internal/password"
	"github.com/vadimbarashkov/shortlink/internal/service"
)

// ShortLinkService defines the interface for the core short link business
// logic.
type ShortLinkService interface {
	// Create validates the request and stores a new link under a freshly
	// generated short code.
	Create(ctx context.Context, params service.CreateParams) (*models.Link, error)

	// Resolve returns the original URL bound to the short code and records
	// the visit.
	Resolve(ctx context.Context, code, visitorIP, userAgent string) (string, error)

	// Stats returns the statistics report for the short code.
	Stats(ctx context.Context, code string) (*models.LinkStats, error)
}

// PasswordGenerator produces random passwords for the utility endpoint.
type PasswordGenerator interface {
	Generate(opts password.Options) (string, error)
}

// QREncoder renders text as PNG-encoded QR images.
type QREncoder interface {
	EncodePNG(text string, size int) ([]byte, error)
}

// getValidate initializes a validator instance for incoming request
// payloads. Field names in error details follow the json tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and
// middleware configured. baseURL is the public prefix short links are served
// under.
func NewRouter(logger *httplog.Logger, baseURL string, svc ShortLinkService, passGen PasswordGenerator, qrEnc QREncoder) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.AllowContentType("application/json"))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)
		r.Get("/password", handleGeneratePassword(passGen))
		r.Get("/qr", handleGenerateQR(qrEnc))

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", handleCreateLink(baseURL, svc, validate))

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/stats", handleLinkStats(baseURL, svc))
			})
		})
	})

	r.Get("/{code}", handleResolveCode(svc))

	return r
}
