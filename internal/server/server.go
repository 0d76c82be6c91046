// Package server assembles the HTTP router and server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/pixstore/service/docs/swagger"
	"github.com/pixstore/service/internal/image"
	"github.com/pixstore/service/internal/metrics"
	appMiddleware "github.com/pixstore/service/internal/middleware"
)

// Options wires the router's collaborators.
type Options struct {
	JWTSecret string
	Images    *image.Handler
	Metrics   *metrics.Metrics
	Log       logrus.FieldLogger
}

// NewRouter builds the chi router with the middleware chain and every route mounted.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(opts.Log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	opts.Images.Routes(r, appMiddleware.RequireAuth(opts.JWTSecret))
	return r
}

// New returns an http.Server listening on addr.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
		// Uploads of up to MAX_FILE_SIZE must fit in the read window.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
