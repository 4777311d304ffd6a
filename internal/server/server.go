// Package server exposes the instrument's HTTP surface.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server wraps the chi router with the instrument's middleware chain.
type Server struct {
	Router *chi.Mux
	logger *slog.Logger
}

// New builds the router with request ids, structured request logging, a
// request timeout, panic recovery, and OpenTelemetry HTTP instrumentation.
func New(logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "feedlab")
	})

	return &Server{
		Router: r,
		logger: logger,
	}
}
