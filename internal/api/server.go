// Package api wires the HTTP surface: ingestion, admin endpoints,
// health, and metrics behind a single chi router.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/agnostech/event-gateway/internal/api/handlers"
	apimw "github.com/agnostech/event-gateway/internal/api/middleware"
	"github.com/agnostech/event-gateway/internal/gateway"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

type Config struct {
	Host    string
	Port    int
	Prefix  string
	Verbose bool

	// JwksURL enables JWT verification on the API routes when set.
	JwksURL             string
	JwksRefreshInterval time.Duration

	// MetricsHandler, when set, is mounted at GET <prefix>/metrics.
	MetricsHandler http.Handler
}

type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server

	jwtVerifier        *apimw.JWTVerifier
	eventsHandler      *handlers.EventsHandler
	rulesHandler       *handlers.RulesHandler
	validationsHandler *handlers.ValidationsHandler
}

func NewServer(ctx context.Context, cfg Config, gw gateway.Gateway) (*Server, error) {
	s := &Server{
		config:             cfg,
		eventsHandler:      handlers.NewEventsHandler(gw),
		rulesHandler:       handlers.NewRulesHandler(gw),
		validationsHandler: handlers.NewValidationsHandler(gw),
	}

	if cfg.JwksURL != "" {
		verifier, err := apimw.NewJWTVerifier(ctx, cfg.JwksURL, cfg.JwksRefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("jwt verifier: %w", err)
		}
		s.jwtVerifier = verifier
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if s.config.Verbose {
		r.Use(chimiddleware.Logger)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	prefix := s.config.Prefix
	if prefix == "" {
		prefix = "/"
	}

	r.Route(prefix, func(r chi.Router) {
		r.Get("/health-check", s.handleHealthCheck)
		if s.config.MetricsHandler != nil {
			r.Method(http.MethodGet, "/metrics", s.config.MetricsHandler)
		}

		r.Group(func(r chi.Router) {
			r.Use(apimw.TransportMetadata)
			if s.jwtVerifier != nil {
				r.Use(s.jwtVerifier.Middleware)
			}
			s.eventsHandler.RegisterRoutes(r)
			s.rulesHandler.RegisterRoutes(r)
			s.validationsHandler.RegisterRoutes(r)
		})
	})

	s.router = r
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	logger.Info("starting server", "host", s.config.Host, "port", s.config.Port, "prefix", s.config.Prefix)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
