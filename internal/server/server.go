package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/gosuda/actrec/internal/api/v1"
	"github.com/gosuda/actrec/internal/api/ws"
	"github.com/gosuda/actrec/internal/config"
	"github.com/gosuda/actrec/internal/message"
	"github.com/gosuda/actrec/internal/server/middleware"
)

// Deps are the components the HTTP surface is wired to.
type Deps struct {
	Store      v1.ActivityStore
	Decoder    *message.Decoder
	Sink       v1.EventSink
	Observer   v1.RequestObserver
	Dispatcher *message.Dispatcher
	Tail       ws.Subscriber // nil when Redis is not configured
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	wsHub      *ws.Hub
}

// New creates a Server with all routes wired. ctx bounds the lifetime of
// background helpers such as the rate limiter cleanup.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", middleware.ProducerHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	hub := ws.NewHub(deps.Dispatcher, deps.Tail,
		ws.WithOriginPatterns(originPatterns(cfg.Server.CORSOrigins)),
		ws.WithFrameRate(cfg.Ingest.RateLimit, cfg.Ingest.RateBurst),
	)

	s := &Server{
		router: router,
		wsHub:  hub,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Reader routes, unlimited so polling readers are never throttled.
	// 2. Producer routes, rate limited per producer.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			api := humachi.New(r, apiConfig("Activity Recorder Log API"))
			registerReaderRoutes(api, deps)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(ctx, cfg.Ingest.RateLimit, cfg.Ingest.RateBurst))
			api := humachi.New(r, apiConfig("Activity Recorder Ingest API"))
			registerProducerRoutes(api, deps)
		})
	})

	// WebSocket routes.
	router.Route("/ws", func(r chi.Router) {
		registerWSRoutes(r, hub)
	})

	// Health check.
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

func apiConfig(title string) huma.Config {
	c := huma.DefaultConfig(title, "1.0.0")
	c.Servers = []*huma.Server{
		{URL: "/api/v1"},
	}
	return c
}

// originPatterns converts CORS origins into WebSocket host patterns.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
