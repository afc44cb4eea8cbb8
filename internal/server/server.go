package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/me/timetable/internal/autofill"
	"github.com/me/timetable/internal/batch"
	"github.com/me/timetable/internal/config"
	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/internal/grid"
	"github.com/me/timetable/internal/lifecycle"
	"github.com/me/timetable/internal/notify"
	"github.com/me/timetable/internal/store"
	"github.com/me/timetable/pkg/model"
)

// Server is the timetable REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	calendar  model.Calendar
	dir       directory.Directory
	events    lifecycle.EventSink // optional; receives publish notifications
	broker    *notify.Broker      // optional; feeds /events
	strategy  autofill.Strategy
	lifecycle *lifecycle.Controller
	batch     *batch.Coordinator
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithDirectory sets the instructor directory used for names, rotation and auto-fill.
func WithDirectory(dir directory.Directory) Option {
	return func(s *Server) {
		s.dir = dir
	}
}

// WithEvents sets the sink that receives publish and unpublish events.
func WithEvents(sink lifecycle.EventSink) Option {
	return func(s *Server) {
		s.events = sink
	}
}

// WithBroker enables the /events stream.
func WithBroker(b *notify.Broker) Option {
	return func(s *Server) {
		s.broker = b
	}
}

// WithStrategy replaces the default greedy auto-fill strategy.
func WithStrategy(st autofill.Strategy) Option {
	return func(s *Server) {
		s.strategy = st
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, cal model.Calendar, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		calendar:  cal,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.strategy == nil {
		s.strategy = autofill.NewGreedy(autofill.WithLogger(logger))
	}

	lcOpts := []lifecycle.Option{lifecycle.WithLogger(logger)}
	if s.dir != nil {
		lcOpts = append(lcOpts, lifecycle.WithDirectory(s.dir))
	}
	if s.events != nil {
		lcOpts = append(lcOpts, lifecycle.WithEvents(s.events))
	}
	s.lifecycle = lifecycle.New(st, cal, lcOpts...)
	s.batch = batch.New(st, s.lifecycle, cal,
		batch.WithConcurrency(cfg.Concurrency),
		batch.WithLogger(logger),
	)

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	if len(s.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", tenantHeader},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(tenantMiddleware(s.config.DefaultTenant))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Get("/calendar", s.handleCalendar)
		r.Get("/instructors", s.handleInstructors)

		r.Route("/terms/{term}", func(r chi.Router) {
			r.Route("/grids", func(r chi.Router) {
				r.Get("/", s.handleListGrids)
				r.Route("/{class}", func(r chi.Router) {
					r.Get("/", s.handleGetGrid)
					r.Post("/unpublish", s.handleUnpublish)
					r.Get("/export.xlsx", s.handleExportGrid)
				})
			})
			r.Get("/export.xlsx", s.handleExportTerm)
			r.Post("/import.xlsx", s.handleImport)
			r.Post("/edits", s.handleEdits)
			r.Post("/conflicts/check", s.handleCheckConflict)
			r.Post("/autofill", s.handleAutofill)
			r.Post("/batch/save", s.handleBatchSave)
			r.Post("/batch/publish", s.handleBatchPublish)
		})

		// SSE stream of lifecycle events
		r.Get("/events", s.handleEvents)
	})
}

// resolver returns a rotation pool over the directory, or nil without one.
func (s *Server) resolver() grid.Resolver {
	if s.dir == nil {
		return nil
	}
	return grid.NewRotationPool(s.dir.List())
}

// scopeFor builds the tenant and term scope of a request.
func scopeFor(r *http.Request) model.Scope {
	return model.Scope{
		TenantID: TenantFromContext(r.Context()),
		Term:     chi.URLParam(r, "term"),
	}
}
