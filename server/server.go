package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dayplanhq/go-session-engine/calendar"
	"github.com/dayplanhq/go-session-engine/exchange"
	"github.com/dayplanhq/go-session-engine/internal/config"
	"github.com/dayplanhq/go-session-engine/orchestrator"
	"github.com/dayplanhq/go-session-engine/statestore"
)

// CallbackProcessor is the slice of the exchange processor the front
// door drives.
type CallbackProcessor interface {
	AuthCodeURL(ctx context.Context) (string, error)
	ProcessCallback(ctx context.Context, code, state string) (*exchange.Result, error)
}

// RunFactory builds a fresh orchestrator for one callback. Each run owns
// its own transition channel, so runs are never shared between requests.
type RunFactory func(onComplete func(redirect string), onError func(message string)) (*orchestrator.Orchestrator, error)

// Server is the HTTP front door: it initiates the provider redirect,
// receives the callback, and drives the post-authentication run.
type Server struct {
	router    chi.Router
	config    config.Config
	processor CallbackProcessor
	health    *calendar.Service
	store     statestore.Store
	newRun    RunFactory
	log       zerolog.Logger
}

// New creates a Server and mounts its routes.
func New(cfg config.Config, processor CallbackProcessor, health *calendar.Service, store statestore.Store, newRun RunFactory, log zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if processor == nil {
		return nil, errors.New("[server.New] processor is required")
	}
	if health == nil {
		return nil, errors.New("[server.New] calendar health service is required")
	}
	if store == nil {
		return nil, errors.New("[server.New] store is required")
	}
	if newRun == nil {
		return nil, errors.New("[server.New] run factory is required")
	}

	s := &Server{
		config:    cfg,
		processor: processor,
		health:    health,
		store:     store,
		newRun:    newRun,
		log:       log,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get(RouteLogin, s.LoginHandler())
	router.Get(RouteCallback, s.CallbackHandler())
	router.Get(RouteHealthz, s.HealthzHandler())
	router.Get(RouteCalendarHealth, s.CalendarHealthHandler())

	s.router = router
	return s, nil
}

// Router returns the mounted handler.
func (s *Server) Router() http.Handler {
	return s.router
}
