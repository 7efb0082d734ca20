package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/dayplanhq/go-session-engine/backend"
	"github.com/dayplanhq/go-session-engine/calendar"
	"github.com/dayplanhq/go-session-engine/exchange"
	"github.com/dayplanhq/go-session-engine/identity"
	"github.com/dayplanhq/go-session-engine/internal/config"
	"github.com/dayplanhq/go-session-engine/orchestrator"
	"github.com/dayplanhq/go-session-engine/server"
	"github.com/dayplanhq/go-session-engine/statestore"
	"github.com/dayplanhq/go-session-engine/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg := config.New()
	displayAppname(cfg.GetAppName())

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", cfg.GetAppName()).Logger()

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv.Router()}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// buildServer wires the engine: state store, identity repo, token manager,
// backend client, exchange processor, calendar health and the
// per-callback orchestration factory.
func buildServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*server.Server, error) {
	store, err := newStateStore(cfg)
	if err != nil {
		return nil, err
	}

	identities := identity.NewInMemoryRepo()

	manager, err := token.NewManager(cfg.GetBackendBaseURL(), store,
		token.WithSafetyMargin(cfg.GetTokenSafetyMargin()),
		token.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	backendClient, err := backend.NewClient(manager, backend.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	txns, err := exchange.NewTxnStore(store, exchange.WithValidity(cfg.GetStateValidity()))
	if err != nil {
		return nil, err
	}

	verifier, err := exchange.NewOIDCVerifier(ctx, cfg.GetIssuer(), cfg.GetClientID())
	if err != nil {
		return nil, err
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURL:  cfg.GetBaseURL() + cfg.GetRedirectPath(),
		Scopes:       cfg.GetScopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.GetAuthURL(),
			TokenURL: cfg.GetTokenURL(),
		},
	}

	processor, err := exchange.NewProcessor(oauthConfig, txns, verifier, identities, backendClient, manager,
		exchange.WithProcessorLogger(logger))
	if err != nil {
		return nil, err
	}

	health, err := calendar.NewService(backendClient, identities, calendar.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	newRun := func(onComplete func(redirect string), onError func(message string)) (*orchestrator.Orchestrator, error) {
		return orchestrator.New(backendClient, store, onComplete, onError,
			orchestrator.WithCalendarScope(cfg.GetCalendarScope()),
			orchestrator.WithCompletionGrace(cfg.GetCompletionGrace()),
			orchestrator.WithTimezone(cfg.GetTimezone()),
			orchestrator.WithMainAppRoute(cfg.GetMainAppRoute()),
			orchestrator.WithLogger(logger),
		)
	}

	return server.New(cfg, processor, health, store, newRun, logger)
}

// newStateStore returns a Redis-backed store when an address is
// configured, otherwise the in-process store.
func newStateStore(cfg config.Config) (statestore.Store, error) {
	addr := cfg.GetRedisAddr()
	if addr == "" {
		return statestore.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return statestore.NewRedisStore(client)
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
