// Package api exposes a ledger over HTTP with a JSON interface. Every
// operation of ledger.Ledger has one endpoint; ledger errors are mapped to
// the stable error catalogue in errors_definition.go.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
	shutdownTimeout   = 10 * time.Second
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host   string
	Port   int
	Ledger ledger.Ledger
}

// API type represents the API HTTP server.
type API struct {
	router *chi.Mux
	ledger ledger.Ledger
	addr   string
}

// New creates a new API instance serving conf.Ledger. The server is started
// with Start.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Ledger == nil {
		return nil, fmt.Errorf("missing ledger instance")
	}
	a := &API{
		ledger: conf.Ledger,
		addr:   net.JoinHostPort(conf.Host, fmt.Sprint(conf.Port)),
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Start serves the API until ctx is cancelled, then shuts the server down
// gracefully.
func (a *API) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("starting API server", "addr", a.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start the API server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Infow("stopping API server", "addr", a.addr)
	return srv.Shutdown(shutdownCtx)
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	r := a.router.With(electionIDMiddleware)
	handle := func(method, endpoint string, h http.HandlerFunc) {
		log.Infow("register handler", "endpoint", endpoint, "method", method)
		r.Method(method, endpoint, h)
	}
	// elections
	handle(http.MethodPost, ElectionsEndpoint, a.deploy)
	handle(http.MethodGet, ElectionEndpoint, a.election)
	handle(http.MethodPost, CommitmentEndpoint, a.setCommitment)
	// issuance and casting
	handle(http.MethodPost, AccountsEndpoint, a.issueAccount)
	handle(http.MethodPost, BallotsEndpoint, a.cast)
	handle(http.MethodGet, BallotsEndpoint, a.ballots)
	handle(http.MethodGet, BallotEndpoint, a.ballot)
	handle(http.MethodGet, CastNullifierEndpoint, a.castNullifier)
	handle(http.MethodGet, IssueNullifierEndpoint, a.issueNullifier)
	// tally
	handle(http.MethodPost, SharesEndpoint, a.postShare)
	handle(http.MethodGet, SharesEndpoint, a.shares)
	handle(http.MethodPost, TallyEndpoint, a.finalizeTally)
	handle(http.MethodGet, TallyEndpoint, a.tally)
	handle(http.MethodGet, AuditEndpoint, a.excluded)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(requestIDMiddleware)
	a.router.Use(loggingMiddleware(maxRequestBodyLog, LogExcludedPrefixes...))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))
	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.Withf("%s %s", r.Method, r.URL.Path).Write(w)
	})

	a.registerHandlers()
}
