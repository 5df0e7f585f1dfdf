// Package server exposes the resolvers, the browse service, and the streaming proxy over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/boxrelay/boxrelay/browse"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/metrics"
	"github.com/boxrelay/boxrelay/proxy"
	"github.com/boxrelay/boxrelay/resolver"
	"github.com/gorilla/mux"
)

// Streams resolves quality lists.
type Streams interface {
	Resolve(ctx context.Context, title resolver.Title) (*resolver.Result, error)
}

// Browser answers catalog listing queries.
type Browser interface {
	Home(ctx context.Context) (*browse.Home, error)
	Search(ctx context.Context, query string, page, perPage int) (*browse.Page, error)
	Recommendations(ctx context.Context, id string, page, perPage int) (*browse.Page, error)
	Details(ctx context.Context, id string) (*browse.Page, error)
}

// Relay opens upstream media streams.
type Relay interface {
	Open(ctx context.Context, target proxy.Target, rangeHeader string) (*proxy.Stream, error)
	Head(ctx context.Context, target proxy.Target, rangeHeader string) (*proxy.Stream, error)
}

// Server is the HTTP front of the process.
type Server struct {
	streams Streams
	browse  Browser
	relay   Relay
	handler http.Handler
}

// New wires the routes.
func New(streams Streams, browser Browser, relay Relay) *Server {
	s := &Server{streams: streams, browse: browser, relay: relay}

	router := mux.NewRouter()
	router.Use(observe)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stream/{id}", s.handleStreams).Methods(http.MethodGet)
	api.HandleFunc("/home", s.handleHome).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/recommendations", s.handleRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/details/{id}", s.handleDetails).Methods(http.MethodGet)

	router.HandleFunc("/stream/{token}/{filename}", s.handleProxy).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.handler = recovery(cors(router))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then drains in-flight requests for at most grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener, grace)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener, grace time.Duration) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(listener)
	}()

	log.Infof("listening on %s", listener.Addr())

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}
