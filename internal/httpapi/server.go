// Package httpapi serves the REST and WebSocket surface: opportunity
// reads, the tether rebalance signal, the spread monitor and the
// streaming feed.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/arbcommand/arbcommand/internal/config"
	"github.com/arbcommand/arbcommand/internal/fx"
	"github.com/arbcommand/arbcommand/internal/hub"
)

// Server is the HTTP front end.
type Server struct {
	cfg      config.Config
	hub      *hub.Hub
	fx       *fx.Resolver
	router   *mux.Router
	httpSrv  *http.Server
	startGMT time.Time
}

// NewServer wires the router.
func NewServer(cfg config.Config, h *hub.Hub, resolver *fx.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      h,
		fx:       resolver,
		router:   mux.NewRouter(),
		startGMT: time.Now().UTC(),
	}
	s.routes()
	s.httpSrv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)
	s.router.Use(corsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/opportunities", s.handleOpportunities).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/signals/tether-bot", s.handleTetherSignal).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/monitor/spreads", s.handleMonitorSpreads).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/ws/opportunities", s.handleWebSocket)
	api.HandleFunc("/ws", s.handleWebSocket)
}

// ListenAndServe blocks until the context is canceled, then drains.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to encode response")
	}
}
