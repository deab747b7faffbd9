package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/internal/metrics"
)

// DefaultListLimit is the number of runs returned when no limit is given.
const DefaultListLimit = 50

// Config holds server configuration.
type Config struct {
	Addr string
	// Workspace confines the script and example paths a client may name.
	Workspace string
	Prepare   dockwright.PrepareOptions
}

// Generator runs one generation. *dockwright.Generator implements it.
type Generator interface {
	Generate(ctx context.Context, req dockwright.Request) *dockwright.Result
}

// Server is the HTTP API for generating Dockerfiles and browsing run history.
type Server struct {
	gen       Generator
	store     Store
	broker    *EventBroker
	cfg       Config
	startedAt time.Time
}

// New creates a Server. The broker may be nil; pass the one whose
// ToolMiddleware the generator uses to stream action events.
func New(gen Generator, store Store, broker *EventBroker, cfg Config) *Server {
	if broker == nil {
		broker = NewEventBroker()
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "."
	}
	cfg.Prepare.BaseDir = cfg.Workspace
	return &Server{
		gen:       gen,
		store:     store,
		broker:    broker,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return metrics.Middleware(corsMiddleware(mux))
}

// Start listens for HTTP requests. It blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("dockwright serve started", "addr", s.cfg.Addr, "workspace", s.cfg.Workspace)
		fmt.Printf("API:     http://localhost%s/api/runs\n", s.cfg.Addr)
		fmt.Printf("Metrics: http://localhost%s/metrics\n", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errCh:
		return err
	}

	// SSE handlers only return once their channels close
	s.broker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	return nil
}

// registerRoutes adds all API routes to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// corsMiddleware adds permissive CORS headers for local tooling.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
