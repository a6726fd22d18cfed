// Package server implements the HTTP surface of the relay: a single JSON
// action envelope endpoint covering workflow dispatch, log-tailing status
// polls and SSE chat streaming, plus model discovery, health and metrics
// endpoints. The server holds no session state; every request carries
// everything needed to answer it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yangfeiyang-123/arxiv-relay/internal/config"
	"github.com/yangfeiyang-123/arxiv-relay/internal/dispatch"
	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
	"github.com/yangfeiyang-123/arxiv-relay/internal/poller"
	"github.com/yangfeiyang-123/arxiv-relay/internal/relay"
)

// ErrServerRunning is returned when Start is called on a running server.
var ErrServerRunning = errors.New("server is already running")

// Dispatcher triggers remote workflow runs.
type Dispatcher interface {
	DispatchWorkflow(ctx context.Context, workflow, ref string, inputs map[string]string) error
}

// StatusPoller answers log-tailing status polls.
type StatusPoller interface {
	Poll(ctx context.Context, req poller.Request) (*poller.Snapshot, error)
}

// ChatRelay streams chat completions downstream.
type ChatRelay interface {
	Stream(ctx context.Context, req relay.ChatRequest, emit relay.Emitter) error
}

// Server wires the dispatcher, poller and relay behind one HTTP listener.
type Server struct {
	cfg        *config.Config
	dispatcher Dispatcher
	poller     StatusPoller
	relay      ChatRelay

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	running    bool
}

// New creates a Server. The dispatcher and poller may be nil when GitHub
// credentials are not configured; affected actions then fail with a
// configuration error.
func New(cfg *config.Config, d Dispatcher, p StatusPoller, r ChatRelay) *Server {
	logger.WithField("port", cfg.Server.Port).Debug("Creating server")

	return &Server{
		cfg:        cfg,
		dispatcher: d,
		poller:     p,
		relay:      r,
	}
}

// Start listens on the configured port until ctx is canceled. Returns
// http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerRunning
	}
	s.running = true
	s.mu.Unlock()

	addr := fmt.Sprintf("0.0.0.0:%d", s.cfg.Server.Port)
	if s.cfg.Server.Port == 0 {
		addr = "localhost:0"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.WithField("address", listener.Addr().String()).Info("Server listening")

	s.httpServer = &http.Server{Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		logger.Info("Server shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithField("error", err.Error()).Error("Error during server shutdown")
		}
	}()

	err = s.httpServer.Serve(listener)

	s.mu.Lock()
	s.running = false
	s.listener = nil
	s.mu.Unlock()

	if err == http.ErrServerClosed {
		logger.Info("Server shut down gracefully")
	}
	return err
}

// Handler builds the route table. Exposed for httptest use.
func (s *Server) Handler() http.Handler {
	log := logger.GetLogger()
	middleware := logger.HTTPMiddleware(log)
	sseMiddleware := logger.SSEMiddleware(log)

	mux := http.NewServeMux()
	// The action endpoint serves both JSON responses and SSE streams
	// depending on the action, so it picks its own logging middleware.
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStreamAction(r) {
			sseMiddleware(http.HandlerFunc(s.actionHandler)).ServeHTTP(w, r)
			return
		}
		middleware(http.HandlerFunc(s.actionHandler)).ServeHTTP(w, r)
	}))
	mux.Handle("/api/models", middleware(http.HandlerFunc(s.modelsHandler)))
	mux.Handle("/health", middleware(http.HandlerFunc(s.healthHandler)))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Address returns the bound address, or "" when not running.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// isStreamAction sniffs whether the request will stream, without consuming
// the body: streaming clients advertise it via Accept.
func isStreamAction(r *http.Request) bool {
	return r.Header.Get("Accept") == "text/event-stream"
}

// resolveWorkflowFile maps a poll target to a workflow file.
func (s *Server) resolveWorkflowFile(target string) string {
	if target == dispatch.ActionUpdate || target == "update" {
		return s.cfg.GitHub.UpdateWorkflow
	}
	return s.cfg.GitHub.SummarizeWorkflow
}
