// Package gateway exposes the HTTP surface: the provider webhook, the direct
// classify/analyze endpoints, batch inspection, health and metrics. It owns
// the coalescer and runs the flush pipeline that turns a batch into one
// orchestrator session.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/infera-ai/infera/internal/classify"
	"github.com/infera-ai/infera/internal/coalesce"
	"github.com/infera-ai/infera/internal/config"
	"github.com/infera-ai/infera/internal/observability"
	"github.com/infera-ai/infera/internal/orchestrator"
	"github.com/infera-ai/infera/internal/record"
	"github.com/infera-ai/infera/internal/slackapi"
	"github.com/infera-ai/infera/internal/tenant"
)

// sessionTimeout bounds one orchestrator session started from a flush.
const sessionTimeout = 10 * time.Minute

// Deps are the collaborators the server needs.
type Deps struct {
	Config     config.Config
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Creds      tenant.CredentialStore
	Assocs     tenant.AssociationStore
	Records    record.Store
	Classifier *classify.Client
	Slack      *slackapi.Client
	Factory    *orchestrator.Factory
}

// Server is the HTTP gateway plus the coalescer it feeds.
type Server struct {
	cfg        config.Config
	logger     *observability.Logger
	metrics    *observability.Metrics
	creds      tenant.CredentialStore
	assocs     tenant.AssociationStore
	records    record.Store
	classifier *classify.Client
	slack      *slackapi.Client
	factory    *orchestrator.Factory
	coalescer  *coalesce.Coalescer

	httpServer *http.Server
	listener   net.Listener
}

// New creates the server and its coalescer.
func New(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		creds:      deps.Creds,
		assocs:     deps.Assocs,
		records:    deps.Records,
		classifier: deps.Classifier,
		slack:      deps.Slack,
		factory:    deps.Factory,
	}
	s.coalescer = coalesce.New(deps.Config.Batch.Window(), s.processBatch, deps.Logger, deps.Metrics)
	return s
}

// Coalescer exposes the server's coalescer, mainly for tests.
func (s *Server) Coalescer() *coalesce.Coalescer {
	return s.coalescer
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/messages-webhook", s.handleWebhook)
	mux.HandleFunc("/classify", s.handleClassify)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/batch-status", s.handleBatchStatus)
	mux.HandleFunc("/force-process-batch", s.handleForceFlush)
	mux.HandleFunc("/", s.handleRoot)

	return mux
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	s.httpServer = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server error", "error", err)
		}
	}()

	s.logger.Info(ctx, "gateway listening",
		"addr", s.cfg.Server.Addr,
		"batch_window", s.coalescer.Window(),
	)
	return nil
}

// Stop shuts down the HTTP server and flushes pending batches.
func (s *Server) Stop(ctx context.Context) {
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "http server shutdown error", "error", err)
		}
		s.httpServer = nil
		s.listener = nil
	}

	s.coalescer.Stop()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "infera",
		"endpoints": []string{
			"/messages-webhook",
			"/classify",
			"/analyze",
			"/batch-status",
			"/force-process-batch",
			"/healthz",
			"/metrics",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
