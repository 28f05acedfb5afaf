// Package webhook is the inbound HTTP adapter: it receives CI build-failure
// notifications and GitHub pull request events, verifies their signatures,
// and drives the analysis pipeline.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
	"github.com/buildlens/buildlens/internal/core/ports/driving"
	"github.com/buildlens/buildlens/internal/logger"
)

// maxBodyBytes caps inbound payloads. Build logs are large but bounded;
// anything past this is hostile or misrouted.
const maxBodyBytes = 10 << 20

// Server hosts the webhook endpoints.
type Server struct {
	mu       sync.RWMutex
	settings domain.Settings

	analysis driving.AnalysisService
	prs      driving.PRSummaryService
	notifier driven.Notifier
	delivery driven.DeliveryStore

	srv *http.Server
}

// NewServer wires the endpoints. notifier and delivery may be nil; chat
// delivery is then skipped and idempotency tracking disabled.
func NewServer(
	settings domain.Settings,
	analysis driving.AnalysisService,
	prs driving.PRSummaryService,
	notifier driven.Notifier,
	delivery driven.DeliveryStore,
) *Server {
	s := &Server{
		settings: settings,
		analysis: analysis,
		prs:      prs,
		notifier: notifier,
		delivery: delivery,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /build/failure", s.handleBuildFailure)
	mux.HandleFunc("POST /github/webhook", s.handleGitHubWebhook)

	s.srv = &http.Server{
		Addr:              settings.Webhook.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// UpdateSettings swaps the active settings. Applies to requests received
// after the call; the listen address is fixed for the server's lifetime.
func (s *Server) UpdateSettings(settings domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *Server) snapshot() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	logger.Info("webhook server listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
