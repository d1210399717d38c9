// Package gateway is the HTTP front door: it authenticates GitHub
// webhook deliveries, resolves an installation-scoped client and hands
// the payload to the dispatcher. Alertmanager posts are relayed to the
// alert sink. The gateway acknowledges every authenticated delivery
// with 202 regardless of handler outcome; GitHub redelivers on error
// statuses and the handlers are idempotent anyway.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

// Dispatcher routes an authenticated webhook event. Implemented by
// bot.Bot.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string, payload []byte, rc repository.Client)
}

// ClientSource yields an installation-scoped repository client.
type ClientSource interface {
	For(ctx context.Context, installationID int64) (repository.Client, error)
}

// AlertSink consumes raw Alertmanager webhook payloads.
type AlertSink interface {
	HandleWebhook(ctx context.Context, payload []byte) error
}

// Server is the webhook HTTP server.
type Server struct {
	addr    string
	secret  []byte
	bot     Dispatcher
	clients ClientSource
	alerts  AlertSink
	logger  *slog.Logger
}

// New builds a Server. alerts may be nil, disabling /alert-manager.
func New(addr, webhookSecret string, bot Dispatcher, clients ClientSource, alerts AlertSink, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		secret:  []byte(webhookSecret),
		bot:     bot,
		clients: clients,
		alerts:  alerts,
		logger:  logger,
	}
}

// Handler returns the route table. Exposed separately from Start for
// tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /github", s.handleGitHub)
	mux.HandleFunc("POST /alert-manager", s.handleAlertManager)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("gateway: listening", "addr", "http://"+s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleGitHub(w http.ResponseWriter, r *http.Request) {
	payload, err := gogithub.ValidatePayload(r, s.secret)
	if err != nil {
		s.logger.Warn("gateway: rejected webhook delivery", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event := gogithub.WebHookType(r)
	delivery := gogithub.DeliveryID(r)

	installationID := probeInstallation(payload)
	if installationID == 0 {
		// App lifecycle events carry no installation scope we can act
		// under.
		s.logger.Debug("gateway: delivery without installation", "event", event, "delivery", delivery)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	rc, err := s.clients.For(r.Context(), installationID)
	if err != nil {
		s.logger.Error("gateway: resolving installation client",
			"installation", installationID, "delivery", delivery, "error", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.logger.Info("gateway: dispatching delivery",
		"event", event, "delivery", delivery, "installation", installationID)
	s.bot.Dispatch(r.Context(), event, payload, rc)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAlertManager(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		http.Error(w, "alert relay disabled", http.StatusNotFound)
		return
	}
	payload, err := readBody(r)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	if err := s.alerts.HandleWebhook(r.Context(), payload); err != nil {
		s.logger.Error("gateway: alert relay failed", "error", err)
		http.Error(w, "relay failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

const maxBodyBytes = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// probeInstallation extracts installation.id without committing to a
// typed event struct; every App delivery shape carries it in the same
// place.
func probeInstallation(payload []byte) int64 {
	var probe struct {
		Installation struct {
			ID int64 `json:"id"`
		} `json:"installation"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0
	}
	return probe.Installation.ID
}
