// Package webhook exposes the HTTP surface of the bridge: the channel
// verification handshake, the inbound message webhook, and the NLU
// database hook.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/convobridge/pkg/mirror"
)

// Dispatcher consumes one raw webhook delivery.
type Dispatcher interface {
	HandleUpdate(ctx context.Context, body []byte)
}

// ServerOptions configures the webhook server.
type ServerOptions struct {
	Host        string
	Port        int
	BotName     string
	VerifyToken string
	AppSecret   string
}

// Server is the webhook HTTP server.
type Server struct {
	options        ServerOptions
	server         *http.Server
	bot            Dispatcher
	mirror         *mirror.Client
	records        *RecordStore
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a webhook server. mirrorClient forwards raw inbound
// deliveries to a sync endpoint and may be nil; records persists database
// hook deliveries and may be nil to disable persistence.
func NewServer(options ServerOptions, bot Dispatcher, mirrorClient *mirror.Client, records *RecordStore, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 1337
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.VerifyToken == "" {
		return nil, fmt.Errorf("verify token is required")
	}
	if bot == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return &Server{
		options:   options,
		bot:       bot,
		mirror:    mirrorClient,
		records:   records,
		logger:    logger.With().Str("component", "webhook").Logger(),
		startTime: time.Now(),
	}, nil
}

// Start starts the webhook server and blocks until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start webhook server: %w", err)
	}

	return nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhook", s.handleChannelWebhook)
	mux.HandleFunc("/nlu/db", s.handleDatabaseHook)
	return mux
}

// Stop gracefully stops the webhook server.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down webhook server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown webhook server: %w", err)
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// track rejects requests during shutdown and otherwise counts the request
// as in flight. The caller must invoke the returned func when finished.
func (s *Server) track(w http.ResponseWriter) (func(), bool) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return nil, false
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	return s.inFlightReqs.Done, true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"bot":    s.options.BotName,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	})
}

// handleChannelWebhook serves the channel's verification handshake on GET
// and inbound message deliveries on POST.
func (s *Server) handleChannelWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleVerify(w, r)
	case http.MethodPost:
		s.handleDelivery(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("hub.verify_token")
	if token != s.options.VerifyToken {
		s.logger.Warn().Msg("Webhook verification failed, wrong validation token")
		http.Error(w, "Error, wrong validation token", http.StatusForbidden)
		return
	}

	s.logger.Info().Msg("Webhook verified")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, r.URL.Query().Get("hub.challenge"))
}

func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	finish, ok := s.track(w)
	if !ok {
		return
	}
	defer finish()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if s.options.AppSecret != "" {
		if !checkRequestSignature(r, body, s.options.AppSecret) {
			s.logger.Warn().Msg("Invalid webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if s.mirror.Enabled() {
		s.mirror.Post(json.RawMessage(body))
	}

	// Ack before processing. The channel redelivers anything not answered
	// quickly, and a slow NLU exchange must neither hold the response nor
	// be cancelled by a client disconnect, so the batch runs detached from
	// the request lifetime.
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")

	s.inFlightReqs.Add(1)
	go func() {
		defer s.inFlightReqs.Done()
		s.bot.HandleUpdate(context.Background(), body)
	}()
}

// handleDatabaseHook receives fulfillment records pushed by the NLU
// backend, validates and stores them, and echoes the speech back in the
// backend's webhook response format.
func (s *Server) handleDatabaseHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	finish, ok := s.track(w)
	if !ok {
		return
	}
	defer finish()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read database hook body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := ValidateRecord(body); err != nil {
		s.logger.Warn().Err(err).Msg("Database hook delivery rejected")
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rec := Extract(body)
	if s.records != nil {
		if err := s.records.Save(r.Context(), rec); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist database hook record")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"speech":      rec.Speech,
		"displayText": rec.Speech,
		"source":      "convobridge",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}
