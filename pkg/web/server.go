// Package web is the webhook-facing HTTP server: GitHub delivery intake,
// health probe, and a websocket tap streaming bus traffic for operators.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/ingest"
	"github.com/SOF3/rule-mirror/pkg/logger"
)

// Server hosts the webhook receiver.
type Server struct {
	listen        string
	webhookSecret string
	ingestor      *ingest.Ingestor
	events        *bus.Bus
	server        *http.Server
	startTime     time.Time
}

// NewServer wires the receiver. The webhook secret must match the one
// configured on the GitHub App; deliveries failing the signature check are
// rejected before any decoding happens.
func NewServer(listen, webhookSecret string, ingestor *ingest.Ingestor, events *bus.Bus) *Server {
	return &Server{
		listen:        listen,
		webhookSecret: webhookSecret,
		ingestor:      ingestor,
		events:        events,
		startTime:     time.Now(),
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	hub := NewWSHub()
	go hub.Run(ctx, s.events.SubscribeRaw(ctx))
	mux.HandleFunc("GET /ws", hub.handleWS)

	s.server = &http.Server{
		Addr:              s.listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()
	logger.InfoCF("web", "Webhook server listening", map[string]interface{}{
		"addr": s.listen,
	})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorCF("web", "Error encoding response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
