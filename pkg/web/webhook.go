package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/SOF3/rule-mirror/pkg/ingest"
	"github.com/SOF3/rule-mirror/pkg/logger"
)

// maxWebhookBody caps delivery payloads; GitHub's own ceiling is 25 MB.
const maxWebhookBody = 25 << 20

// handleWebhook verifies the delivery signature, decodes the typed event,
// and applies it. Responses mimic the upstream convention: plain "OK" or
// "ERROR" bodies, with errors only ever logged server-side.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	if !verifySignature(s.webhookSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		logger.WarnCF("web", "Rejected delivery with bad signature", map[string]interface{}{
			"delivery": r.Header.Get("X-GitHub-Delivery"),
		})
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	kind := r.Header.Get("X-GitHub-Event")
	event, err := ingest.DecodeEvent(kind, body)
	if err != nil {
		logger.ErrorCF("web", "Undecodable delivery", map[string]interface{}{
			"event": kind,
			"error": err.Error(),
		})
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	if err := s.ingestor.Handle(r.Context(), event); err != nil {
		logger.ErrorCF("web", "Error handling delivery", map[string]interface{}{
			"event": kind,
			"error": err.Error(),
		})
		io.WriteString(w, "ERROR")
		return
	}
	io.WriteString(w, "OK")
}

// verifySignature checks the sha256= HMAC header GitHub attaches to every
// delivery. Comparison is constant-time.
func verifySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	received, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(received))
}
