// Package webhook exposes the inbound messaging-channel callback. It owns
// signature verification and event decoding; everything after that belongs
// to the dispatcher.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/mhliao/crewlog/internal/attendance/service"
)

// maxBodyBytes bounds a callback payload.
const maxBodyBytes = 1 << 20

// signatureHeader carries the channel's HMAC-SHA256 signature of the raw
// request body, base64 encoded.
const signatureHeader = "X-Line-Signature"

// MessageHandler consumes one inbound text event and returns the reply, if
// any.
type MessageHandler interface {
	HandleMessage(ctx context.Context, event service.Event) (string, bool)
}

// Replier delivers a reply through the messaging channel.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Handler verifies and dispatches channel callbacks.
type Handler struct {
	secret     []byte
	dispatcher MessageHandler
	replier    Replier
}

// NewHandler creates a webhook handler. The channel secret and dispatcher
// are required; a nil replier drops replies (useful in tests).
func NewHandler(channelSecret string, dispatcher MessageHandler, replier Replier) (*Handler, error) {
	if strings.TrimSpace(channelSecret) == "" {
		return nil, fmt.Errorf("channel secret is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	return &Handler{secret: []byte(channelSecret), dispatcher: dispatcher, replier: replier}, nil
}

// RegisterRoutes mounts the callback endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /callback", h)
}

type callbackPayload struct {
	Events []callbackEvent `json:"events"`
}

type callbackEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Timestamp  int64  `json:"timestamp"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "decode payload", http.StatusBadRequest)
		return
	}

	for _, event := range payload.Events {
		if event.Type != "message" || event.Message.Type != "text" {
			continue
		}
		reply, ok := h.dispatcher.HandleMessage(r.Context(), service.Event{
			SenderID:    event.Source.UserID,
			Text:        event.Message.Text,
			TimestampMs: event.Timestamp,
			ReplyToken:  event.ReplyToken,
		})
		if !ok || h.replier == nil {
			continue
		}
		if err := h.replier.Reply(r.Context(), event.ReplyToken, reply); err != nil {
			log.Printf("webhook: reply to %s: %v", event.Source.UserID, err)
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// verifySignature checks the channel HMAC in constant time.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
