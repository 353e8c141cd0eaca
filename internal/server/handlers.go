package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/latchat/latchat/internal/transport"
)

// Handlers bundles the HTTP endpoints with the transport hub and connection
// limits they need.
type Handlers struct {
	hub      *transport.Hub
	limits   transport.Limits
	upgrader websocket.Upgrader
}

// NewHandlers wires the HTTP endpoints to a hub, applying the configured
// origin policy and per-connection limits.
func NewHandlers(cfg *Config, hub *transport.Hub) *Handlers {
	policy := NewOriginPolicy(cfg.AllowedOrigins)
	return &Handlers{
		hub: hub,
		limits: transport.Limits{
			MaxMessageSize: cfg.MaxMessageSize,
			RateBurst:      cfg.RateLimit.Burst,
			RateRefill:     cfg.RateLimit.RefillInterval,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.CheckOrigin,
		},
	}
}

// WebSocket handles WebSocket upgrade requests. Each accepted connection is
// issued a fresh opaque handle and registered with the hub, which announces
// the connect and starts the connection's pumps.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	handle := uuid.NewString()
	client := transport.NewClient(handle, conn, h.hub, r.RemoteAddr, h.limits)
	h.hub.Register(client)
}

// Health provides a simple health check endpoint that returns server status.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "latchat relay is running!")
}

// Routes configures and returns an HTTP ServeMux with all application routes.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/ws", h.WebSocket)
	mux.HandleFunc("/test", h.TestPage)
	return mux
}
