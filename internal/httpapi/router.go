// Package httpapi serves health, introspection and a local chat endpoint for
// driving the gateway without a chat transport.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/config"
	"github.com/dwizi/trapper/internal/gateway"
	"github.com/dwizi/trapper/internal/heartbeat"
)

type MessageGateway interface {
	HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error)
}

// Pinger reports whether the snapshot backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Storage             Pinger
	Registry            *chat.Registry
	Aliases             *chat.AliasRegistry
	Gateway             MessageGateway
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/chats", rt.handleChats)
	mux.Handle("/metrics", promhttp.Handler())
	return rt.withRequestID(mux)
}

const requestIDHeader = "X-Request-ID"

// withRequestID echoes the caller's request id or assigns a new one, and logs
// every non-probe request with it.
func (r *router) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := strings.TrimSpace(req.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		started := time.Now()
		next.ServeHTTP(w, req)
		switch req.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			return
		}
		r.deps.Logger.Debug("api request",
			"request_id", requestID,
			"method", req.Method,
			"path", req.URL.Path,
			"duration", time.Since(started).String(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
