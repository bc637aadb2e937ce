package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/config"
	"github.com/dwizi/trapper/internal/gateway"
	"github.com/dwizi/trapper/internal/heartbeat"
	"github.com/dwizi/trapper/internal/metrics"
)

type fakeMessageGateway struct {
	calls  int
	last   gateway.MessageInput
	output gateway.MessageOutput
	err    error
}

func (f *fakeMessageGateway) HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error) {
	f.calls++
	f.last = input
	if f.err != nil {
		return gateway.MessageOutput{}, f.err
	}
	return f.output, nil
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(handler http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestChatEndpointRoutesToGateway(t *testing.T) {
	fakeGateway := &fakeMessageGateway{output: gateway.MessageOutput{Handled: true, Reply: "brewing"}}
	handler := NewRouter(Dependencies{Gateway: fakeGateway, Logger: testLogger()})

	body, _ := json.Marshal(map[string]any{
		"chat_id":      -100,
		"from_user_id": 7,
		"text":         "early coffee",
	})
	res := serve(handler, http.MethodPost, "/api/v1/chat", body)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", res.Code, res.Body.String())
	}
	if fakeGateway.calls != 1 {
		t.Fatalf("expected gateway call count 1, got %d", fakeGateway.calls)
	}
	if fakeGateway.last.Connector != "api" || fakeGateway.last.ChatID != -100 || fakeGateway.last.FromUserID != 7 {
		t.Fatalf("unexpected gateway input: %+v", fakeGateway.last)
	}
	var payload struct {
		Handled bool   `json:"handled"`
		Reply   string `json:"reply"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Handled || payload.Reply != "brewing" {
		t.Fatalf("unexpected response %+v", payload)
	}
}

func TestChatEndpointRejectsBadRequests(t *testing.T) {
	fakeGateway := &fakeMessageGateway{}
	handler := NewRouter(Dependencies{Gateway: fakeGateway, Logger: testLogger()})

	if res := serve(handler, http.MethodGet, "/api/v1/chat", nil); res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
	if res := serve(handler, http.MethodPost, "/api/v1/chat", []byte(`{`)); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", res.Code)
	}
	if res := serve(handler, http.MethodPost, "/api/v1/chat", []byte(`{"text":"  "}`)); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", res.Code)
	}
	fakeGateway.err = chat.ErrClosed
	if res := serve(handler, http.MethodPost, "/api/v1/chat", []byte(`{"text":"hi"}`)); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while draining, got %d", res.Code)
	}
	fakeGateway.err = errors.New("boom")
	if res := serve(handler, http.MethodPost, "/api/v1/chat", []byte(`{"text":"hi"}`)); res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestChatsEndpointListsRegistry(t *testing.T) {
	registry := chat.NewRegistry()
	if err := registry.AddThought(-1, "hello"); err != nil {
		t.Fatalf("add thought: %v", err)
	}
	if err := registry.Learn(2, "a b"); err != nil {
		t.Fatalf("learn: %v", err)
	}
	aliases := chat.NewAliasRegistry()
	if err := aliases.SetAlias(-1, "home"); err != nil {
		t.Fatalf("alias: %v", err)
	}
	handler := NewRouter(Dependencies{Registry: registry, Aliases: aliases, Logger: testLogger()})

	res := serve(handler, http.MethodGet, "/api/v1/chats", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Chats []chatSummary `json:"chats"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Chats) != 2 {
		t.Fatalf("expected two chats, got %+v", payload.Chats)
	}
	if payload.Chats[0].ChatID != -1 || payload.Chats[0].Alias != "home" || payload.Chats[0].Thoughts != 1 {
		t.Fatalf("unexpected first chat %+v", payload.Chats[0])
	}
	if payload.Chats[1].MarkovTokens != 3 {
		t.Fatalf("expected three tokens for chat 2, got %+v", payload.Chats[1])
	}
}

func TestHealthReadyAndHeartbeat(t *testing.T) {
	beats := heartbeat.NewRegistry()
	beats.Beat("scheduler", "ok")
	handler := NewRouter(Dependencies{
		Config:              config.Config{Environment: "test", Storage: config.StorageFiles},
		Version:             "v1.2.3",
		Storage:             fakePinger{},
		Heartbeat:           beats,
		HeartbeatStaleAfter: time.Minute,
		Logger:              testLogger(),
	})

	if res := serve(handler, http.MethodGet, "/healthz", nil); res.Code != http.StatusOK {
		t.Fatalf("healthz: %d", res.Code)
	}
	if res := serve(handler, http.MethodGet, "/readyz", nil); res.Code != http.StatusOK {
		t.Fatalf("readyz: %d", res.Code)
	}
	res := serve(handler, http.MethodGet, "/api/v1/heartbeat", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"overall":"healthy"`) {
		t.Fatalf("heartbeat: %d %s", res.Code, res.Body.String())
	}
	res = serve(handler, http.MethodGet, "/api/v1/info", nil)
	if !strings.Contains(res.Body.String(), `"version":"v1.2.3"`) {
		t.Fatalf("info: %s", res.Body.String())
	}

	notReady := NewRouter(Dependencies{Storage: fakePinger{err: errors.New("locked")}, Logger: testLogger()})
	if res := serve(notReady, http.MethodGet, "/readyz", nil); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when storage is down, got %d", res.Code)
	}
	if res := serve(notReady, http.MethodGet, "/api/v1/heartbeat", nil); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without heartbeat, got %d", res.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.TriggersMatched.Inc()
	handler := NewRouter(Dependencies{Logger: testLogger()})
	res := serve(handler, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "trapper_gateway_triggers_matched_total") {
		t.Fatalf("metrics missing trapper collectors: %d", res.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	handler := NewRouter(Dependencies{Logger: testLogger()})

	res := serve(handler, http.MethodGet, "/healthz", nil)
	generated := res.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", generated)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected caller request id to be echoed, got %q", got)
	}
}
