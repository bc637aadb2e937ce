// Package telegram connects the gateway to the Telegram Bot API using long
// polling.
package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/trapper/internal/gateway"
	"github.com/dwizi/trapper/internal/heartbeat"
)

const (
	component      = "connector:telegram"
	replyTimeout   = 30 * time.Second
	pollRetryDelay = 1500 * time.Millisecond
)

type CommandGateway interface {
	HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error)
}

type Connector struct {
	token       string
	apiBase     string
	pollSeconds int
	commandSync bool
	gateway     CommandGateway
	httpClient  *http.Client
	logger      *slog.Logger
	reporter    heartbeat.Reporter
	botUsername string
	offset      int64
	inflight    sync.WaitGroup
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(connector *Connector) {
		if client != nil {
			connector.httpClient = client
		}
	}
}

func New(token, apiBase string, pollSeconds int, commandGateway CommandGateway, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.telegram.org"
	}
	if pollSeconds < 1 {
		pollSeconds = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:       strings.TrimSpace(token),
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		pollSeconds: pollSeconds,
		commandSync: true,
		gateway:     commandGateway,
		httpClient: &http.Client{
			Timeout: time.Duration(pollSeconds+10) * time.Second,
		},
		logger:   logger,
		reporter: heartbeat.Discard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "telegram"
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	if reporter != nil {
		c.reporter = reporter
	}
}

// Wait blocks until every dispatched message handler has returned.
func (c *Connector) Wait() {
	c.inflight.Wait()
}
