// Package discord connects the gateway to Discord through the websocket
// gateway for inbound messages and the REST API for replies.
package discord

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
	component      = "connector:discord"
	replyTimeout   = 30 * time.Second
	reconnectDelay = 2 * time.Second

	discordIntentGuilds          = 1 << 0
	discordIntentGuildMessages   = 1 << 9
	discordIntentDirectMessages  = 1 << 12
	discordIntentMessageContents = 1 << 15
)

type CommandGateway interface {
	HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error)
}

type Connector struct {
	token      string
	apiBase    string
	gatewayURL string
	gateway    CommandGateway
	httpClient *http.Client
	logger     *slog.Logger
	reporter   heartbeat.Reporter
	inflight   sync.WaitGroup

	mu        sync.RWMutex
	botUserID string
}

func New(token, apiBase, gatewayURL string, commandGateway CommandGateway, logger *slog.Logger) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		token:      strings.TrimSpace(token),
		apiBase:    strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL: strings.TrimSpace(gatewayURL),
		gateway:    commandGateway,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		logger:     logger,
		reporter:   heartbeat.Discard,
	}
}

func (c *Connector) Name() string {
	return "discord"
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

func (c *Connector) setBotUserID(id string) {
	c.mu.Lock()
	c.botUserID = strings.TrimSpace(id)
	c.mu.Unlock()
}

func (c *Connector) isSelf(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUserID != "" && c.botUserID == id
}

// Start keeps a gateway session open, reconnecting after failures, until ctx
// is cancelled. It returns once in-flight handlers have finished.
func (c *Connector) Start(ctx context.Context) error {
	c.reporter.Starting(component, "starting")
	if c.token == "" {
		c.reporter.Disabled(component, "token missing")
		c.logger.Info("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.gateway == nil {
		c.reporter.Disabled(component, "gateway missing")
		c.logger.Info("connector disabled, gateway missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "mode", "gateway")
	defer func() {
		c.Wait()
		c.reporter.Stopped(component, "stopped")
		c.logger.Info("connector stopped")
	}()
	for {
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.reporter.Degrade(component, "gateway session error", err)
		c.logger.Error("discord session ended, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}
