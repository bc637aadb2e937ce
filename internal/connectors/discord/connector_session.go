package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

type gatewayEnvelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type discordHello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type discordReady struct {
	User discordAuthor `json:"user"`
}

// session is one websocket connection. Writes are serialized because the
// heartbeat loop and the read loop both send frames.
type session struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	sequence atomic.Int64
}

func (s *session) write(payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

func (s *session) sendHeartbeat() error {
	var seq any
	if value := s.sequence.Load(); value > 0 {
		seq = value
	}
	if err := s.write(map[string]any{"op": opHeartbeat, "d": seq}); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}

func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	current := &session{conn: conn}

	sessionCtx, cancel := context.WithCancel(ctx)
	var background sync.WaitGroup
	defer func() {
		cancel()
		conn.Close()
		background.Wait()
	}()
	background.Add(1)
	go func() {
		defer background.Done()
		<-sessionCtx.Done()
		// Unblocks ReadMessage when the caller cancels.
		_ = conn.Close()
	}()

	interval, err := readHello(conn)
	if err != nil {
		return err
	}
	if err := c.sendIdentify(current); err != nil {
		return err
	}
	c.reporter.Beat(component, "gateway session established")

	background.Add(1)
	go func() {
		defer background.Done()
		c.heartbeatLoop(sessionCtx, current, interval)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Error("decode gateway envelope failed", "error", err)
			continue
		}
		if envelope.S != nil {
			current.sequence.Store(*envelope.S)
		}

		switch envelope.Op {
		case opDispatch:
			c.reporter.Beat(component, "gateway event received")
			c.dispatch(ctx, envelope)
		case opHeartbeat:
			if err := current.sendHeartbeat(); err != nil {
				return err
			}
		case opHeartbeatAck:
		case opReconnect:
			return errors.New("gateway requested reconnect")
		case opInvalidSession:
			return errors.New("gateway invalid session")
		}
	}
}

func readHello(conn *websocket.Conn) (time.Duration, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read hello: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return 0, fmt.Errorf("decode hello payload: %w", err)
		}
		if envelope.Op != opHello {
			continue
		}
		var hello discordHello
		if err := json.Unmarshal(envelope.D, &hello); err != nil {
			return 0, fmt.Errorf("decode hello body: %w", err)
		}
		return time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond, nil
	}
}

func (c *Connector) dispatch(ctx context.Context, envelope gatewayEnvelope) {
	switch envelope.T {
	case "READY":
		var ready discordReady
		if err := json.Unmarshal(envelope.D, &ready); err != nil {
			c.logger.Error("decode ready failed", "error", err)
			return
		}
		c.setBotUserID(ready.User.ID)
		c.logger.Info("discord session ready", "bot_user_id", ready.User.ID)
	case "MESSAGE_CREATE":
		var message discordMessageCreate
		if err := json.Unmarshal(envelope.D, &message); err != nil {
			c.logger.Error("decode message create failed", "error", err)
			return
		}
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
			defer cancel()
			if err := c.handleMessageCreate(handlerCtx, message); err != nil {
				c.logger.Error("handle discord message failed", "error", err, "channel_id", message.ChannelID)
			}
		}()
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, current *session, interval time.Duration) {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := current.sendHeartbeat(); err != nil {
				c.logger.Error("heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Connector) sendIdentify(current *session) error {
	payload := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token": c.token,
			"intents": discordIntentGuilds |
				discordIntentGuildMessages |
				discordIntentDirectMessages |
				discordIntentMessageContents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "trapper",
				"device":  "trapper",
			},
		},
	}
	if err := current.write(payload); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}
