package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Start polls until ctx is cancelled, then waits for in-flight handlers.
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

	c.logger.Info("connector started", "api_base", c.apiBase)
	if username, err := c.fetchBotUsername(ctx); err == nil {
		c.botUsername = username
		if c.botUsername != "" {
			c.logger.Info("telegram bot identity loaded", "username", c.botUsername)
		}
	} else {
		c.logger.Warn("telegram bot username lookup failed", "error", err)
	}
	if c.commandSync {
		if err := c.syncCommands(ctx); err != nil {
			c.logger.Warn("telegram command sync failed", "error", err)
		} else {
			c.logger.Info("telegram commands synced")
		}
	}
	c.reporter.Beat(component, "polling updates")

	defer func() {
		c.Wait()
		c.reporter.Stopped(component, "stopped")
		c.logger.Info("connector stopped")
	}()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			c.reporter.Degrade(component, "poll failed", err)
			c.logger.Error("poll failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollRetryDelay):
			}
		} else {
			c.reporter.Beat(component, "poll cycle ok")
		}
	}
}

// pollOnce fetches one batch of updates and dispatches each message to its
// own goroutine. The offset advances before dispatch, so a slow handler never
// causes a redelivery.
func (c *Connector) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d", c.apiBase, c.token, c.pollSeconds, c.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var payload getUpdatesResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode getUpdates: %w", err)
	}
	if !payload.OK {
		return fmt.Errorf("telegram getUpdates failed: %s", payload.Description)
	}

	for _, update := range payload.Result {
		if update.UpdateID >= c.offset {
			c.offset = update.UpdateID + 1
		}
		if update.Message == nil {
			continue
		}
		message := *update.Message
		updateID := update.UpdateID
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
			defer cancel()
			if err := c.handleMessage(handlerCtx, message); err != nil {
				c.logger.Error("handle message failed", "error", err, "update_id", updateID, "chat_id", message.Chat.ID)
			}
		}()
	}
	return nil
}
