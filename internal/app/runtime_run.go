package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/trapper/internal/heartbeat"
)

const finalSaveTimeout = 30 * time.Second

// Run serves until ctx is cancelled or a component fails. On the way out it
// waits for connectors to finish their handlers, drains the registry and
// writes the final snapshot.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("trapper runtime starting", "addr", r.cfg.HTTPAddr, "storage", r.cfg.Storage, "connectors", len(r.connectors))
	if r.heartbeat != nil {
		r.heartbeat.Beat("runtime", "runtime loop started")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, conn := range r.connectors {
		connector := conn
		group.Go(func() error {
			return connector.Start(groupCtx)
		})
	}
	group.Go(func() error {
		return r.scheduler.Start(groupCtx)
	})
	group.Go(func() error {
		return runMonitored(groupCtx, r.reporter(), "api", 20*time.Second, func(runCtx context.Context) error {
			err := r.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	})
	if r.heartbeatMonitor != nil {
		group.Go(func() error {
			return r.heartbeatMonitor.Start(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	runErr := group.Wait()
	if r.heartbeat != nil {
		r.heartbeat.Stopped("runtime", "shutting down")
	}
	return errors.Join(runErr, r.shutdown())
}

// shutdown closes the registry and persists what it held. Handlers still
// waiting for a chat lock fail with chat.ErrClosed.
func (r *Runtime) shutdown() error {
	states, err := r.registry.Drain()
	if err != nil {
		return fmt.Errorf("drain registry: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
	defer cancel()
	if err := r.snapshots.Save(ctx, states, r.aliases.Pairs()); err != nil {
		r.logger.Error("final snapshot incomplete", "error", err)
		return fmt.Errorf("final snapshot: %w", err)
	}
	r.logger.Info("final snapshot saved", "chats", len(states))
	return nil
}

func (r *Runtime) Close() error {
	return r.store.Close()
}

func (r *Runtime) reporter() heartbeat.Reporter {
	if r.heartbeat == nil {
		return heartbeat.Discard
	}
	return r.heartbeat
}

func runMonitored(
	ctx context.Context,
	reporter heartbeat.Reporter,
	component string,
	beatInterval time.Duration,
	run func(context.Context) error,
) error {
	reporter.Starting(component, "starting")
	reporter.Beat(component, "running")

	stopHeartbeat := func() {}
	if beatInterval > 0 {
		heartbeatCtx, cancel := context.WithCancel(ctx)
		stopHeartbeat = cancel
		go func() {
			ticker := time.NewTicker(beatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-heartbeatCtx.Done():
					return
				case <-ticker.C:
					reporter.Beat(component, "running")
				}
			}
		}()
	}

	err := run(ctx)
	stopHeartbeat()
	if err != nil && ctx.Err() == nil {
		reporter.Degrade(component, "component failed", err)
		return err
	}
	reporter.Stopped(component, "stopped")
	return err
}
