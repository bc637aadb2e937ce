// Package scheduler writes periodic checkpoints of the chat registry so a
// crash loses at most one interval of learned state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/heartbeat"
)

const componentName = "checkpoint"

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Source interface {
	Snapshot() (map[int64]chat.State, error)
}

type AliasSource interface {
	Pairs() []chat.AliasPair
}

type Saver interface {
	Save(ctx context.Context, states map[int64]chat.State, aliases []chat.AliasPair) error
}

type Service struct {
	source   Source
	aliases  AliasSource
	saver    Saver
	schedule cron.Schedule
	expr     string
	logger   *slog.Logger
	reporter heartbeat.Reporter
	now      func() time.Time
}

type Option func(*Service)

// WithSchedule replaces the parsed cron expression.
func WithSchedule(schedule cron.Schedule) Option {
	return func(s *Service) {
		s.schedule = schedule
	}
}

// ParseSchedule normalizes whitespace and parses a five field or descriptor
// cron expression. An empty expression yields a nil schedule.
func ParseSchedule(raw string) (cron.Schedule, error) {
	expr := strings.Join(strings.Fields(raw), " ")
	if expr == "" {
		return nil, nil
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint schedule %q: %w", expr, err)
	}
	return schedule, nil
}

func New(expr string, source Source, aliases AliasSource, saver Saver, logger *slog.Logger, opts ...Option) (*Service, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		source:   source,
		aliases:  aliases,
		saver:    saver,
		schedule: schedule,
		expr:     strings.TrimSpace(expr),
		logger:   logger,
		reporter: heartbeat.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	if reporter == nil {
		reporter = heartbeat.Discard
	}
	s.reporter = reporter
}

// Start blocks until ctx is done, saving a checkpoint at each scheduled time.
func (s *Service) Start(ctx context.Context) error {
	if s.schedule == nil || s.source == nil || s.saver == nil {
		s.reporter.Disabled(componentName, "checkpoints disabled")
		<-ctx.Done()
		return nil
	}
	s.reporter.Starting(componentName, "started")
	s.logger.Info("checkpoint scheduler started", "schedule", s.expr)

	for {
		wait := s.schedule.Next(s.now()).Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.reporter.Stopped(componentName, "stopped")
			s.logger.Info("checkpoint scheduler stopped")
			return nil
		case <-timer.C:
		}

		err := s.Checkpoint(ctx)
		switch {
		case errors.Is(err, chat.ErrClosed):
			s.reporter.Stopped(componentName, "registry closed")
			return nil
		case err != nil:
			s.reporter.Degrade(componentName, "checkpoint failed", err)
			s.logger.Error("checkpoint failed", "error", err)
		default:
			s.reporter.Beat(componentName, "checkpoint saved")
		}
	}
}

// Checkpoint snapshots the registry and writes it through the saver.
func (s *Service) Checkpoint(ctx context.Context) error {
	states, err := s.source.Snapshot()
	if err != nil {
		return err
	}
	var pairs []chat.AliasPair
	if s.aliases != nil {
		pairs = s.aliases.Pairs()
	}
	startedAt := s.now()
	if err := s.saver.Save(ctx, states, pairs); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	s.logger.Debug("checkpoint saved", "chats", len(states), "aliases", len(pairs), "duration", s.now().Sub(startedAt).String())
	return nil
}
