// Package scheduler runs the daily background tasks: journal pruning, log
// rotation and the fleet summary.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/growbot-project/growbot/internal/bot"
	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/util"
)

// Pruner removes journal rows older than a cutoff.
type Pruner interface {
	Prune(before time.Time) (int64, error)
}

// FleetInfo reports the bots for the daily summary.
type FleetInfo interface {
	GetAllInfo() []bot.Info
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	journal  Pruner
	fleet    FleetInfo
	now      func() time.Time
	logger   zerolog.Logger
}

// NewScheduler creates a new task scheduler. journal may be nil when the
// journal is disabled.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, journal Pruner, fleet FleetInfo) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		eventBus: eventBus,
		journal:  journal,
		fleet:    fleet,
		now:      time.Now,
		logger:   util.ComponentLogger("scheduler"),
	}
}

// Start runs the daily maintenance at the configured cleanup time until ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("scheduler started")

	for {
		nextRun := s.nextRunTime()
		sleepDuration := nextRun.Sub(s.now())
		if sleepDuration <= 0 {
			sleepDuration = 24 * time.Hour
		}

		s.logger.Info().
			Time("next_run", nextRun).
			Dur("sleep", sleepDuration).
			Msg("daily maintenance scheduled")

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-time.After(sleepDuration):
			s.RunDaily(ctx)
		}
	}
}

// RunDaily performs every daily task once.
func (s *Scheduler) RunDaily(ctx context.Context) {
	s.pruneJournal()
	s.rotateLogs()
	s.publishSummary(ctx)
}

// pruneJournal deletes journal entries past the retention period.
func (s *Scheduler) pruneJournal() {
	journalCfg := s.cfg.GetApplicationData().Journal
	if s.journal == nil || !journalCfg.Enabled || journalCfg.RetentionDays <= 0 {
		return
	}

	cutoff := s.now().Add(-time.Duration(journalCfg.RetentionDays) * 24 * time.Hour)
	if _, err := s.journal.Prune(cutoff); err != nil {
		s.logger.Warn().Err(err).Msg("journal pruning failed")
	}
}

func (s *Scheduler) rotateLogs() {
	logging := s.cfg.GetApplicationData().Logging
	if removed := util.CleanOldLogs(logging.Directory, logging.MaxBackups); removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("old log files removed")
	}
}

// Summary counts bots by outcome.
type Summary struct {
	Total   int
	Running int
	Banned  int
	Failed  int
}

// Summarize counts the bots in infos.
func Summarize(infos []bot.Info) Summary {
	sum := Summary{Total: len(infos)}
	for _, info := range infos {
		switch {
		case info.Session.IsBanned:
			sum.Banned++
		case info.Running:
			sum.Running++
		case info.LastError != "":
			sum.Failed++
		}
	}
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("%d bots: %d running, %d banned, %d failed", s.Total, s.Running, s.Banned, s.Failed)
}

func (s *Scheduler) publishSummary(ctx context.Context) {
	if s.fleet == nil {
		return
	}
	sum := Summarize(s.fleet.GetAllInfo())
	s.logger.Info().
		Int("total", sum.Total).
		Int("running", sum.Running).
		Int("banned", sum.Banned).
		Int("failed", sum.Failed).
		Msg("daily fleet summary")

	level := "info"
	if sum.Banned > 0 || sum.Failed > 0 {
		level = "warning"
	}
	s.eventBus.Emit(ctx, events.New(events.EventNotifyDiscordAdmin, "scheduler", events.NotifyDiscordPayload{
		Title:   "Daily fleet summary",
		Message: sum.String(),
		Level:   level,
	}))
}

// nextRunTime returns the next occurrence of the configured cleanup time.
func (s *Scheduler) nextRunTime() time.Time {
	hour, minute := parseClock(s.cfg.GetApplicationData().Journal.CleanupTime)

	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// parseClock parses "HH:MM", falling back to 04:00.
func parseClock(value string) (int, int) {
	hour, minute := 4, 0
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return hour, minute
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return hour, minute
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return hour, minute
	}
	return h, m
}
