// Package health runs periodic checks on the bot fleet and the host:
// sessions that stopped receiving traffic, memory pressure and disk space.
package health

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/growbot-project/growbot/internal/bot"
	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/session"
	"github.com/growbot-project/growbot/internal/util"
)

// Thresholds for host resource alerts, in percent
const (
	memoryAlertPercent = 90.0
	diskAlertPercent   = 90.0
)

// Fleet is the view of the bot manager the checks need.
type Fleet interface {
	GetAllInfo() []bot.Info
	Reconnect(name string) error
}

// Manager runs periodic health checks.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus
	fleet    Fleet
	now      func() time.Time
	logger   zerolog.Logger

	mu sync.Mutex
	// Bots already reported as stalled, cleared once traffic resumes
	stalled map[string]time.Time
}

// NewManager creates a new health check manager.
func NewManager(cfg *config.Config, eventBus *events.EventBus, fleet Fleet) *Manager {
	return &Manager{
		cfg:      cfg,
		eventBus: eventBus,
		fleet:    fleet,
		now:      time.Now,
		logger:   util.ComponentLogger("health"),
		stalled:  make(map[string]time.Time),
	}
}

// Start runs every check on its own ticker and blocks until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	timers := m.cfg.GetApplicationData().Timers

	checks := []struct {
		name     string
		interval int
		fn       func(context.Context)
	}{
		{"stalled_sessions", timers.GeneralHealthInterval, m.checkStalledSessions},
		{"host_resources", timers.StatsPollingInterval, m.checkHostResources},
	}

	var wg sync.WaitGroup
	started := 0
	for _, check := range checks {
		if check.interval <= 0 {
			continue
		}
		started++

		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(time.Duration(check.interval) * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					m.logger.Trace().Str("check", check.name).Msg("running health check")
					check.fn(ctx)
				}
			}
		}()
	}

	m.logger.Info().Int("checks", started).Msg("health check manager started")

	<-ctx.Done()
	wg.Wait()
	m.logger.Info().Msg("health check manager stopped")
}

func (m *Manager) alert(ctx context.Context, check, botName, message string) {
	m.logger.Warn().Str("check", check).Str("bot", botName).Msg(message)
	m.eventBus.Emit(ctx, events.New(events.EventHealthAlert, "health_check", events.HealthAlertPayload{
		Check:   check,
		Bot:     botName,
		Message: message,
	}))
}

// checkStalledSessions reconnects bots whose connected session has not
// received anything for longer than the stall timeout.
func (m *Manager) checkStalledSessions(ctx context.Context) {
	timeout := time.Duration(m.cfg.GetApplicationData().Timers.StallTimeout) * time.Second
	if timeout <= 0 {
		return
	}
	now := m.now()

	for _, info := range m.fleet.GetAllInfo() {
		s := info.Session
		if !info.Running || s.State != session.StateConnected || s.LastActivity.IsZero() {
			m.clearStalled(info.Name)
			continue
		}

		idle := now.Sub(s.LastActivity)
		if idle < timeout {
			m.clearStalled(info.Name)
			continue
		}
		if !m.markStalled(info.Name, s.LastActivity) {
			continue
		}

		m.alert(ctx, "stall", info.Name,
			fmt.Sprintf("no traffic for %s, reconnecting", idle.Truncate(time.Second)))
		if err := m.fleet.Reconnect(info.Name); err != nil {
			m.logger.Warn().Err(err).Str("bot", info.Name).Msg("failed to reconnect stalled bot")
		}
	}
}

// markStalled records a stall and reports whether it is new.
func (m *Manager) markStalled(name string, lastActivity time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seen, ok := m.stalled[name]; ok && seen.Equal(lastActivity) {
		return false
	}
	m.stalled[name] = lastActivity
	return true
}

func (m *Manager) clearStalled(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stalled, name)
}

// checkHostResources alerts on memory pressure and a filling journal disk.
func (m *Manager) checkHostResources(ctx context.Context) {
	if memUsage, err := util.GetMemoryUsage(); err != nil {
		m.logger.Warn().Err(err).Msg("memory check failed")
	} else if memUsage.UsedPercent >= memoryAlertPercent {
		m.alert(ctx, "memory", "", fmt.Sprintf("memory usage at %.1f%% (%d MB available)",
			memUsage.UsedPercent, memUsage.Available))
	}

	if proc, err := util.GetProcessUsage(); err == nil {
		m.logger.Debug().
			Uint64("rss_mb", proc.RSSMB).
			Float64("cpu_percent", proc.CPUPercent).
			Int("goroutines", proc.Goroutines).
			Msg("process usage")
	}

	journal := m.cfg.GetApplicationData().Journal
	if !journal.Enabled {
		return
	}
	path := journal.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.cfg.Dir(), path)
	}
	usage, err := util.GetDiskUsage(filepath.Dir(path))
	if err != nil {
		m.logger.Warn().Err(err).Msg("disk utilization check failed")
		return
	}
	if usage.UsedPercent >= diskAlertPercent {
		m.alert(ctx, "disk", "", fmt.Sprintf("disk usage at %.1f%% (%d GB free of %d GB total)",
			usage.UsedPercent, usage.Free, usage.Total))
	}
}
