package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/bot"
	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/session"
)

type fakePruner struct {
	cutoffs []time.Time
}

func (f *fakePruner) Prune(before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return 3, nil
}

type fakeFleet []bot.Info

func (f fakeFleet) GetAllInfo() []bot.Info { return f }

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
	}{
		{"04:00", 4, 0},
		{"23:59", 23, 59},
		{"7:05", 7, 5},
		{"", 4, 0},
		{"25:00", 4, 0},
		{"ab:cd", 4, 0},
		{"12", 4, 0},
	}
	for _, tt := range tests {
		h, m := parseClock(tt.in)
		assert.Equal(t, tt.hour, h, tt.in)
		assert.Equal(t, tt.minute, m, tt.in)
	}
}

func TestNextRunTime(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ApplicationData.Journal.CleanupTime = "04:30"
	s := NewScheduler(cfg, events.NewEventBus(), nil, nil)

	s.now = func() time.Time { return time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC) }
	assert.Equal(t, time.Date(2026, 2, 1, 4, 30, 0, 0, time.UTC), s.nextRunTime())

	s.now = func() time.Time { return time.Date(2026, 2, 1, 4, 30, 0, 0, time.UTC) }
	assert.Equal(t, time.Date(2026, 2, 2, 4, 30, 0, 0, time.UTC), s.nextRunTime())
}

func TestRunDaily(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ApplicationData.Journal.RetentionDays = 7
	cfg.ApplicationData.Logging.Directory = t.TempDir()

	bus := events.NewEventBus()
	defer bus.Stop()
	got := make(chan events.NotifyDiscordPayload, 1)
	bus.Subscribe(events.EventNotifyDiscordAdmin, "test", func(_ context.Context, e events.Event) error {
		got <- e.Payload.(events.NotifyDiscordPayload)
		return nil
	})

	pruner := &fakePruner{}
	fleet := fakeFleet{
		{Name: "a", Running: true},
		{Name: "b", Session: session.Snapshot{IsBanned: true}},
		{Name: "c", LastError: "auth failed"},
	}
	now := time.Date(2026, 2, 10, 4, 0, 0, 0, time.UTC)
	s := NewScheduler(cfg, bus, pruner, fleet)
	s.now = func() time.Time { return now }

	s.RunDaily(context.Background())

	require.Len(t, pruner.cutoffs, 1)
	assert.Equal(t, now.Add(-7*24*time.Hour), pruner.cutoffs[0])

	select {
	case p := <-got:
		assert.Equal(t, "3 bots: 1 running, 1 banned, 1 failed", p.Message)
		assert.Equal(t, "warning", p.Level)
	case <-time.After(time.Second):
		t.Fatal("summary not published")
	}
}

func TestPruneSkippedWhenDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ApplicationData.Journal.Enabled = false
	pruner := &fakePruner{}
	NewScheduler(cfg, events.NewEventBus(), pruner, nil).pruneJournal()
	assert.Empty(t, pruner.cutoffs)
}
