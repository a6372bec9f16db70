package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/login"
	"github.com/growbot-project/growbot/internal/transport"
)

func testManager(t *testing.T, accounts ...config.Account) (*Manager, *events.EventBus, *transport.MemoryHost) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BotData.StartStaggerMS = 0
	cfg.BotData.ServiceTimeoutMS = 5
	cfg.BotData.GameVersion = "5.01"

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	host := transport.NewMemoryHost()
	m, err := NewManager(cfg, bus, &config.Roster{Accounts: accounts}, login.NewRouter(), &transport.MemoryDialer{Host: host})
	require.NoError(t, err)
	return m, bus, host
}

func TestNewManagerSkipsDisabled(t *testing.T) {
	disabled := false
	m, _, _ := testManager(t,
		config.Account{Name: "Alice", Method: "token", Token: "a"},
		config.Account{Name: "bob", Method: "token", Token: "b", Enabled: &disabled},
	)

	assert.Equal(t, 1, m.Count())
	b, ok := m.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", b.Name())
	assert.Equal(t, "5.01", b.Session().LoginInfo().GameVersion)

	_, ok = m.Get("bob")
	assert.False(t, ok)

	infos := m.GetAllInfo()
	require.Len(t, infos, 1)
	assert.Equal(t, "Alice", infos[0].Name)
	assert.Equal(t, login.MethodToken, infos[0].Method)
}

func TestNewManagerRejectsUnknownMethod(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewManager(cfg, nil, &config.Roster{Accounts: []config.Account{{Name: "a", Method: "steam"}}},
		login.NewRouter(), &transport.MemoryDialer{Host: transport.NewMemoryHost()})
	assert.Error(t, err)
}

func TestManagerUnknownBot(t *testing.T) {
	m, _, _ := testManager(t)
	assert.ErrorIs(t, m.Stop("ghost"), ErrUnknownBot)
	assert.ErrorIs(t, m.Reconnect("ghost"), ErrUnknownBot)
}

func TestManagerRunAndStopByEvent(t *testing.T) {
	m, bus, host := testManager(t,
		config.Account{Name: "alice", Method: "token", Token: "a"},
		config.Account{Name: "carol", Method: "google", Username: "carol@example.com"},
	)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	require.Eventually(t, func() bool { return len(host.Dials()) == 1 && m.RunningCount() == 1 }, waitFor, tick)

	carol, _ := m.Get("carol")
	require.Eventually(t, func() bool { return carol.Info().LastError != "" }, waitFor, tick)
	assert.Contains(t, carol.Info().LastError, "unsupported")

	require.NoError(t, bus.EmitSync(context.Background(), events.New(events.EventStopBot, "test", events.BotCommandPayload{Name: "alice"})))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, 0, m.RunningCount())
}

func TestManagerShutdownEvent(t *testing.T) {
	m, bus, host := testManager(t, config.Account{Name: "alice", Method: "token", Token: "a"})

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	require.Eventually(t, func() bool { return len(host.Dials()) == 1 }, waitFor, tick)

	require.NoError(t, bus.EmitSync(context.Background(), events.New(events.EventShutdown, "test", nil)))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("manager did not stop")
	}
}
