package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/login"
	"github.com/growbot-project/growbot/internal/transport"
)

// ErrUnknownBot is returned for names not in the roster.
var ErrUnknownBot = errors.New("unknown bot")

// Manager runs every enabled account of the roster, each in its own goroutine.
type Manager struct {
	mu sync.RWMutex

	cfg      *config.Config
	eventBus *events.EventBus
	auth     login.Authenticator
	dialer   transport.Dialer

	// Bots indexed by lowercase name
	bots  map[string]*Bot
	order []string

	// Bounds concurrent authentications
	startSemaphore chan struct{}
}

// NewManager creates a bot per enabled account.
func NewManager(cfg *config.Config, eventBus *events.EventBus, roster *config.Roster,
	auth login.Authenticator, dialer transport.Dialer) (*Manager, error) {

	botData := cfg.GetBotData()
	limit := botData.MaxConcurrentStart
	if limit < 1 {
		limit = 1
	}

	m := &Manager{
		cfg:            cfg,
		eventBus:       eventBus,
		auth:           auth,
		dialer:         dialer,
		bots:           make(map[string]*Bot),
		startSemaphore: make(chan struct{}, limit),
	}

	var sink EventSink
	if eventBus != nil {
		sink = eventBus
	}

	for _, account := range roster.Enabled() {
		creds, err := account.Credentials()
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", account.Name, err)
		}

		country := account.Country
		if country == "" {
			country = botData.Country
		}
		info := login.NewLoginInfo(account.Name, country)
		if botData.GameVersion != "" {
			info.GameVersion = botData.GameVersion
		}

		b := New(Config{
			Name:           account.Name,
			Credentials:    creds,
			LoginInfo:      info,
			ServerHost:     botData.ServerHost,
			ServerPort:     botData.ServerPort,
			ReconnectDelay: botData.ReconnectDelay(),
			ServiceTimeout: botData.ServiceTimeout(),
		}, auth, dialer, sink, m.startSemaphore)

		key := strings.ToLower(account.Name)
		m.bots[key] = b
		m.order = append(m.order, key)
		log.Debug().Str("bot", account.Name).Str("method", string(creds.Method)).Msg("bot created")
	}

	m.subscribeEvents()
	return m, nil
}

// subscribeEvents registers the manager's command handlers on the EventBus.
func (m *Manager) subscribeEvents() {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Subscribe(events.EventStopBot, "manager.stopBot", m.onCmdStopBot)
	m.eventBus.Subscribe(events.EventReconnectBot, "manager.reconnectBot", m.onCmdReconnectBot)
	m.eventBus.Subscribe(events.EventShutdown, "manager.shutdown", m.onShutdown)
	log.Debug().Msg("manager event subscriptions registered")
}

// Run starts every bot and blocks until all of them have returned. Bans and
// authentication failures end only the affected bot; any other failure
// cancels the whole fleet.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.RLock()
	bots := make([]*Bot, 0, len(m.order))
	for _, key := range m.order {
		bots = append(bots, m.bots[key])
	}
	m.mu.RUnlock()

	stagger := time.Duration(m.cfg.GetBotData().StartStaggerMS) * time.Millisecond
	log.Info().Int("count", len(bots)).Dur("stagger", stagger).Msg("starting bots")

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bots {
		if i > 0 && stagger > 0 {
			select {
			case <-gctx.Done():
			case <-time.After(stagger):
			}
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			err := b.Run(gctx)
			var authErr *login.AuthError
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrBanned):
				log.Warn().Str("bot", b.Name()).Msg("bot banned, not restarting")
				return nil
			case errors.As(err, &authErr):
				log.Error().Err(err).Str("bot", b.Name()).Msg("bot could not log in")
				return nil
			case errors.Is(err, context.Canceled):
				return nil
			}
			return fmt.Errorf("bot %s: %w", b.Name(), err)
		})
	}

	err := g.Wait()
	log.Info().Msg("all bots stopped")
	return err
}

// Get returns a bot by name, case-insensitively.
func (m *Manager) Get(name string) (*Bot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bots[strings.ToLower(name)]
	return b, ok
}

// GetAllInfo returns a snapshot of every bot, sorted by name.
func (m *Manager) GetAllInfo() []Info {
	m.mu.RLock()
	bots := make([]*Bot, 0, len(m.bots))
	for _, b := range m.bots {
		bots = append(bots, b)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(bots))
	for _, b := range bots {
		infos = append(infos, b.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Count returns the number of bots.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bots)
}

// RunningCount returns how many bots are running.
func (m *Manager) RunningCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, b := range m.bots {
		if b.IsRunning() {
			count++
		}
	}
	return count
}

// Stop stops a bot by name.
func (m *Manager) Stop(name string) error {
	b, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBot, name)
	}
	b.Stop()
	log.Info().Str("bot", b.Name()).Msg("bot stop requested")
	return nil
}

// Reconnect drops a bot's connection so it dials again.
func (m *Manager) Reconnect(name string) error {
	b, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBot, name)
	}
	b.Reconnect()
	log.Info().Str("bot", b.Name()).Msg("bot reconnect requested")
	return nil
}

// StopAll stops every bot.
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log.Info().Msg("stopping all bots")
	for _, b := range m.bots {
		b.Stop()
	}
}

func (m *Manager) onCmdStopBot(ctx context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.BotCommandPayload); ok {
		return m.Stop(payload.Name)
	}
	return nil
}

func (m *Manager) onCmdReconnectBot(ctx context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.BotCommandPayload); ok {
		return m.Reconnect(payload.Name)
	}
	return nil
}

func (m *Manager) onShutdown(ctx context.Context, event events.Event) error {
	log.Info().Msg("shutdown event received, stopping all bots")
	m.StopAll()
	return nil
}
