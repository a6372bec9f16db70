package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/inventory"
	"github.com/growbot-project/growbot/internal/login"
	"github.com/growbot-project/growbot/internal/protocol"
	"github.com/growbot-project/growbot/internal/session"
	"github.com/growbot-project/growbot/internal/transport"
	"github.com/growbot-project/growbot/internal/world"
)

var (
	// ErrBanned is returned by Run when the account was banned.
	ErrBanned = errors.New("account banned")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("bot already running")
)

// Config describes one bot.
type Config struct {
	Name           string
	Credentials    login.Credentials
	LoginInfo      protocol.LoginInfo
	ServerHost     string
	ServerPort     int
	ReconnectDelay time.Duration
	ServiceTimeout time.Duration
}

type command int

const (
	cmdStop command = iota
	cmdReconnect
)

// Info is a point-in-time view of a bot for the API and CLI.
type Info struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Method    login.Method     `json:"method"`
	Running   bool             `json:"running"`
	Session   session.Snapshot `json:"session"`
	World     *world.Header    `json:"world,omitempty"`
	Inventory int              `json:"inventory_items"`
	StartedAt time.Time        `json:"started_at"`
	Uptime    string           `json:"uptime"`
	LastError string           `json:"last_error,omitempty"`
}

// Bot drives one account. Run owns the transport host; other goroutines
// talk to it through Stop and Reconnect, which post commands.
type Bot struct {
	id        string
	cfg       Config
	auth      login.Authenticator
	dialer    transport.Dialer
	events    EventSink
	session   *session.Session
	world     *world.World
	navigator *world.Navigator
	inventory *inventory.Inventory
	logger    zerolog.Logger
	commands  chan command
	gate      chan struct{}

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	lastErr   error
}

// New creates a Bot. gate, if not nil, bounds how many bots authenticate at once.
func New(cfg Config, auth login.Authenticator, dialer transport.Dialer, sink EventSink, gate chan struct{}) *Bot {
	w := world.New()
	return &Bot{
		id:        uuid.NewString(),
		cfg:       cfg,
		auth:      auth,
		dialer:    dialer,
		events:    sink,
		session:   session.New("", cfg.LoginInfo),
		world:     w,
		navigator: world.NewNavigator(w),
		inventory: inventory.New(),
		logger:    log.With().Str("component", "bot").Str("bot", cfg.Name).Logger(),
		commands:  make(chan command, 4),
		gate:      gate,
	}
}

// Name returns the bot name.
func (b *Bot) Name() string {
	return b.cfg.Name
}

// Session returns the bot's session.
func (b *Bot) Session() *session.Session {
	return b.session
}

// IsRunning reports whether Run is active.
func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Info returns a snapshot of the bot.
func (b *Bot) Info() Info {
	b.mu.RLock()
	info := Info{
		ID:        b.id,
		Name:      b.cfg.Name,
		Method:    b.cfg.Credentials.Method,
		Running:   b.running,
		StartedAt: b.startedAt,
	}
	if b.lastErr != nil {
		info.LastError = b.lastErr.Error()
	}
	b.mu.RUnlock()

	info.Session = b.session.Snapshot()
	if h, ok := b.world.Header(); ok {
		info.World = &h
	}
	info.Inventory = len(b.inventory.Items())
	if info.Running {
		info.Uptime = time.Since(info.StartedAt).Truncate(time.Second).String()
	}
	return info
}

// Stop asks the bot to disconnect and not reconnect.
func (b *Bot) Stop() {
	b.session.Stop()
	b.post(cmdStop)
}

// Reconnect asks the bot to drop its connection and dial again.
func (b *Bot) Reconnect() {
	b.post(cmdReconnect)
}

func (b *Bot) post(c command) {
	select {
	case b.commands <- c:
	default:
		b.logger.Warn().Msg("command queue full, dropping command")
	}
}

func (b *Bot) emit(ctx context.Context, t events.EventType, payload interface{}) {
	if b.events != nil {
		b.events.Emit(ctx, events.New(t, b.cfg.Name, payload))
	}
}

func (b *Bot) setErr(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// Run authenticates and keeps the bot connected until ctx is done, the bot
// is stopped, or the account is banned. An *login.AuthError is returned
// before any connection is attempted.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.running = true
	b.startedAt = time.Now()
	b.lastErr = nil
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		b.emit(context.WithoutCancel(ctx), events.EventBotStopped, nil)
	}()

	b.emit(ctx, events.EventBotStarted, nil)

	if err := b.authenticate(ctx); err != nil {
		b.setErr(err)
		return err
	}

	host, err := b.dialer.NewHost()
	if err != nil {
		err = fmt.Errorf("failed to create transport host: %w", err)
		b.setErr(err)
		return err
	}
	defer host.Close()

	dispatcher := NewDispatcher(DispatcherDeps{
		Name:       b.cfg.Name,
		Session:    b.session,
		Transport:  host,
		World:      b.world,
		Pathfinder: b.navigator,
		Inventory:  b.inventory,
		Events:     b.events,
		Logger:     b.logger,
	})

	for {
		if !b.session.Dialing() {
			break
		}

		ip, port := b.cfg.ServerHost, b.cfg.ServerPort
		redirected := false
		if target, ok := b.session.ApplyRedirectToLogin(); ok {
			p, err := strconv.Atoi(target.Port)
			if err != nil {
				b.logger.Warn().Str("port", target.Port).Msg("redirect port is not a number, using main server")
				b.session.ApplyRedirectToLogin()
				continue
			}
			ip, port, redirected = target.IP, p, true
		}

		b.logger.Info().Str("ip", ip).Int("port", port).Bool("redirect", redirected).Msg("connecting")
		err := b.serve(ctx, host, dispatcher, ip, port)
		if err != nil && ctx.Err() == nil {
			b.setErr(err)
			b.logger.Error().Err(err).Msg("connection failed")
		}

		if ctx.Err() != nil {
			return nil
		}
		if b.session.IsBanned() {
			return ErrBanned
		}
		if !b.session.IsRunning() {
			break
		}
		// Only a redirect handed out during the connection that just ended
		// is followed at once. A dead redirect target backs off and falls
		// back to the main server.
		if err != nil || !b.session.IsRedirect() {
			if !b.wait(ctx, b.cfg.ReconnectDelay) {
				break
			}
		}
	}

	if b.session.IsBanned() {
		return ErrBanned
	}
	b.logger.Info().Msg("bot stopped")
	return nil
}

func (b *Bot) authenticate(ctx context.Context) error {
	if b.gate != nil {
		select {
		case b.gate <- struct{}{}:
			defer func() { <-b.gate }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	token, err := b.auth.Authenticate(ctx, b.cfg.Credentials)
	if err != nil {
		b.logger.Error().Err(err).Str("method", string(b.cfg.Credentials.Method)).Msg("authentication failed")
		b.emit(ctx, events.EventAuthFailed, events.AuthFailedPayload{
			Method: string(b.cfg.Credentials.Method),
			Error:  err.Error(),
		})
		return err
	}
	b.session.SetToken(token)
	b.logger.Info().Str("method", string(b.cfg.Credentials.Method)).Msg("authenticated")
	return nil
}

// wait sleeps for d unless ctx ends or a command arrives. It returns false
// if the bot should stop.
func (b *Bot) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case c := <-b.commands:
		return c != cmdStop
	case <-timer.C:
		return true
	}
}

// serve runs one connection from dial to disconnect.
func (b *Bot) serve(ctx context.Context, host transport.Host, d *Dispatcher, ip string, port int) error {
	peer, err := host.Connect(ctx, ip, port)
	if err != nil {
		return err
	}

	disconnecting := false
	requestDisconnect := func() {
		if disconnecting {
			return
		}
		disconnecting = true
		if err := host.Disconnect(peer); err != nil {
			b.logger.Warn().Err(err).Msg("failed to request disconnect")
		}
	}

	for {
		select {
		case <-ctx.Done():
			requestDisconnect()
			return ctx.Err()
		case c := <-b.commands:
			switch c {
			case cmdStop:
				b.logger.Info().Msg("stop requested")
			case cmdReconnect:
				b.logger.Info().Msg("reconnect requested")
			}
			requestDisconnect()
		default:
		}

		ev, err := host.Service(b.cfg.ServiceTimeout)
		if err != nil {
			return fmt.Errorf("transport service failed: %w", err)
		}

		switch ev.Type {
		case transport.EventConnect:
			if ev.Peer != peer {
				continue
			}
			b.session.Connected(peer)
			b.logger.Info().Msg("connected, waiting for server hello")

		case transport.EventReceive:
			if ev.Peer != peer {
				continue
			}
			b.session.Touch(time.Now())
			if err := d.Handle(ctx, ev.Data); err != nil {
				if protocol.IsDecodeError(err) {
					b.logger.Warn().Err(err).Int("size", len(ev.Data)).Msg("dropped malformed packet")
				} else {
					b.logger.Error().Err(err).Msg("failed to handle packet")
				}
			}

		case transport.EventDisconnect:
			if ev.Peer != peer {
				continue
			}
			from := b.session.State()
			b.session.Disconnected()
			d.emitTransition(ctx, from, session.StateDisconnected)
			b.logger.Info().Msg("disconnected")
			return nil
		}
	}
}
