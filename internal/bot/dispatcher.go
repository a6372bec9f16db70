// Package bot runs game sessions: the packet dispatcher and call router that
// drive one session, the Bot run loop that owns its transport, and the
// Manager that runs a fleet of bots.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/inventory"
	"github.com/growbot-project/growbot/internal/protocol"
	"github.com/growbot-project/growbot/internal/session"
	"github.com/growbot-project/growbot/internal/transport"
	"github.com/growbot-project/growbot/internal/world"
)

// Server text markers that end a session.
const (
	markerBanned    = "currently banned"
	markerLogonFail = "logon_fail"
)

// WorldState receives map data.
type WorldState interface {
	ApplyMapData(data []byte) error
	Header() (world.Header, bool)
}

// Pathfinder is recomputed after every map load.
type Pathfinder interface {
	Update(s *session.Session)
}

// InventoryState receives inventory data.
type InventoryState interface {
	ApplyInventoryData(data []byte) error
	Size() uint32
	Items() []inventory.Item
}

// EventSink publishes session events.
type EventSink interface {
	Emit(ctx context.Context, event events.Event)
}

type messageHandler func(ctx context.Context, body []byte) error
type tankHandler func(ctx context.Context, pkt protocol.TankPacket, payload []byte) error

// DispatcherDeps are the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Name       string
	Session    *session.Session
	Transport  transport.Transport
	World      WorldState
	Pathfinder Pathfinder
	Inventory  InventoryState
	Events     EventSink
	Logger     zerolog.Logger
}

// Dispatcher routes messages of one session to their handlers. Handle is
// called from the goroutine that owns the transport, one message at a time.
type Dispatcher struct {
	name      string
	session   *session.Session
	transport transport.Transport
	world     WorldState
	path      Pathfinder
	inventory InventoryState
	events    EventSink
	router    *CallRouter
	logger    zerolog.Logger

	messageHandlers map[protocol.MessageType]messageHandler
	tankHandlers    map[protocol.TankPacketType]tankHandler
}

// NewDispatcher creates a Dispatcher and its CallRouter.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		name:      deps.Name,
		session:   deps.Session,
		transport: deps.Transport,
		world:     deps.World,
		path:      deps.Pathfinder,
		inventory: deps.Inventory,
		events:    deps.Events,
		logger:    deps.Logger,
	}
	d.router = NewCallRouter(d)

	d.messageHandlers = map[protocol.MessageType]messageHandler{
		protocol.MsgServerHello:      d.onServerHello,
		protocol.MsgGenericText:      d.onText,
		protocol.MsgGameMessage:      d.onText,
		protocol.MsgGamePacket:       d.onGamePacket,
		protocol.MsgError:            d.onError,
		protocol.MsgClientLogRequest: d.onClientLogRequest,
	}
	d.tankHandlers = map[protocol.TankPacketType]tankHandler{
		protocol.PktPingRequest:        d.onPingRequest,
		protocol.PktCallFunction:       d.onCallFunction,
		protocol.PktSendMapData:        d.onMapData,
		protocol.PktSendInventoryState: d.onInventoryState,
	}
	return d
}

// Router returns the call router so callers can register extra calls.
func (d *Dispatcher) Router() *CallRouter {
	return d.router
}

// Handle processes one raw message. Malformed input is returned as a
// *protocol.DecodeError; transport failures are returned as-is. Neither
// leaves the session partially updated.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	msgType, body, err := protocol.ParseMessage(data)
	if err != nil {
		return err
	}

	if d.session.IsBanned() {
		d.logger.Debug().Str("type", msgType.String()).Msg("dropping message for banned session")
		return nil
	}
	switch state := d.session.State(); state {
	case session.StateRedirecting, session.StateDisconnected:
		// A ban notice still counts while the peer is going away.
		if isText(msgType) && strings.Contains(protocol.MessageText(body), markerBanned) {
			return d.onText(ctx, body)
		}
		d.logger.Debug().
			Str("type", msgType.String()).
			Str("state", state.String()).
			Msg("dropping message while tearing down")
		return nil
	}

	handler, ok := d.messageHandlers[msgType]
	if !ok {
		d.logger.Debug().Str("type", msgType.String()).Int("size", len(body)).Msg("unhandled message type")
		return nil
	}
	return handler(ctx, body)
}

func isText(t protocol.MessageType) bool {
	return t == protocol.MsgGenericText || t == protocol.MsgGameMessage
}

func (d *Dispatcher) emit(ctx context.Context, t events.EventType, payload interface{}) {
	if d.events == nil {
		return
	}
	d.events.Emit(ctx, events.New(t, d.name, payload))
}

func (d *Dispatcher) emitTransition(ctx context.Context, from, to session.State) {
	if from == to {
		return
	}
	d.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("session state changed")
	d.emit(ctx, events.EventStateChanged, events.StateChangedPayload{From: from.String(), To: to.String()})
}

func (d *Dispatcher) send(data []byte) error {
	peer, ok := d.session.Peer()
	if !ok {
		return fmt.Errorf("send %d bytes: %w", len(data), transport.ErrUnknownPeer)
	}
	return d.transport.Send(peer, data, transport.Reliable)
}

// disconnect requests teardown of peer without waiting for it.
func (d *Dispatcher) disconnect(peer transport.Peer, ok bool) error {
	if !ok {
		return nil
	}
	if err := d.transport.Disconnect(peer); err != nil {
		return fmt.Errorf("failed to disconnect peer %d: %w", peer, err)
	}
	return nil
}

// promote moves a session out of Authenticating once the server starts
// talking after the login line.
func (d *Dispatcher) promote(ctx context.Context) {
	if d.session.State() != session.StateAuthenticating {
		return
	}
	from := d.session.Transition(session.StateConnected)
	d.emitTransition(ctx, from, d.session.State())
}

func (d *Dispatcher) onServerHello(ctx context.Context, _ []byte) error {
	from := d.session.State()
	if from != session.StateHandshaking {
		d.logger.Debug().Str("state", from.String()).Msg("ignoring server hello outside handshake")
		return nil
	}

	line, redirect := d.session.TakeLoginLine()
	d.logger.Info().Bool("redirect", redirect).Msg("server hello received, sending login")
	d.emitTransition(ctx, from, d.session.State())

	if err := d.send(protocol.BuildTextMessage(protocol.MsgGenericText, line)); err != nil {
		return fmt.Errorf("failed to send login line: %w", err)
	}
	return nil
}

func (d *Dispatcher) onText(ctx context.Context, body []byte) error {
	text := protocol.MessageText(body)
	d.logger.Debug().Str("text", text).Msg("text message")

	from := d.session.State()
	switch {
	case strings.Contains(text, markerBanned):
		peer, ok := d.session.MarkBanned()
		d.logger.Warn().Str("text", text).Msg("account is banned, stopping")
		d.emitTransition(ctx, from, session.StateDisconnected)
		d.emit(ctx, events.EventBanned, events.BannedPayload{Message: text})
		return d.disconnect(peer, ok)

	case strings.Contains(text, markerLogonFail):
		if from != session.StateAuthenticating && from != session.StateConnected {
			d.logger.Debug().Str("state", from.String()).Msg("ignoring logon failure outside login")
			return nil
		}
		peer, ok := d.session.MarkLogonFailed()
		d.logger.Warn().Str("text", text).Msg("logon failed, dropping redirect")
		d.emitTransition(ctx, from, session.StateDisconnected)
		d.emit(ctx, events.EventLogonFailed, events.LogonFailedPayload{Message: text})
		return d.disconnect(peer, ok)
	}

	d.promote(ctx)
	return nil
}

func (d *Dispatcher) onError(_ context.Context, body []byte) error {
	d.logger.Warn().Str("text", protocol.MessageText(body)).Msg("server sent error message")
	return nil
}

func (d *Dispatcher) onClientLogRequest(_ context.Context, body []byte) error {
	d.logger.Info().Str("text", protocol.MessageText(body)).Msg("server requested client log")
	return nil
}

func (d *Dispatcher) onGamePacket(ctx context.Context, body []byte) error {
	pkt, payload, err := protocol.DecodeTankPacket(body)
	if err != nil {
		return err
	}

	d.promote(ctx)
	if state := d.session.State(); state != session.StateConnected {
		d.logger.Debug().Str("state", state.String()).Str("packet", pkt.Type.String()).Msg("game packet outside connected state")
		return nil
	}

	handler, ok := d.tankHandlers[pkt.Type]
	if !ok {
		d.logger.Trace().Str("packet", pkt.Type.String()).Uint32("ext", pkt.ExtendedDataLength).Msg("unhandled game packet")
		return nil
	}
	return handler(ctx, pkt, payload)
}

// PingReply builds the reply to a ping request. payload is echoed back.
func PingReply(payload []byte) []byte {
	reply := protocol.TankPacket{
		Type: protocol.PktPingReply,
		// Zero instead of the bot's own net id. Unclear why the server
		// expects this, but replies carrying the real id are not verified.
		NetID:              0,
		Unk2:               0,
		VectorX:            64.0,
		VectorY:            64.0,
		VectorX2:           1000.0,
		VectorY2:           250.0,
		ExtendedDataLength: uint32(len(payload)),
	}
	return protocol.BuildGamePacket(reply, payload)
}

func (d *Dispatcher) onPingRequest(_ context.Context, _ protocol.TankPacket, payload []byte) error {
	if err := d.send(PingReply(payload)); err != nil {
		return fmt.Errorf("failed to send ping reply: %w", err)
	}
	return nil
}

func (d *Dispatcher) onCallFunction(ctx context.Context, _ protocol.TankPacket, payload []byte) error {
	list, err := protocol.DeserializeVariantList(payload)
	if err != nil {
		return err
	}
	return d.router.Route(ctx, list)
}

func (d *Dispatcher) onMapData(ctx context.Context, _ protocol.TankPacket, payload []byte) error {
	if d.world == nil {
		return nil
	}
	if err := d.world.ApplyMapData(payload); err != nil {
		return err
	}
	if d.path != nil {
		d.path.Update(d.session)
	}

	h, _ := d.world.Header()
	d.logger.Info().Str("world", h.Name).Uint32("width", h.Width).Uint32("height", h.Height).Msg("entered world")
	d.emit(ctx, events.EventWorldLoaded, events.WorldLoadedPayload{Name: h.Name, Width: h.Width, Height: h.Height})
	return nil
}

func (d *Dispatcher) onInventoryState(ctx context.Context, _ protocol.TankPacket, payload []byte) error {
	if d.inventory == nil {
		return nil
	}
	if err := d.inventory.ApplyInventoryData(payload); err != nil {
		return err
	}

	size, items := d.inventory.Size(), len(d.inventory.Items())
	d.logger.Debug().Uint32("size", size).Int("items", items).Msg("inventory updated")
	d.emit(ctx, events.EventInventoryLoaded, events.InventoryLoadedPayload{Size: size, Items: items})
	return nil
}
