package bot

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/inventory"
	"github.com/growbot-project/growbot/internal/protocol"
	"github.com/growbot-project/growbot/internal/session"
	"github.com/growbot-project/growbot/internal/transport"
	"github.com/growbot-project/growbot/internal/world"
)

type sentMessage struct {
	peer transport.Peer
	data []byte
	mode transport.Reliability
}

// fakeTransport records sends and disconnect requests.
type fakeTransport struct {
	mu          sync.Mutex
	sent        []sentMessage
	disconnects []transport.Peer
	sendErr     error
}

func (f *fakeTransport) Send(peer transport.Peer, data []byte, mode transport.Reliability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{peer: peer, data: append([]byte(nil), data...), mode: mode})
	return nil
}

func (f *fakeTransport) Disconnect(peer transport.Peer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, peer)
	return nil
}

func (f *fakeTransport) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeTransport) Disconnects() []transport.Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Peer(nil), f.disconnects...)
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Emit(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *recordingSink) Find(t events.EventType) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == t {
			return e, true
		}
	}
	return events.Event{}, false
}

type fixture struct {
	session   *session.Session
	transport *fakeTransport
	sink      *recordingSink
	world     *world.World
	inventory *inventory.Inventory
	d         *Dispatcher
}

const testPeer transport.Peer = 7

// newFixture returns a dispatcher over a session connected to testPeer and
// sitting in state.
func newFixture(state session.State) *fixture {
	f := &fixture{
		session:   session.New("tok", protocol.DefaultLoginInfo()),
		transport: &fakeTransport{},
		sink:      &recordingSink{},
		world:     world.New(),
		inventory: inventory.New(),
	}
	f.session.Connected(testPeer)
	f.session.Transition(state)
	f.d = NewDispatcher(DispatcherDeps{
		Name:       "test",
		Session:    f.session,
		Transport:  f.transport,
		World:      f.world,
		Pathfinder: world.NewNavigator(f.world),
		Inventory:  f.inventory,
		Events:     f.sink,
		Logger:     zerolog.Nop(),
	})
	return f
}

func textMessage(t protocol.MessageType, text string) []byte {
	return protocol.BuildTextMessage(t, text)
}

func gamePacket(t protocol.TankPacketType, payload []byte) []byte {
	return protocol.BuildGamePacket(protocol.TankPacket{
		Type:               t,
		ExtendedDataLength: uint32(len(payload)),
	}, payload)
}

func callPacket(args ...protocol.Variant) []byte {
	payload, err := protocol.NewVariantList(args...).Serialize()
	if err != nil {
		panic(err)
	}
	return gamePacket(protocol.PktCallFunction, payload)
}

// sendToServerCall is a redirect to 1.2.3.4:17091 for user alice.
func sendToServerCall() []byte {
	return callPacket(
		protocol.StringVariant("OnSendToServer"),
		protocol.Int32Variant(17091),
		protocol.Int32Variant(123),
		protocol.Int32Variant(456),
		protocol.StringVariant("1.2.3.4|77|uuid-abc"),
		protocol.Int32Variant(0),
		protocol.StringVariant("alice"),
	)
}
