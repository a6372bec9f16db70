package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/protocol"
	"github.com/growbot-project/growbot/internal/session"
	"github.com/growbot-project/growbot/internal/transport"
)

func TestSendToServerRedirects(t *testing.T) {
	f := newFixture(session.StateConnected)

	require.NoError(t, f.d.Handle(context.Background(), sendToServerCall()))

	target := f.session.Server()
	assert.Equal(t, "1.2.3.4", target.IP)
	assert.Equal(t, "17091", target.Port)
	assert.Equal(t, "123", target.Token)
	assert.Equal(t, "456", target.UserID)
	assert.Equal(t, "77", target.DoorID)
	assert.Equal(t, "uuid-abc", target.UUID)
	assert.True(t, f.session.IsRedirect())
	assert.Equal(t, "alice", f.session.Username())
	assert.Equal(t, session.StateRedirecting, f.session.State())
	assert.Equal(t, []transport.Peer{testPeer}, f.transport.Disconnects())

	e, ok := f.sink.Find(events.EventRedirect)
	require.True(t, ok)
	assert.Equal(t, events.RedirectPayload{IP: "1.2.3.4", Port: "17091", DoorID: "77", Username: "alice"}, e.Payload)

	call, ok := f.sink.Find(events.EventServerCall)
	require.True(t, ok)
	assert.Equal(t, "OnSendToServer", call.Payload.(events.ServerCallPayload).Function)
}

func TestSendToServerBadBlob(t *testing.T) {
	f := newFixture(session.StateConnected)
	data := callPacket(
		protocol.StringVariant("OnSendToServer"),
		protocol.Int32Variant(17091),
		protocol.Int32Variant(123),
		protocol.Int32Variant(456),
		protocol.StringVariant("1.2.3.4"),
		protocol.Int32Variant(0),
		protocol.StringVariant("alice"),
	)

	require.Error(t, f.d.Handle(context.Background(), data))
	assert.False(t, f.session.IsRedirect())
	assert.Empty(t, f.transport.Disconnects())
	assert.Equal(t, session.StateConnected, f.session.State())
}

func TestSendToServerWrongArgumentType(t *testing.T) {
	f := newFixture(session.StateConnected)
	data := callPacket(
		protocol.StringVariant("OnSendToServer"),
		protocol.StringVariant("17091"),
	)

	err := f.d.Handle(context.Background(), data)
	require.Error(t, err)
	assert.False(t, f.session.IsRedirect())
	assert.Empty(t, f.transport.Disconnects())
}

func TestUnknownCallIgnored(t *testing.T) {
	f := newFixture(session.StateConnected)

	require.NoError(t, f.d.Handle(context.Background(), callPacket(
		protocol.StringVariant("OnSpawn"),
		protocol.StringVariant("spawn|avatar"),
	)))

	assert.Empty(t, f.transport.Sent())
	assert.Empty(t, f.transport.Disconnects())
	assert.False(t, f.session.IsRedirect())
}

func TestCallWithoutName(t *testing.T) {
	f := newFixture(session.StateConnected)
	err := f.d.Handle(context.Background(), callPacket(protocol.Int32Variant(5)))
	assert.Error(t, err)
}

func TestRouterCustomHandler(t *testing.T) {
	f := newFixture(session.StateConnected)

	var got string
	f.d.Router().Handle("OnTalkBubble", func(_ context.Context, args *protocol.VariantList) error {
		var err error
		got, err = args.String(2)
		return err
	})

	require.NoError(t, f.d.Handle(context.Background(), callPacket(
		protocol.StringVariant("OnTalkBubble"),
		protocol.Int32Variant(1),
		protocol.StringVariant("hello"),
	)))
	assert.Equal(t, "hello", got)
}
