package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/events"
)

func dialStream(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()
	httpSrv := httptest.NewServer(ts.srv.Handler())
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return ts.srv.stream.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func TestStreamForwardsSessionEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := dialStream(t, ts)

	ts.bus.Emit(context.Background(), events.New(events.EventRedirect, "alice",
		events.RedirectPayload{IP: "1.2.3.4", Port: "17091", DoorID: "77", Username: "alice"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, string(events.EventRedirect), msg["type"])
	assert.Equal(t, "alice", msg["bot"])
	payload := msg["payload"].(map[string]interface{})
	assert.Equal(t, "1.2.3.4", payload["ip"])
}

func TestStreamIgnoresCommands(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := dialStream(t, ts)

	ts.bus.Emit(context.Background(), events.New(events.EventStopBot, "api", events.BotCommandPayload{Name: "alice"}))
	ts.bus.Emit(context.Background(), events.New(events.EventBanned, "bob", events.BannedPayload{Message: "banned"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.EventBanned, msg.Type)
}

func TestStreamCloseDisconnectsClients(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := dialStream(t, ts)

	ts.srv.stream.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, ts.srv.stream.ClientCount())
}

func TestStreamBroadcastDropsWhenFull(t *testing.T) {
	st := NewStream(nil)
	ch, ok := st.register()
	require.True(t, ok)

	for i := 0; i < streamBuffer+10; i++ {
		st.Broadcast(StreamMessage{Type: events.EventBotStarted})
	}
	assert.Len(t, ch, streamBuffer)

	st.Close()
	_, ok = st.register()
	assert.False(t, ok)
}

func TestStreamCheckOrigin(t *testing.T) {
	st := NewStream([]string{"https://ops.example"})
	req := httptest.NewRequest("GET", "/api/events", nil)
	req.Header.Set("Origin", "https://ops.example")
	assert.True(t, st.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, st.upgrader.CheckOrigin(req))
}
