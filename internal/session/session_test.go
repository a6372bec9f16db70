package session

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/protocol"
)

var target = ServerTarget{
	IP:     "1.2.3.4",
	Port:   "17091",
	Token:  "123",
	UserID: "456",
	DoorID: "77",
	UUID:   "uuid-abc",
}

func TestNewSession(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())
	snap := s.Snapshot()

	assert.Equal(t, StateHandshaking, snap.State)
	assert.True(t, snap.IsRunning)
	assert.False(t, snap.IsRedirect)
	assert.False(t, snap.HasPeer)
	assert.True(t, snap.Server.IsZero())
}

func TestRedirectFlagTracksTarget(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())
	s.Connected(5)

	peer, ok := s.SetRedirect(target, "alice")
	assert.True(t, ok)
	assert.Equal(t, uint32(5), uint32(peer))
	assert.True(t, s.IsRedirect())
	assert.Equal(t, target, s.Server())
	assert.Equal(t, "alice", s.Username())
	assert.Equal(t, StateRedirecting, s.State())

	s.MarkLogonFailed()
	assert.False(t, s.IsRedirect())
	assert.True(t, s.Server().IsZero())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSnapshotRedactsTransferToken(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())
	s.Connected(5)
	s.SetRedirect(target, "alice")

	snap := s.Snapshot()
	assert.True(t, snap.IsRedirect)
	assert.Equal(t, target.Redacted(), snap.Server)
	assert.Empty(t, snap.Server.Token)
	assert.Equal(t, "123", s.Server().Token)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"token"`)
	assert.Contains(t, string(data), `"door_id":"77"`)
}

func TestTakeLoginLine(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())

	line, redirect := s.TakeLoginLine()
	assert.False(t, redirect)
	assert.Equal(t, protocol.InitialLoginLine("tok"), line)
	assert.Equal(t, StateAuthenticating, s.State())

	s.SetRedirect(target, "alice")
	dial, ok := s.ApplyRedirectToLogin()
	require.True(t, ok)
	assert.Equal(t, target, dial)
	assert.False(t, s.IsRedirect(), "transfer is consumed by the dial")
	assert.True(t, s.Server().IsZero())

	info := s.LoginInfo()
	assert.Equal(t, "123", info.Token)
	assert.Equal(t, "456", info.User)
	assert.Equal(t, "77", info.DoorID)
	assert.Equal(t, "uuid-abc", info.UUID)

	line, redirect = s.TakeLoginLine()
	assert.True(t, redirect)
	assert.True(t, strings.HasPrefix(line, "UUIDToken|uuid-abc\n"))
	assert.False(t, s.IsRedirect())
	assert.True(t, s.Server().IsZero())

	_, ok = s.ApplyRedirectToLogin()
	assert.False(t, ok)
}

func TestUnansweredRedirectIsDiscarded(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())
	s.SetRedirect(target, "alice")

	_, ok := s.ApplyRedirectToLogin()
	require.True(t, ok)

	// the target dropped the connection before sending a hello
	s.Disconnected()
	require.True(t, s.Dialing())
	_, ok = s.ApplyRedirectToLogin()
	assert.False(t, ok)

	line, redirect := s.TakeLoginLine()
	assert.False(t, redirect)
	assert.Equal(t, protocol.InitialLoginLine("tok"), line)
}

func TestBanIsTerminal(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())
	s.Connected(1)
	s.Transition(StateConnected)

	_, ok := s.MarkBanned()
	assert.True(t, ok)
	assert.True(t, s.IsBanned())
	assert.False(t, s.IsRunning())
	assert.Equal(t, StateDisconnected, s.State())

	s.Transition(StateConnected)
	assert.Equal(t, StateDisconnected, s.State())
	assert.False(t, s.Dialing())
}

func TestDialingResetsPeer(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())
	s.Connected(3)
	s.Disconnected()

	require.True(t, s.Dialing())
	_, ok := s.Peer()
	assert.False(t, ok)
	assert.Equal(t, StateHandshaking, s.State())

	s.Stop()
	assert.False(t, s.Dialing())
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := New("tok", protocol.DefaultLoginInfo())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetRedirect(target, "alice")
			s.MarkLogonFailed()
		}()
		go func() {
			defer wg.Done()
			snap := s.Snapshot()
			assert.Equal(t, snap.IsRedirect, !snap.Server.IsZero())
		}()
	}
	wg.Wait()
}

func TestStateJSON(t *testing.T) {
	b, err := StateConnected.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"connected"`, string(b))
	assert.Equal(t, "unknown", State(42).String())
}
