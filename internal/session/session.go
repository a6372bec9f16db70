// Package session holds the mutable connection record of one bot.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/growbot-project/growbot/internal/protocol"
	"github.com/growbot-project/growbot/internal/transport"
)

// State is the connection phase of a session.
type State int

const (
	StateHandshaking State = iota
	StateAuthenticating
	StateConnected
	StateRedirecting
	StateDisconnected
)

var stateNames = map[State]string{
	StateHandshaking:    "handshaking",
	StateAuthenticating: "authenticating",
	StateConnected:      "connected",
	StateRedirecting:    "redirecting",
	StateDisconnected:   "disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ServerTarget is the transfer target handed out by OnSendToServer. Values are
// kept as the strings the server echoes back in the redirect login line.
type ServerTarget struct {
	IP     string `json:"ip"`
	Port   string `json:"port"`
	Token  string `json:"token,omitempty"`
	UserID string `json:"user_id"`
	DoorID string `json:"door_id"`
	UUID   string `json:"uuid"`
}

// Redacted returns a copy without the transfer token.
func (t ServerTarget) Redacted() ServerTarget {
	t.Token = ""
	return t
}

// IsZero reports whether no target is held.
func (t ServerTarget) IsZero() bool {
	return t == ServerTarget{}
}

// Snapshot is an immutable copy of a session for reporting.
type Snapshot struct {
	State        State          `json:"state"`
	Peer         transport.Peer `json:"peer,omitempty"`
	HasPeer      bool           `json:"has_peer"`
	IsRedirect   bool           `json:"is_redirect"`
	IsBanned     bool           `json:"is_banned"`
	IsRunning    bool           `json:"is_running"`
	Username     string         `json:"username"`
	Server       ServerTarget   `json:"server"`
	LastActivity time.Time      `json:"last_activity"`
	Connects     int            `json:"connects"`
}

// Session is one bot's connection record. All access goes through its
// methods, which hold mu only while reading or writing fields.
type Session struct {
	mu           sync.Mutex
	state        State
	peer         transport.Peer
	hasPeer      bool
	isRedirect   bool
	stagedLogin  bool
	isBanned     bool
	isRunning    bool
	token        string
	loginInfo    protocol.LoginInfo
	server       ServerTarget
	username     string
	lastActivity time.Time
	connects     int
}

// New creates a running session that has not yet dialed.
func New(token string, info protocol.LoginInfo) *Session {
	return &Session{
		state:     StateHandshaking,
		isRunning: true,
		token:     token,
		loginInfo: info,
	}
}

// Snapshot returns a copy of the reportable fields. The server target's
// transfer token is left out.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:        s.state,
		Peer:         s.peer,
		HasPeer:      s.hasPeer,
		IsRedirect:   s.isRedirect,
		IsBanned:     s.isBanned,
		IsRunning:    s.isRunning,
		Username:     s.username,
		Server:       s.server.Redacted(),
		LastActivity: s.lastActivity,
		Connects:     s.connects,
	}
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Peer returns the current peer, if connected.
func (s *Session) Peer() (transport.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer, s.hasPeer
}

// Token returns the session token issued by the login backend.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken replaces the session token after a fresh authentication.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// LoginInfo returns a copy of the redirect login fields.
func (s *Session) LoginInfo() protocol.LoginInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginInfo
}

// IsRedirect reports whether a transfer target is pending.
func (s *Session) IsRedirect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRedirect
}

// IsBanned reports whether the account was banned.
func (s *Session) IsBanned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isBanned
}

// IsRunning reports whether the bot should keep reconnecting.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Server returns the pending transfer target.
func (s *Session) Server() ServerTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

// Username returns the name given by the last redirect.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Touch records packet activity.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// Transition moves to state to and returns the previous state. A banned
// session stays Disconnected.
func (s *Session) Transition(to State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.state
	if s.isBanned {
		s.state = StateDisconnected
		return from
	}
	s.state = to
	return from
}

// Dialing resets the session for a new connection attempt. It returns false
// if the session is banned or stopped.
func (s *Session) Dialing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isBanned || !s.isRunning {
		return false
	}
	s.state = StateHandshaking
	s.hasPeer = false
	s.peer = 0
	return true
}

// Connected records the confirmed peer.
func (s *Session) Connected(peer transport.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = peer
	s.hasPeer = true
	s.connects++
}

// Disconnected clears the peer and moves to StateDisconnected.
func (s *Session) Disconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = 0
	s.hasPeer = false
	s.state = StateDisconnected
}

// MarkBanned sets the ban flag and stops the bot. The returned peer is the
// one to disconnect, if any.
func (s *Session) MarkBanned() (transport.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isBanned = true
	s.isRunning = false
	s.state = StateDisconnected
	return s.peer, s.hasPeer
}

// MarkLogonFailed drops any pending transfer so the next dial goes to the
// main server. The returned peer is the one to disconnect, if any.
func (s *Session) MarkLogonFailed() (transport.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRedirect = false
	s.server = ServerTarget{}
	if !s.isBanned {
		s.state = StateDisconnected
	}
	return s.peer, s.hasPeer
}

// SetRedirect stores a transfer target and the username that goes with it.
// The returned peer is the one to disconnect, if any.
func (s *Session) SetRedirect(target ServerTarget, username string) (transport.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = target
	s.username = username
	s.isRedirect = true
	if !s.isBanned {
		s.state = StateRedirecting
	}
	return s.peer, s.hasPeer
}

// ApplyRedirectToLogin is called once per dial. A pending transfer is
// consumed here: its credentials are staged in the login fields for the next
// server hello, the target is cleared with the redirect flag, and the target
// is returned for dialing. ok is false when no transfer is pending, which
// also discards credentials staged for an earlier dial that never got a
// hello.
func (s *Session) ApplyRedirectToLogin() (ServerTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRedirect {
		s.stagedLogin = false
		return ServerTarget{}, false
	}
	target := s.server
	s.loginInfo.Token = target.Token
	s.loginInfo.User = target.UserID
	s.loginInfo.DoorID = target.DoorID
	s.loginInfo.UUID = target.UUID
	s.stagedLogin = true
	s.isRedirect = false
	s.server = ServerTarget{}
	return target, true
}

// TakeLoginLine builds the reply to a server hello and moves the session to
// StateAuthenticating. Staged transfer credentials are sent once.
func (s *Session) TakeLoginLine() (line string, redirect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isBanned {
		s.state = StateAuthenticating
	}
	if !s.stagedLogin {
		return protocol.InitialLoginLine(s.token), false
	}
	s.stagedLogin = false
	return protocol.RedirectLoginLine(s.loginInfo), true
}

// Stop clears the running flag.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
}
