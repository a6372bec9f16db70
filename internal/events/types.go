// Package events defines event types and payloads for the growbot event system.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session events
	EventBotStarted      EventType = "bot_started"
	EventBotStopped      EventType = "bot_stopped"
	EventStateChanged    EventType = "bot_state_changed"
	EventBanned          EventType = "bot_banned"
	EventLogonFailed     EventType = "bot_logon_failed"
	EventRedirect        EventType = "bot_redirect"
	EventAuthFailed      EventType = "bot_auth_failed"
	EventWorldLoaded     EventType = "bot_world_loaded"
	EventInventoryLoaded EventType = "bot_inventory_loaded"
	EventServerCall      EventType = "bot_server_call"

	// Control events
	EventStopBot      EventType = "cmd_stop_bot"
	EventReconnectBot EventType = "cmd_reconnect_bot"

	// Notification events
	EventNotifyDiscordAdmin EventType = "notify_discord_admin"

	// System events
	EventHealthAlert   EventType = "health_alert"
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// SessionEvents lists the events that describe what happened to a bot.
// They are journaled, streamed and published.
var SessionEvents = []EventType{
	EventBotStarted,
	EventBotStopped,
	EventStateChanged,
	EventBanned,
	EventLogonFailed,
	EventRedirect,
	EventAuthFailed,
	EventWorldLoaded,
	EventInventoryLoaded,
}

// Event represents a single event in the system. Source is the bot name
// for session events.
type Event struct {
	Type    EventType   `json:"type"`
	Source  string      `json:"source"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// New creates an Event stamped with the current time.
func New(t EventType, source string, payload interface{}) Event {
	return Event{Type: t, Source: source, Time: time.Now(), Payload: payload}
}

// StateChangedPayload is emitted on every session state transition.
type StateChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RedirectPayload describes a server transfer ordered by OnSendToServer.
type RedirectPayload struct {
	IP       string `json:"ip"`
	Port     string `json:"port"`
	DoorID   string `json:"door_id"`
	Username string `json:"username"`
}

// BannedPayload carries the server text that reported the ban.
type BannedPayload struct {
	Message string `json:"message"`
}

// LogonFailedPayload carries the server text that rejected the login.
type LogonFailedPayload struct {
	Message string `json:"message"`
}

// AuthFailedPayload is emitted when the login backend rejects credentials.
type AuthFailedPayload struct {
	Method string `json:"method"`
	Error  string `json:"error"`
}

// WorldLoadedPayload describes a map that was entered.
type WorldLoadedPayload struct {
	Name   string `json:"name"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// InventoryLoadedPayload summarizes a received inventory.
type InventoryLoadedPayload struct {
	Size  uint32 `json:"size"`
	Items int    `json:"items"`
}

// ServerCallPayload describes a variant call received from the server.
type ServerCallPayload struct {
	Function string `json:"function"`
	Args     string `json:"args"`
}

// BotCommandPayload targets a bot by name.
type BotCommandPayload struct {
	Name string `json:"name"`
}

// NotifyDiscordPayload is used for sending Discord notifications.
type NotifyDiscordPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"` // "info", "warning", "error"
}

// HealthAlertPayload is emitted when a health check fails.
type HealthAlertPayload struct {
	Check   string `json:"check"`
	Bot     string `json:"bot,omitempty"`
	Message string `json:"message"`
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string      `json:"section"`
	Key     string      `json:"key"`
	Value   interface{} `json:"value"`
}
