package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
)

func TestParseCommand(t *testing.T) {
	event, err := ParseCommand([]byte(`{"command":"Stop","bot":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, events.EventStopBot, event.Type)
	assert.Equal(t, events.BotCommandPayload{Name: "alice"}, event.Payload)
	assert.Equal(t, "mqtt", event.Source)

	event, err = ParseCommand([]byte(`{"command":"reconnect","bot":"bob"}`))
	require.NoError(t, err)
	assert.Equal(t, events.EventReconnectBot, event.Type)
}

func TestParseCommandErrors(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`{"command":"stop"}`,
		`{"command":"explode","bot":"alice"}`,
	} {
		_, err := ParseCommand([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestTopics(t *testing.T) {
	h := &MQTTHandler{prefix: "growbot"}
	assert.Equal(t, "growbot/bots/alice/events", h.BotTopic("alice"))
	assert.Equal(t, "growbot/manager/status", h.topic(TopicManagerStatus))

	h.prefix = ""
	assert.Equal(t, "manager/command", h.topic(TopicManagerCommand))
}

func TestNewMQTTHandlerDisabled(t *testing.T) {
	_, err := NewMQTTHandler(config.DefaultConfig(), events.NewEventBus(), nil)
	assert.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	h := &MQTTHandler{metadata: map[string]interface{}{"hostname": "box"}}
	msg := h.buildMessage(map[string]string{"k": "v"})
	assert.Equal(t, "box", msg["hostname"])
	assert.Equal(t, map[string]string{"k": "v"}, msg["payload"])
	assert.NotEmpty(t, msg["timestamp"])
}
