// Package telemetry publishes bot session events to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/util"
)

// Topic suffixes below the configured prefix
const (
	TopicManagerAdmin   = "manager/admin"
	TopicManagerStatus  = "manager/status"
	TopicManagerCommand = "manager/command"
	TopicBotEvents      = "bots/%s/events"
)

// StatusFunc returns the fleet status published on every heartbeat.
type StatusFunc func() interface{}

// Command is a control message received on the command topic.
type Command struct {
	Command string `json:"command"`
	Bot     string `json:"bot"`
}

// MQTTHandler publishes session events and accepts stop/reconnect commands.
type MQTTHandler struct {
	mu sync.Mutex

	cfg      *config.Config
	eventBus *events.EventBus
	client   mqtt.Client
	prefix   string
	status   StatusFunc

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus, status StatusFunc) (*MQTTHandler, error) {
	mqttCfg := cfg.GetApplicationData().MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	metadata := map[string]interface{}{
		"hostname":    sysInfo.Hostname,
		"platform":    sysInfo.Platform,
		"cpu_model":   sysInfo.CPUModel,
		"cpu_cores":   sysInfo.CPUCores,
		"memory_mb":   sysInfo.TotalMemory,
		"app_version": util.Version,
	}

	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		prefix:   strings.Trim(mqttCfg.TopicPrefix, "/"),
		status:   status,
		metadata: metadata,
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("growbot-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		tlsConfig, err := buildTLSConfig(mqttCfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
		// Subscriptions do not survive a reconnect with a fresh session
		handler.subscribeCommands(client)
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)

	return handler, nil
}

func buildTLSConfig(mqttCfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// mTLS: load client certificate
	if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if mqttCfg.CAFile != "" {
		pem, err := os.ReadFile(mqttCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", mqttCfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// Start connects to the broker, subscribes to the EventBus and publishes a
// heartbeat until ctx is cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	mqttCfg := h.cfg.GetApplicationData().MQTT
	log.Info().
		Str("broker", mqttCfg.BrokerURL).
		Int("port", mqttCfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	interval := time.Duration(h.cfg.GetApplicationData().Timers.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.PublishShutdown()
			h.client.Disconnect(5000)
			log.Info().Msg("MQTT disconnected")
			return nil
		case <-ticker.C:
			h.publishStatus()
		}
	}
}

// subscribeEvents registers event handlers for MQTT publishing.
func (h *MQTTHandler) subscribeEvents() {
	h.eventBus.SubscribeMany(events.SessionEvents, "mqtt.session", h.onSessionEvent)
	h.eventBus.Subscribe(events.EventHealthAlert, "mqtt.healthAlert", h.onHealthAlert)
}

func (h *MQTTHandler) subscribeCommands(client mqtt.Client) {
	topic := h.topic(TopicManagerCommand)
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		h.handleCommand(msg.Payload())
	})
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT subscribe failed")
		}
	}()
}

// handleCommand turns a command message into a control event.
func (h *MQTTHandler) handleCommand(data []byte) {
	event, err := ParseCommand(data)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring MQTT command")
		return
	}
	log.Info().Str("event", string(event.Type)).Str("bot", event.Payload.(events.BotCommandPayload).Name).Msg("MQTT command received")
	h.eventBus.Emit(context.Background(), event)
}

// ParseCommand decodes a command message into the control event it requests.
func ParseCommand(data []byte) (events.Event, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return events.Event{}, fmt.Errorf("invalid command payload: %w", err)
	}
	if cmd.Bot == "" {
		return events.Event{}, fmt.Errorf("command %q has no bot", cmd.Command)
	}

	var t events.EventType
	switch strings.ToLower(cmd.Command) {
	case "stop":
		t = events.EventStopBot
	case "reconnect":
		t = events.EventReconnectBot
	default:
		return events.Event{}, fmt.Errorf("unknown command %q", cmd.Command)
	}
	return events.New(t, "mqtt", events.BotCommandPayload{Name: cmd.Bot}), nil
}

// topic joins suffix to the configured prefix.
func (h *MQTTHandler) topic(suffix string) string {
	if h.prefix == "" {
		return suffix
	}
	return h.prefix + "/" + suffix
}

// BotTopic returns the event topic of one bot.
func (h *MQTTHandler) BotTopic(name string) string {
	return h.topic(fmt.Sprintf(TopicBotEvents, name))
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	msg := h.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return msg
}

func (h *MQTTHandler) publishStatus() {
	if h.status == nil {
		return
	}
	h.publish(h.topic(TopicManagerStatus), h.status())
}

// Event handlers

func (h *MQTTHandler) onSessionEvent(ctx context.Context, event events.Event) error {
	h.publish(h.BotTopic(event.Source), map[string]interface{}{
		"event":   event.Type,
		"time":    event.Time.UTC().Format(time.RFC3339Nano),
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onHealthAlert(ctx context.Context, event events.Event) error {
	h.publish(h.topic(TopicManagerStatus), map[string]interface{}{
		"event":   event.Type,
		"payload": event.Payload,
	})
	return nil
}

// PublishShutdown sends a shutdown message to the MQTT broker.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(h.topic(TopicManagerAdmin), map[string]interface{}{
		"event":     "shutdown",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
