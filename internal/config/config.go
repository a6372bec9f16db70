// Package config handles configuration loading, validation, and persistence
// for growbot.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir    = "config"
	DefaultConfigFile   = "config.json"
	DefaultAccountsFile = "accounts.yaml"
	DefaultAPIPort      = 5080
	DefaultServerHost   = "213.179.209.168"
	DefaultServerPort   = 17198
)

// Config is the root configuration structure for growbot.
type Config struct {
	mu   sync.RWMutex
	path string

	BotData         BotData         `json:"bot_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// BotData contains game connection settings shared by every bot.
type BotData struct {
	// Main login server; redirects override it per session
	ServerHost string `json:"server_host"`
	ServerPort int    `json:"server_port"`

	AccountsFile string `json:"accounts_file"`

	ReconnectDelaySec  int `json:"reconnect_delay_sec"`
	ServiceTimeoutMS   int `json:"service_timeout_ms"`
	MaxConcurrentStart int `json:"max_concurrent_start"`
	StartStaggerMS     int `json:"start_stagger_ms"`

	// Overrides for the login line; empty keeps the built-in value
	GameVersion string `json:"game_version"`
	Country     string `json:"country"`

	// DryRun replaces the network transport with an in-memory one
	DryRun bool `json:"dry_run"`
}

// ReconnectDelay returns the reconnect delay as a duration.
func (b BotData) ReconnectDelay() time.Duration {
	return time.Duration(b.ReconnectDelaySec) * time.Second
}

// ServiceTimeout returns the transport poll timeout as a duration.
func (b BotData) ServiceTimeout() time.Duration {
	return time.Duration(b.ServiceTimeoutMS) * time.Millisecond
}

// ApplicationData contains application configuration.
type ApplicationData struct {
	API      APIConfig      `json:"api"`
	Timers   TimerConfig    `json:"timers"`
	Journal  JournalConfig  `json:"journal"`
	Discord  DiscordConfig  `json:"discord"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

// APIConfig holds the monitoring API settings.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	APIKey  string `json:"api_key"`
}

// TimerConfig holds health check and task interval settings.
type TimerConfig struct {
	GeneralHealthInterval int `json:"general_health_interval_sec"`
	StallTimeout          int `json:"stall_timeout_sec"`
	StatsPollingInterval  int `json:"stats_polling_interval_sec"`
	HeartbeatInterval     int `json:"heartbeat_interval_sec"`
}

// JournalConfig holds the session journal settings.
type JournalConfig struct {
	Enabled       bool   `json:"enabled"`
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days"`
	CleanupTime   string `json:"cleanup_time"`
}

// DiscordConfig holds Discord integration settings.
type DiscordConfig struct {
	OwnerID             string `json:"owner_id"`
	WebhookURL          string `json:"webhook_url"`
	NotifyOnBan         bool   `json:"notify_on_ban"`
	NotifyOnLogonFail   bool   `json:"notify_on_logon_fail"`
	NotifyOnHealthAlert bool   `json:"notify_on_health_alert"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	IPWhitelist    []string `json:"ip_whitelist"`
	AuthDisabled   bool     `json:"auth_disabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BotData: BotData{
			ServerHost:         DefaultServerHost,
			ServerPort:         DefaultServerPort,
			AccountsFile:       DefaultAccountsFile,
			ReconnectDelaySec:  5,
			ServiceTimeoutMS:   100,
			MaxConcurrentStart: 3,
			StartStaggerMS:     500,
		},
		ApplicationData: ApplicationData{
			API: APIConfig{
				Enabled: true,
				Port:    DefaultAPIPort,
			},
			Timers: TimerConfig{
				GeneralHealthInterval: 60,
				StallTimeout:          300,
				StatsPollingInterval:  10,
				HeartbeatInterval:     60,
			},
			Journal: JournalConfig{
				Enabled:       true,
				Path:          "growbot.db",
				RetentionDays: 14,
				CleanupTime:   "04:00",
			},
			Discord: DiscordConfig{
				NotifyOnBan:         true,
				NotifyOnLogonFail:   true,
				NotifyOnHealthAlert: true,
			},
			MQTT: MQTTConfig{
				Enabled:     false,
				Port:        8883,
				UseTLS:      true,
				TopicPrefix: "growbot",
			},
			Security: SecurityConfig{
				RateLimitRPS: 100,
				AuthDisabled: true,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save so config.json lists options added since it was written.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetBotData returns a copy of the bot configuration.
func (c *Config) GetBotData() BotData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BotData
}

// SetBotData updates the bot configuration.
func (c *Config) SetBotData(data BotData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BotData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// UpdateBotField updates a single bot_data field by its JSON key.
func (c *Config) UpdateBotField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.BotData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	if _, ok := m[key]; !ok {
		return fmt.Errorf("unknown bot_data field %s", key)
	}
	m[key] = value

	updated, _ := json.Marshal(m)
	var next BotData
	if err := json.Unmarshal(updated, &next); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}
	c.BotData = next

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory holding the config file.
func (c *Config) Dir() string {
	return filepath.Dir(c.path)
}

// AccountsPath resolves the accounts file relative to the config directory.
func (c *Config) AccountsPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if filepath.IsAbs(c.BotData.AccountsFile) {
		return c.BotData.AccountsFile
	}
	return filepath.Join(filepath.Dir(c.path), c.BotData.AccountsFile)
}

// IsFirstRun returns true if no account roster exists yet.
func (c *Config) IsFirstRun() bool {
	_, err := os.Stat(c.AccountsPath())
	return os.IsNotExist(err)
}
