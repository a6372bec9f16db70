package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError is one problem found in the config, keyed by its JSON path.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationResult collects errors, which block startup, and warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks both config sections against each other and their ranges.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	bot := cfg.GetBotData()
	app := cfg.GetApplicationData()
	validateBotData(&bot, result)
	validateApplicationData(&app, result)

	return result
}

func validateBotData(data *BotData, result *ValidationResult) {
	if strings.TrimSpace(data.ServerHost) == "" {
		result.AddError("bot_data.server_host", "server host is required")
	} else if net.ParseIP(data.ServerHost) == nil && strings.ContainsAny(data.ServerHost, " /:") {
		result.AddError("bot_data.server_host", fmt.Sprintf("invalid host: %s", data.ServerHost))
	}
	validatePort(data.ServerPort, "bot_data.server_port", result)

	if strings.TrimSpace(data.AccountsFile) == "" {
		result.AddError("bot_data.accounts_file", "accounts file is required")
	}

	if data.ReconnectDelaySec < 1 {
		result.AddWarning("bot_data.reconnect_delay_sec",
			"reconnect delay under 1s may get accounts rate limited")
	}
	if data.ServiceTimeoutMS < 1 || data.ServiceTimeoutMS > 5000 {
		result.AddError("bot_data.service_timeout_ms", "service timeout must be 1-5000 ms")
	}
	if data.MaxConcurrentStart < 1 {
		result.AddError("bot_data.max_concurrent_start", "must allow at least 1 concurrent start")
	}
	if data.StartStaggerMS < 0 {
		result.AddError("bot_data.start_stagger_ms", "start stagger cannot be negative")
	}
	if data.DryRun {
		result.AddWarning("bot_data.dry_run", "dry run enabled, bots will not reach the network")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	validateTimers(&data.Timers, result)

	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
	}

	if data.Journal.Enabled {
		if strings.TrimSpace(data.Journal.Path) == "" {
			result.AddError("application_data.journal.path", "journal path is required when enabled")
		}
		if data.Journal.RetentionDays < 1 {
			result.AddError("application_data.journal.retention_days",
				"retention days must be at least 1")
		}
		if _, err := time.Parse("15:04", data.Journal.CleanupTime); err != nil {
			result.AddError("application_data.journal.cleanup_time",
				fmt.Sprintf("invalid time %q, expected HH:MM", data.Journal.CleanupTime))
		}
	}

	if data.MQTT.Enabled {
		requireField(data.MQTT.BrokerURL, "application_data.mqtt.broker_url", "mqtt", result)
		validatePort(data.MQTT.Port, "application_data.mqtt.port", result)
	}

	if data.Security.TLSEnabled {
		requireField(data.Security.TLSCertFile, "application_data.security.tls_cert_file", "tls", result)
		requireField(data.Security.TLSKeyFile, "application_data.security.tls_key_file", "tls", result)
	}
	if data.API.Enabled && data.Security.RateLimitRPS < 1 {
		result.AddWarning("application_data.security.rate_limit_rps", "API rate limiting is off")
	}

	if !data.Security.AuthDisabled && strings.TrimSpace(data.API.APIKey) == "" {
		result.AddError("application_data.api.api_key", "API key is required when auth is enabled")
	}

	if n := len(data.Discord.OwnerID); n > 0 && (n < 17 || n > 20) {
		result.AddWarning("application_data.discord.owner_id", "owner id is not a 17-20 digit snowflake")
	}
	if data.Discord.WebhookURL != "" && !strings.HasPrefix(data.Discord.WebhookURL, "https://") {
		result.AddError("application_data.discord.webhook_url", "webhook URL must use https")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.GeneralHealthInterval < 5 {
		result.AddWarning("timers.general_health_interval",
			"health interval less than 5s may cause excessive load")
	}
	if timers.StallTimeout > 0 && timers.StallTimeout < 30 {
		result.AddWarning("timers.stall_timeout",
			"stall timeout under 30s will reconnect idle but healthy bots")
	}
	if timers.HeartbeatInterval < 10 {
		result.AddWarning("timers.heartbeat_interval", "MQTT heartbeat under 10s")
	}
}

func requireField(value, field, feature string, result *ValidationResult) {
	if strings.TrimSpace(value) == "" {
		result.AddError(field, fmt.Sprintf("required when %s is enabled", feature))
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("port %d out of range 1-65535", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field, fmt.Sprintf("port %d is privileged", port))
	}
}
