package config

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growbot-project/growbot/internal/login"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, DefaultConfigFile))
	assert.Equal(t, DefaultServerPort, cfg.GetBotData().ServerPort)
	assert.True(t, cfg.IsFirstRun())
	assert.Equal(t, filepath.Join(dir, DefaultAccountsFile), cfg.AccountsPath())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"bot_data":{"server_port":17091}}`), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	bot := cfg.GetBotData()
	assert.Equal(t, 17091, bot.ServerPort)
	assert.Equal(t, DefaultServerHost, bot.ServerHost)
	assert.Equal(t, 5, bot.ReconnectDelaySec)

	// re-saved with the full set of keys
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reconnect_delay_sec"`)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{"), 0644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestUpdateBotField(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.UpdateBotField("server_port", 17091))
	assert.Equal(t, 17091, cfg.GetBotData().ServerPort)

	assert.Error(t, cfg.UpdateBotField("no_such_field", 1))
	assert.Error(t, cfg.UpdateBotField("server_port", "not a number"))
	assert.Equal(t, 17091, cfg.GetBotData().ServerPort)
}

func TestValidateDefaults(t *testing.T) {
	result := Validate(DefaultConfig())
	assert.True(t, result.IsValid(), "%v", result.Errors)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing host", func(c *Config) { c.BotData.ServerHost = "" }, "bot_data.server_host"},
		{"bad port", func(c *Config) { c.BotData.ServerPort = 70000 }, "bot_data.server_port"},
		{"service timeout", func(c *Config) { c.BotData.ServiceTimeoutMS = 0 }, "bot_data.service_timeout_ms"},
		{"no concurrency", func(c *Config) { c.BotData.MaxConcurrentStart = 0 }, "bot_data.max_concurrent_start"},
		{"cleanup time", func(c *Config) { c.ApplicationData.Journal.CleanupTime = "4am" }, "application_data.journal.cleanup_time"},
		{"mqtt broker", func(c *Config) { c.ApplicationData.MQTT.Enabled = true }, "application_data.mqtt.broker_url"},
		{"api key", func(c *Config) { c.ApplicationData.Security.AuthDisabled = false }, "application_data.api.api_key"},
		{"webhook scheme", func(c *Config) { c.ApplicationData.Discord.WebhookURL = "http://x" }, "application_data.discord.webhook_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			result := Validate(cfg)
			require.False(t, result.IsValid())

			var fields []string
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	disabled := false
	roster := &Roster{Accounts: []Account{
		{Name: "alice", Method: "token", Token: "abc", Country: "us"},
		{Name: "bob", Method: "legacy", Username: "bob", Password: "pw", Enabled: &disabled},
	}}
	require.NoError(t, roster.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, loaded.Enabled(), 1)

	creds, err := loaded.Enabled()[0].Credentials()
	require.NoError(t, err)
	assert.Equal(t, login.Credentials{Method: login.MethodToken, Token: "abc"}, creds)
}

func TestRosterValidate(t *testing.T) {
	tests := []struct {
		name     string
		accounts []Account
	}{
		{"bad name", []Account{{Name: "has space", Method: "token", Token: "t"}}},
		{"duplicate", []Account{{Name: "a", Method: "token", Token: "t"}, {Name: "A", Method: "token", Token: "t"}}},
		{"unknown method", []Account{{Name: "a", Method: "steam"}}},
		{"missing token", []Account{{Name: "a", Method: "token"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, (&Roster{Accounts: tt.accounts}).Validate())
		})
	}
}

func TestRosterCheckMethods(t *testing.T) {
	disabled := false
	roster := &Roster{Accounts: []Account{
		{Name: "alice", Method: "token", Token: "abc"},
		{Name: "bob", Method: "legacy", Username: "bob", Password: "pw", Enabled: &disabled},
	}}
	router := login.NewRouter()
	require.NoError(t, roster.CheckMethods(router.Supports))

	roster.Accounts = append(roster.Accounts, Account{Name: "carol", Method: "Google", Username: "carol@example.com"})
	require.NoError(t, roster.Validate())
	err := roster.CheckMethods(router.Supports)
	assert.ErrorIs(t, err, login.ErrUnsupportedMethod)
	assert.Contains(t, err.Error(), "carol")

	router.Register(login.MethodGoogle, login.StaticAuthenticator{})
	assert.NoError(t, roster.CheckMethods(router.Supports))
}

func TestLoadRosterYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	yamlDoc := `
accounts:
  - name: farmer
    method: token
    token: xyz
  - name: trader
    method: google
    username: trader@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0600))

	roster, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, roster.Accounts, 2)
	assert.Equal(t, "trader@example.com", roster.Accounts[1].Username)
	assert.True(t, roster.Accounts[1].IsEnabled())
}

func TestSetupWizard(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	input := strings.Join([]string{
		"",      // host
		"17091", // port
		"alice", // name
		"",      // method
		"tok",   // token
		"",      // country
		"",      // api enabled
		"",      // api port
		"",      // webhook
		"",      // mqtt
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runSetupWizard(cfg, bufio.NewReader(strings.NewReader(input)), &out))
	assert.Contains(t, out.String(), "Configuration saved")
	assert.False(t, cfg.IsFirstRun())
	assert.Equal(t, 17091, cfg.GetBotData().ServerPort)

	roster, err := LoadRoster(cfg.AccountsPath())
	require.NoError(t, err)
	require.Len(t, roster.Accounts, 1)
	assert.Equal(t, "alice", roster.Accounts[0].Name)
	assert.Equal(t, "tok", roster.Accounts[0].Token)
}

func TestSetupWizardRejectsUnservedMethod(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	input := strings.Join([]string{
		"", "17091", "alice",
		"apple", "alice@example.com", "pw",
		"", "", "", "", "",
	}, "\n") + "\n"

	err = runSetupWizard(cfg, bufio.NewReader(strings.NewReader(input)), &bytes.Buffer{})
	require.ErrorIs(t, err, login.ErrUnsupportedMethod)
	assert.NoFileExists(t, cfg.AccountsPath())
}
