package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/login"
)

// RunSetupWizard guides the user through first-time configuration and
// writes a roster with one account.
func RunSetupWizard(cfg *Config) error {
	return runSetupWizard(cfg, bufio.NewReader(os.Stdin), os.Stdout)
}

func runSetupWizard(cfg *Config, reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║          Growbot - First Run Setup           ║")
	fmt.Fprintln(out, "╠══════════════════════════════════════════════╣")
	fmt.Fprintln(out, "║  Welcome! Let's configure your first bot.    ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	bot := cfg.GetBotData()
	app := cfg.GetApplicationData()

	fmt.Fprintln(out, "── Game Server ──")
	bot.ServerHost = promptString(reader, out, "Login server host", bot.ServerHost)
	bot.ServerPort = promptInt(reader, out, "Login server port", bot.ServerPort)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Account ──")
	account := Account{
		Name:   promptString(reader, out, "Bot name", "bot1"),
		Method: promptString(reader, out, "Login method", "token"),
	}
	if strings.EqualFold(account.Method, "token") {
		account.Token = promptString(reader, out, "Session token", "")
	} else {
		account.Username = promptString(reader, out, "Username", "")
		account.Password = promptString(reader, out, "Password", "")
	}
	account.Country = promptString(reader, out, "Country code", "us")

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Monitoring ──")
	app.API.Enabled = promptBool(reader, out, "Enable REST API", app.API.Enabled)
	if app.API.Enabled {
		app.API.Port = promptInt(reader, out, "REST API port", app.API.Port)
	}
	app.Discord.WebhookURL = promptString(reader, out, "Discord webhook URL (blank to skip)", app.Discord.WebhookURL)
	app.MQTT.Enabled = promptBool(reader, out, "Enable MQTT telemetry", app.MQTT.Enabled)
	if app.MQTT.Enabled {
		app.MQTT.BrokerURL = promptString(reader, out, "MQTT broker host", app.MQTT.BrokerURL)
	}

	cfg.SetBotData(bot)
	cfg.SetApplicationData(app)

	roster := &Roster{Accounts: []Account{account}}
	if err := roster.Validate(); err != nil {
		return fmt.Errorf("account is invalid: %w", err)
	}
	if err := roster.CheckMethods(login.NewRouter().Supports); err != nil {
		return fmt.Errorf("account is invalid: %w", err)
	}

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(out, "\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := roster.Save(cfg.AccountsPath()); err != nil {
		return fmt.Errorf("failed to save accounts: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration saved successfully!")
	fmt.Fprintf(out, "  Add more bots to %s.\n", cfg.AccountsPath())
	fmt.Fprintln(out)

	return nil
}

func promptString(reader *bufio.Reader, out io.Writer, prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(out, "  %s: ", prompt)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptInt(reader *bufio.Reader, out io.Writer, prompt string, defaultVal int) int {
	fmt.Fprintf(out, "  %s [%d]: ", prompt, defaultVal)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(out, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func promptBool(reader *bufio.Reader, out io.Writer, prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Fprintf(out, "  %s [%s]: ", prompt, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
