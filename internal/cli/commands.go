// Package cli implements the interactive operator console: fleet status,
// per-bot control and journal queries.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/bot"
	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/db"
	"github.com/growbot-project/growbot/internal/events"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

// Fleet is the view of the bot manager the console needs.
type Fleet interface {
	GetAllInfo() []bot.Info
}

// Journal serves the journal and alerts commands.
type Journal interface {
	Recent(bot string, limit int) ([]db.Entry, error)
	OpenAlerts() ([]db.Alert, error)
}

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	fleet    Fleet
	journal  Journal

	in  io.Reader
	out io.Writer
}

// NewCLI creates a new CLI handler. journal may be nil when the journal is
// disabled.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, fleet Fleet, journal Journal, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		fleet:    fleet,
		journal:  journal,
		in:       in,
		out:      out,
	}
}

// Start reads commands until ctx is done, input ends or quit is entered.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\ngrowbot console ready. Type 'help' for available commands.")
	fmt.Fprintln(c.out, strings.Repeat("─", 53))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "growbot> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			parts := strings.Fields(line)
			if len(parts) == 0 {
				continue
			}

			err := c.Execute(ctx, strings.ToLower(parts[0]), parts[1:])
			if errors.Is(err, ErrQuit) {
				return
			}
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// Execute runs a single command.
func (c *CLI) Execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		return c.printStatus(args)
	case "stop":
		return c.sendBotCommand(ctx, events.EventStopBot, "Stop", args)
	case "reconnect":
		return c.sendBotCommand(ctx, events.EventReconnectBot, "Reconnect", args)
	case "journal", "j":
		return c.printJournal(args)
	case "alerts":
		return c.printAlerts()
	case "setconfig":
		return c.cmdSetConfig(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down growbot...")
		c.eventBus.Emit(ctx, events.New(events.EventShutdown, "cli", nil))
		return ErrQuit
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Command", "Description"})
	tw.SetAutoWrapText(false)
	tw.AppendBulk([][]string{
		{"status [bot]", "Show all bots or one bot in detail"},
		{"stop <bot>", "Stop a bot"},
		{"reconnect <bot>", "Drop a bot's connection and log in again"},
		{"journal [n] [bot]", "Show the last n journal entries"},
		{"alerts", "Show unacknowledged health alerts"},
		{"setconfig <k> <v>", "Update a bot_data setting"},
		{"quit", "Stop every bot and exit"},
		{"help", "Show this help message"},
	})
	tw.Render()
}

// printStatus displays bot status in a table.
func (c *CLI) printStatus(args []string) error {
	infos := c.fleet.GetAllInfo()

	if len(args) > 0 {
		for _, info := range infos {
			if strings.EqualFold(info.Name, args[0]) {
				c.printBotDetail(info)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", bot.ErrUnknownBot, args[0])
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Bot", "State", "Server", "World", "Connects", "Uptime", "Error"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, info := range infos {
		s := info.Session
		state := s.State.String()
		uptime := info.Uptime
		switch {
		case s.IsBanned:
			state = "BANNED"
		case !info.Running:
			state = "STOPPED"
			uptime = "-"
		}

		server := "-"
		if s.Server.IP != "" {
			server = s.Server.IP + ":" + s.Server.Port
		}
		worldName := "-"
		if info.World != nil {
			worldName = info.World.Name
		}

		tw.Append([]string{
			info.Name,
			state,
			server,
			worldName,
			strconv.Itoa(s.Connects),
			uptime,
			info.LastError,
		})
	}

	tw.Render()
	return nil
}

func (c *CLI) printBotDetail(info bot.Info) {
	s := info.Session
	fmt.Fprintf(c.out, "\n  Bot:          %s\n", info.Name)
	fmt.Fprintf(c.out, "  Login:        %s\n", info.Method)
	fmt.Fprintf(c.out, "  Running:      %v\n", info.Running)
	fmt.Fprintf(c.out, "  State:        %s\n", s.State)
	fmt.Fprintf(c.out, "  Username:     %s\n", s.Username)
	fmt.Fprintf(c.out, "  Server:       %s:%s\n", s.Server.IP, s.Server.Port)
	fmt.Fprintf(c.out, "  Redirecting:  %v\n", s.IsRedirect)
	fmt.Fprintf(c.out, "  Banned:       %v\n", s.IsBanned)
	fmt.Fprintf(c.out, "  Connects:     %d\n", s.Connects)
	fmt.Fprintf(c.out, "  Uptime:       %s\n", info.Uptime)
	if !s.LastActivity.IsZero() {
		fmt.Fprintf(c.out, "  Last packet:  %s\n", s.LastActivity.Format(time.RFC3339))
	}
	if info.World != nil {
		fmt.Fprintf(c.out, "  World:        %s (%dx%d)\n", info.World.Name, info.World.Width, info.World.Height)
	}
	fmt.Fprintf(c.out, "  Inventory:    %d items\n", info.Inventory)
	if info.LastError != "" {
		fmt.Fprintf(c.out, "  Last error:   %s\n", info.LastError)
	}
	fmt.Fprintln(c.out)
}

// sendBotCommand emits a control event and waits for the manager to act.
func (c *CLI) sendBotCommand(ctx context.Context, t events.EventType, verb string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("bot name required")
	}
	name := args[0]
	if err := c.eventBus.EmitSync(ctx, events.New(t, "cli", events.BotCommandPayload{Name: name})); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s command sent to %s\n", verb, name)
	return nil
}

func (c *CLI) printJournal(args []string) error {
	if c.journal == nil {
		return fmt.Errorf("journal is disabled")
	}

	limit := 20
	botName := ""
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil && n > 0 {
			limit = n
		} else {
			botName = arg
		}
	}

	entries, err := c.journal.Recent(botName, limit)
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Time", "Bot", "Event", "Details"})
	tw.SetAutoWrapText(false)
	for _, e := range entries {
		tw.Append([]string{
			e.Time.Local().Format("2006-01-02 15:04:05"),
			e.Bot,
			e.Type,
			string(e.Payload),
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) printAlerts() error {
	if c.journal == nil {
		return fmt.Errorf("journal is disabled")
	}

	alerts, err := c.journal.OpenAlerts()
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(c.out, "No open alerts")
		return nil
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"ID", "Time", "Check", "Bot", "Message"})
	tw.SetAutoWrapText(false)
	for _, a := range alerts {
		tw.Append([]string{
			strconv.FormatInt(a.ID, 10),
			a.Time.Local().Format("2006-01-02 15:04:05"),
			a.Kind,
			a.Bot,
			a.Message,
		})
	}
	tw.Render()
	return nil
}

// cmdSetConfig updates one bot_data field and saves the config. Running bots
// pick the value up on their next start.
func (c *CLI) cmdSetConfig(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setconfig <key> <value>")
	}

	key := args[0]
	raw := strings.Join(args[1:], " ")

	if err := c.cfg.UpdateBotField(key, parseValue(raw)); err != nil {
		return err
	}
	if err := c.cfg.Save(); err != nil {
		return err
	}

	log.Info().Str("key", key).Str("value", raw).Msg("config updated from console")
	c.eventBus.Emit(context.Background(), events.New(events.EventConfigChanged, "cli",
		events.ConfigChangedPayload{Section: "bot_data", Key: key, Value: raw}))
	fmt.Fprintf(c.out, "Config updated: %s = %s\n", key, raw)
	return nil
}

// parseValue turns console input into the JSON type it most likely denotes.
func parseValue(raw string) interface{} {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
