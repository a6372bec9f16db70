// growbot runs a fleet of game protocol bots.
//
// Each account in the roster gets its own ENet session that logs in, follows
// server redirects and answers pings. The fleet is watched by health checks,
// journaled to SQLite and exposed through a REST API, MQTT telemetry, Discord
// notifications and an interactive console.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/api"
	"github.com/growbot-project/growbot/internal/bot"
	"github.com/growbot-project/growbot/internal/cli"
	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/connector"
	"github.com/growbot-project/growbot/internal/db"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/health"
	"github.com/growbot-project/growbot/internal/login"
	"github.com/growbot-project/growbot/internal/scheduler"
	"github.com/growbot-project/growbot/internal/telemetry"
	"github.com/growbot-project/growbot/internal/transport"
	"github.com/growbot-project/growbot/internal/util"
)

const Banner = `
   __ _ _ __ _____      _| |__   ___ | |_
  / _' | '__/ _ \ \ /\ / / '_ \ / _ \| __|
 | (_| | | | (_) \ V  V /| |_) | (_) | |_
  \__, |_|  \___/ \_/\_/ |_.__/ \___/ \__|
  |___/  v%s
`

// dryRunDialer gives every bot run its own in-memory host.
type dryRunDialer struct{}

func (dryRunDialer) NewHost() (transport.Host, error) {
	return transport.NewMemoryHost(), nil
}

func main() {
	configDir := flag.String("config", config.DefaultConfigDir, "configuration directory")
	noConsole := flag.Bool("no-console", false, "disable the interactive console")
	dryRun := flag.Bool("dry-run", false, "use an in-memory transport instead of ENet")
	flag.Parse()

	fmt.Printf(Banner, util.Version)
	fmt.Println()

	// Defaults first, reconfigured after the config is loaded
	if _, err := util.InitLogger(util.LogConfigFrom(config.DefaultConfig().ApplicationData.Logging, true)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", util.Version).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting growbot")

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *dryRun {
		botData := cfg.GetBotData()
		botData.DryRun = true
		cfg.SetBotData(botData)
	}

	if _, err := util.InitLogger(util.LogConfigFrom(cfg.GetApplicationData().Logging, !*noConsole)); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	if cfg.IsFirstRun() {
		log.Info().Msg("no account roster found, launching setup wizard")
		if err := config.RunSetupWizard(cfg); err != nil {
			log.Fatal().Err(err).Msg("setup wizard failed")
		}
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	roster, err := config.LoadRoster(cfg.AccountsPath())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load account roster")
	}
	auth := login.NewRouter()
	if err := roster.CheckMethods(auth.Supports); err != nil {
		log.Fatal().Err(err).Msg("account roster is invalid")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	var dialer transport.Dialer = transport.NewENetDialer()
	if cfg.GetBotData().DryRun {
		log.Warn().Msg("dry run: bots use an in-memory transport and never reach the server")
		dialer = dryRunDialer{}
	}

	mgr, err := bot.NewManager(cfg, eventBus, roster, auth, dialer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot manager")
	}
	log.Info().Int("bots", mgr.Count()).Msg("bot manager ready")

	// Journal, optional
	var journal *db.Journal
	appData := cfg.GetApplicationData()
	if appData.Journal.Enabled {
		path := appData.Journal.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Dir(), path)
		}
		journal, err = db.NewJournal(path)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open journal, journaling disabled")
		} else {
			journal.Subscribe(eventBus)
			defer journal.Close()
		}
	}

	connector.NewDiscordConnector(cfg, eventBus)
	healthMgr := health.NewManager(cfg, eventBus, mgr)

	var mqttHandler *telemetry.MQTTHandler
	if appData.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus, func() interface{} {
			return mgr.GetAllInfo()
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var (
		apiServer  *api.Server
		cliHandler *cli.CLI
		sched      *scheduler.Scheduler
	)
	if journal != nil {
		apiServer = api.NewServer(cfg, eventBus, mgr, journal)
		cliHandler = cli.NewCLI(cfg, eventBus, mgr, journal, os.Stdin, os.Stdout)
		sched = scheduler.NewScheduler(cfg, eventBus, journal, mgr)
	} else {
		apiServer = api.NewServer(cfg, eventBus, mgr, nil)
		cliHandler = cli.NewCLI(cfg, eventBus, mgr, nil, os.Stdin, os.Stdout)
		sched = scheduler.NewScheduler(cfg, eventBus, nil, mgr)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	fleetDone := make(chan struct{})

	// Bots
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fleetDone)
		if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("bot fleet: %w", err)
		}
	}()

	if appData.API.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", appData.API.Port).Msg("starting REST API server")
			if err := startWithRetry(ctx, "API server", apiServer.Start, 5); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		healthMgr.Start(ctx)
	}()

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	consoleDone := make(chan struct{})
	if !*noConsole {
		go func() {
			defer close(consoleDone)
			cliHandler.Start(ctx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	case <-consoleDone:
		log.Info().Msg("console closed")
	case <-fleetDone:
		log.Info().Msg("every bot has stopped")
	}

	log.Info().Msg("initiating graceful shutdown...")
	eventBus.Emit(ctx, events.New(events.EventShutdown, "main", nil))
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()
	log.Info().Msg("growbot stopped")
}

// startWithRetry starts a listener, retrying bind failures every 3 seconds.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
