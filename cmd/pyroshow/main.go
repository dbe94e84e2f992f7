// Package main is the entry point for the pyroshow application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jwulff/pyroshow-go/internal/api"
	"github.com/jwulff/pyroshow-go/internal/assembler"
	"github.com/jwulff/pyroshow-go/internal/config"
	"github.com/jwulff/pyroshow-go/internal/daemon"
	"github.com/jwulff/pyroshow-go/internal/feed"
	"github.com/jwulff/pyroshow-go/internal/health"
	"github.com/jwulff/pyroshow-go/internal/session"
	"github.com/jwulff/pyroshow-go/internal/storage/sqlite"
)

const defaultConfigPath = "pyroshow.yaml"

func main() {
	if len(os.Args) < 2 {
		showUsage()
		return
	}

	switch os.Args[1] {
	case "serve":
		serve(os.Args[2:])
	case "shows":
		listShows()
	case "stats":
		showStats(requireShowID("stats"))
	case "health":
		showHealth(requireShowID("health"))
	case "schedule":
		showSchedule(requireShowID("schedule"))
	case "load":
		loadShow(requireShowID("load"))
	case "ping":
		pingDaemon()
	default:
		showUsage()
	}
}

func showUsage() {
	fmt.Println("Pyroshow - Show timing and firing readiness")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pyroshow serve [-config path] [-debug]  - Run the API and live feed")
	fmt.Println("  pyroshow shows                          - List saved shows")
	fmt.Println("  pyroshow stats <show-id>                - Show statistics")
	fmt.Println("  pyroshow health <show-id>               - Readiness against the last snapshot")
	fmt.Println("  pyroshow schedule <show-id>             - Print the firing schedule")
	fmt.Println("  pyroshow load <show-id>                 - Ask the daemon to load a show")
	fmt.Println("  pyroshow ping                           - Check that the daemon answers")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  PYRO_CONFIG         - Configuration file (default pyroshow.yaml)")
	fmt.Println("  PYRO_DB             - SQLite database path")
	fmt.Println("  PYRO_DAEMON_HOST    - Firing daemon host")
	fmt.Println("  PYRO_DAEMON_PORT    - Firing daemon port")
}

func requireShowID(command string) int {
	if len(os.Args) < 3 {
		fmt.Println("Error: show id required")
		fmt.Printf("Usage: pyroshow %s <show-id>\n", command)
		os.Exit(1)
	}
	id, err := strconv.Atoi(os.Args[2])
	if err != nil || id <= 0 {
		fmt.Printf("Error: invalid show id %q\n", os.Args[2])
		os.Exit(1)
	}
	return id
}

// loadConfig reads path, falling back to defaults when the file does not exist.
func loadConfig(path string) *config.Config {
	if path == "" {
		path = os.Getenv("PYRO_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg, err := config.Parse(nil)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openSession opens the database and a session over it. The returned func closes both.
func openSession(ctx context.Context, cfg *config.Config) (*session.Session, func()) {
	store, err := sqlite.NewFileStore(cfg.Database)
	if err != nil {
		fmt.Printf("Error opening database %s: %v\n", cfg.Database, err)
		os.Exit(1)
	}
	s, err := session.Open(ctx, store, cfg)
	if err != nil {
		store.Close()
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return s, func() {
		s.Close()
		store.Close()
	}
}

func quietCLI() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

func listShows() {
	quietCLI()
	cfg := loadConfig("")
	s, closeAll := openSession(context.Background(), cfg)
	defer closeAll()

	shows := s.Shows()
	if len(shows) == 0 {
		fmt.Println("No shows saved.")
		return
	}
	fmt.Printf("%d show(s):\n\n", len(shows))
	for _, show := range shows {
		fmt.Printf("  %3d. %-30s %s  v%d  %d cues\n",
			show.ID, show.Name, assembler.FormatClock(show.Duration), show.Version, len(show.Items))
	}
}

func showStats(id int) {
	quietCLI()
	cfg := loadConfig("")
	s, closeAll := openSession(context.Background(), cfg)
	defer closeAll()

	show, err := s.Show(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	stats := assembler.ComputeStats(show.Items)

	fmt.Printf("%s (show %d, version %d)\n\n", show.Name, show.ID, show.Version)
	fmt.Printf("  Items:            %d\n", stats.ItemCount)
	fmt.Printf("  Zones used:       %d\n", stats.ZoneCount)
	fmt.Printf("  Targets used:     %d\n", stats.TargetCount)
	fmt.Printf("  Duration:         %s\n", stats.DurationLabel())
	fmt.Printf("  Closest fire:     %s\n", stats.ClosestFireLabel())
	fmt.Printf("  Max concurrency:  %d\n", stats.MaxConcurrency)
	fmt.Printf("  Density:          %s\n", stats.DensityLabel())
}

func showHealth(id int) {
	quietCLI()
	cfg := loadConfig("")
	s, closeAll := openSession(context.Background(), cfg)
	defer closeAll()

	h, err := s.HealthFor(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	snap, at := s.Snapshot()
	if snap == nil {
		fmt.Println("No daemon snapshot received yet; every receiver counts as offline.")
	} else {
		fmt.Printf("Last snapshot: %s (%s ago)\n", at.Format(time.RFC3339), time.Since(at).Round(time.Second))
	}
	fmt.Println()
	printHealth(h)
}

func printHealth(h health.Health) {
	fmt.Printf("  Daemon state:         %s\n", h.DaemonState.Label())
	fmt.Printf("  Receivers connected:  %s\n", metricLine(h.ReceiversConnected))
	fmt.Printf("  Cues connected:       %s\n", metricLine(h.CuesConnected))
	fmt.Printf("  Receivers loaded:     %s\n", metricLine(h.ReceiversLoaded))
	fmt.Printf("  Receivers ready:      %s\n", metricLine(h.ReceiversReady))
	for _, problem := range h.Problems() {
		fmt.Printf("  Warning: %v\n", problem)
	}
	fmt.Println()
	if h.Ready() {
		fmt.Println("READY to start.")
	} else {
		fmt.Println("NOT ready to start.")
	}
}

func metricLine(m health.Metric) string {
	if pct, ok := m.Percent(); ok {
		return fmt.Sprintf("%s (%.0f%%)", m, pct)
	}
	return m.String()
}

func showSchedule(id int) {
	quietCLI()
	cfg := loadConfig("")
	s, closeAll := openSession(context.Background(), cfg)
	defer closeAll()

	show, err := s.Show(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	events, err := assembler.BuildSchedule(show.Items)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d event(s)\n\n", show.Name, len(events))
	fmt.Println("  TRIGGER    EFFECT     END        ADDRESS  CUE")
	for _, e := range events {
		fmt.Printf("  %9.3f  %9.3f  %9.3f  %-7s  %d\n",
			e.TriggerTime, e.EffectTime, e.EndTime, fmt.Sprintf("%s:%d", e.Zone, e.Target), e.CueID)
	}
}

func loadShow(id int) {
	quietCLI()
	cfg := loadConfig("")
	s, closeAll := openSession(context.Background(), cfg)
	defer closeAll()

	cmd, warning, err := s.LoadCommand(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if warning != "" {
		fmt.Printf("Warning: %s\n", warning)
	}

	client := daemon.NewClientWithPort(cfg.Daemon.Host, cfg.Daemon.Port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Send(ctx, cmd); err != nil {
		fmt.Printf("\nError sending command: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Load requested. Watch the daemon state for confirmation.")
}

func pingDaemon() {
	cfg := loadConfig("")
	client := daemon.NewClientWithPort(cfg.Daemon.Host, cfg.Daemon.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !client.IsReachable(ctx) {
		fmt.Printf("Error: Cannot reach daemon at %s:%d\n", cfg.Daemon.Host, cfg.Daemon.Port)
		os.Exit(1)
	}
	fmt.Printf("Daemon at %s:%d is reachable.\n", cfg.Daemon.Host, cfg.Daemon.Port)
}

func newSource(cfg *config.Config, logger *slog.Logger) feed.Source {
	if cfg.Feed.Kind == config.FeedMQTT {
		source := feed.NewMQTTSource(cfg.Feed.Broker, cfg.Feed.Topic, cfg.Feed.ClientID)
		source.Logger = logger
		return source
	}
	source := feed.NewWebSocketSource(cfg.Feed.URL)
	source.Logger = logger
	return source
}

func serve(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "Path to configuration file")
	debug := flags.Bool("debug", false, "Enable debug logging")
	_ = flags.Parse(args)

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg := loadConfig(*configPath)
	slog.Info("starting pyroshow",
		"database", cfg.Database,
		"active_protocol", cfg.ActiveProtocol,
		"feed", cfg.Feed.Kind,
		"api", cfg.API.Addr)
	if proto, ok := cfg.Protocol(cfg.ActiveProtocol); ok {
		for _, o := range proto.Topology().Overlaps() {
			slog.Warn("address declared by more than one receiver",
				"address", o.Address.Key(),
				"receivers", o.Receivers)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, closeAll := openSession(ctx, cfg)
	defer closeAll()

	client := daemon.NewClientWithPort(cfg.Daemon.Host, cfg.Daemon.Port)
	server := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.NewServer(s, client, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", "error", err)
			cancel()
		}
	}()

	var lastReady *bool
	monitor := &feed.Monitor{
		Source: newSource(cfg, logger),
		Target: s,
		Logger: logger,
		OnHealth: func(h health.Health) {
			ready := h.Ready()
			if lastReady == nil || *lastReady != ready {
				slog.Info("readiness changed",
					"show_id", h.ShowID,
					"ready", ready,
					"receivers_connected", h.ReceiversConnected.String(),
					"cues_connected", h.CuesConnected.String(),
					"receivers_loaded", h.ReceiversLoaded.String(),
					"receivers_ready", h.ReceiversReady.String())
				lastReady = &ready
			}
		},
		// Stale receivers are noticed even when the feed goes quiet.
		EvaluateEvery: time.Second,
	}
	if err := monitor.Run(ctx); err != nil {
		slog.Error("live feed stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown failed", "error", err)
	}
	applied, rejected := monitor.Stats()
	slog.Info("pyroshow stopped", "snapshots_applied", applied, "snapshots_rejected", rejected)
}
