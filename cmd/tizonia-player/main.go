// Package main implements the tizonia-player daemon, the playback-graph
// engine's process entry point.
//
// tizonia-player loads a playlist configuration, builds one graph per
// playlist (spec section 2), and runs each graph under the supervisor
// for the life of the process, restarting a crashed graph's goroutine
// the same way lyrebird-stream restarts a crashed FFmpeg stream.
//
// Usage:
//
//	tizonia-player [options]
//
// Options:
//
//	--config=PATH     Path to config file (default: /etc/tizonia/config.yaml)
//	--lock-dir=PATH   Directory for lock files (default: /var/run/tizonia)
//	--log-level=LEVEL Log level: debug, info, warn, error (default: info)
//	--help            Show this help message
//
// The daemon automatically:
//   - Loads every configured playlist as a graph
//   - Probes the first URI of each playlist to pick a variant's plan
//   - Restarts a graph whose worker goroutine exits unexpectedly
//   - Serves /healthz, /metrics, /metrics/prometheus and /events
//   - Handles SIGINT/SIGTERM for graceful shutdown; SIGHUP is only logged
//     (configuration changes take effect on restart)
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tizonia-project/tizonia-go/internal/component"
	"github.com/tizonia-project/tizonia-go/internal/config"
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/factory"
	"github.com/tizonia-project/tizonia-go/internal/graph"
	"github.com/tizonia-project/tizonia-go/internal/graphfsm"
	"github.com/tizonia-project/tizonia-go/internal/health"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/lock"
	"github.com/tizonia-project/tizonia-go/internal/probe"
	"github.com/tizonia-project/tizonia-go/internal/supervisor"
)

// Build information (set by ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Command line flags
var (
	configPath = flag.String("config", config.ConfigFilePath, "Path to configuration file")
	lockDir    = flag.String("lock-dir", "/var/run/tizonia", "Directory for lock files")
	logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showHelp   = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	logger.Printf("tizonia-player %s (%s) built %s", Version, Commit, BuildTime)

	if err := os.MkdirAll(*lockDir, 0750); err != nil { //nolint:gosec // Lock directory needs group read for service monitoring
		logger.Fatalf("Failed to create lock directory: %v", err)
	}

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Printf("Loaded configuration from %s", *configPath)

	slogLevel := slog.LevelInfo
	switch *logLevel {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel}))

	var logWriter io.Writer
	if *logLevel == "debug" {
		logWriter = os.Stderr
	}
	sup := supervisor.New(supervisor.Config{
		ShutdownTimeout: cfg.Graph.ShutdownTimeout,
		Logger:          logWriter,
	})

	broadcaster := health.NewBroadcaster()
	statuses := &statusTracker{}

	if len(cfg.Playlists) == 0 {
		logger.Println("No playlists configured, nothing to play")
	}

	for name, pCfg := range cfg.Playlists {
		pCfg = cfg.GetPlaylistConfig(name)
		if len(pCfg.URIs) == 0 {
			logger.Printf("Playlist %q has no URIs, skipping", name)
			continue
		}

		variant, err := variantFromName(pCfg.Variant)
		if err != nil {
			logger.Printf("Playlist %q: %v, skipping", name, err)
			continue
		}

		fl, err := lock.NewFileLock(fmt.Sprintf("%s/%s.lock", *lockDir, name))
		if err != nil {
			logger.Printf("Playlist %q: failed to create lock file: %v, skipping", name, err)
			continue
		}
		if err := fl.Acquire(5 * time.Second); err != nil {
			logger.Printf("Playlist %q: another instance holds the lock (%v), skipping", name, err)
			continue
		}

		plan, _, err := factory.Create(context.Background(), pCfg.URIs[0], probe.LocalFileProber{})
		if err != nil {
			logger.Printf("Playlist %q: factory.Create failed: %v, skipping", name, err)
			_ = fl.Release()
			continue
		}

		status := statuses.register(name)
		outbound := &trackingOutbound{name: name, status: status, broadcaster: broadcaster}

		g, err := graph.New(graph.Config{
			Name:          name,
			Variant:       variant,
			Hooks:         plan.Hooks,
			Core:          component.NewFakeCore(false),
			Prober:        probe.LocalFileProber{},
			Outbound:      outbound,
			Specs:         plan.Specs,
			Tunnels:       plan.Tunnels,
			QueueCapacity: cfg.Graph.QueueCapacity,
			Logger:        slogger.With("graph", name),
		})
		if err != nil {
			logger.Printf("Playlist %q: failed to build graph: %v, skipping", name, err)
			_ = fl.Release()
			continue
		}

		if err := sup.Add(g); err != nil {
			logger.Printf("Playlist %q: failed to register graph: %v, skipping", name, err)
			_ = fl.Release()
			continue
		}

		gCfg := &events.GraphConfig{URIList: pCfg.URIs, Shuffle: pCfg.Shuffle}
		loadCtx := context.Background()
		if err := g.Load(loadCtx, gCfg); err != nil {
			logger.Printf("Playlist %q: failed to enqueue initial load: %v", name, err)
		}

		logger.Printf("Registered graph %q (%s), %d uri(s)", name, pCfg.Variant, len(pCfg.URIs))
	}

	if sup.ServiceCount() == 0 {
		logger.Println("No graphs registered. Exiting.")
		os.Exit(0)
	}

	healthHandler := health.NewHandler(statuses)
	if cfg.Health.EventsEnabled {
		healthHandler = healthHandler.WithEvents(broadcaster)
	}
	healthCtx, healthCancel := context.WithCancel(context.Background())
	defer healthCancel()
	if cfg.Health.Addr != "" {
		go func() {
			if err := health.ListenAndServe(healthCtx, cfg.Health.Addr, healthHandler); err != nil {
				logger.Printf("health server error: %v", err)
			}
		}()
		logger.Printf("Health endpoints listening on %s", cfg.Health.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				logger.Println("Received SIGHUP, configuration not reloaded (restart required to apply changes)")
				continue
			}
			logger.Printf("Received signal %v, initiating shutdown...", sig)
			cancel()
			return
		}
	}()

	logger.Printf("Starting %d graph(s)...", sup.ServiceCount())
	if err := sup.Run(ctx); err != nil && err != context.Canceled {
		logger.Printf("Supervisor error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// variantFromName maps a playlist's configured variant string to the
// graph family it selects (spec section 4.5).
func variantFromName(name string) (graphfsm.Variant, error) {
	switch name {
	case "", "decoder":
		return graphfsm.VariantDecoder, nil
	case "http_server":
		return graphfsm.VariantHTTPServer, nil
	case "streaming_service":
		return graphfsm.VariantStreamingService, nil
	case "chromecast":
		return graphfsm.VariantChromecast, nil
	case "youtube":
		return graphfsm.VariantYouTube, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", name)
	}
}

// graphStatus is the live state one registered graph reports through
// the health handler, updated by trackingOutbound as OMX callbacks
// flow back through the graph's dispatcher.
type graphStatus struct {
	name      string
	startedAt time.Time
	state     atomic.Value // string
	errCount  atomic.Int64
	lastErr   atomic.Value // string
}

// statusTracker collects graphStatus for every registered graph and
// implements health.StatusProvider.
type statusTracker struct {
	mu       sync.Mutex
	statuses []*graphStatus
}

func (t *statusTracker) register(name string) *graphStatus {
	s := &graphStatus{name: name, startedAt: time.Now()}
	s.state.Store("Loaded")
	s.lastErr.Store("")

	t.mu.Lock()
	t.statuses = append(t.statuses, s)
	t.mu.Unlock()
	return s
}

func (t *statusTracker) Graphs() []health.GraphInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	infos := make([]health.GraphInfo, 0, len(t.statuses))
	for _, s := range t.statuses {
		state, _ := s.state.Load().(string)
		lastErr, _ := s.lastErr.Load().(string)
		infos = append(infos, health.GraphInfo{
			Name:    s.name,
			State:   state,
			Uptime:  time.Since(s.startedAt),
			Healthy: lastErr == "",
			Error:   lastErr,
			Errors:  int(s.errCount.Load()),
		})
	}
	return infos
}

// trackingOutbound implements ops.Outbound, updating a graphStatus and
// publishing a health.TransitionEvent for every graph-level completion
// so both the /healthz snapshot and the /events stream stay current.
type trackingOutbound struct {
	name        string
	status      *graphStatus
	broadcaster *health.Broadcaster
}

func (o *trackingOutbound) publish(to, detail string) {
	from, _ := o.status.state.Load().(string)
	o.status.state.Store(to)
	o.broadcaster.Publish(health.TransitionEvent{
		Graph:     o.name,
		Kind:      "transition",
		From:      from,
		To:        to,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

func (o *trackingOutbound) OnLoaded()   { o.publish("Loaded", "") }
func (o *trackingOutbound) OnExecd()    { o.publish("Executing", "") }
func (o *trackingOutbound) OnPaused()   { o.publish("Paused", "") }
func (o *trackingOutbound) OnResumed()  { o.publish("Executing", "resumed") }
func (o *trackingOutbound) OnStopped()  { o.publish("Idle", "stopped") }
func (o *trackingOutbound) OnUnloaded() { o.publish("Unloaded", "unloaded") }

func (o *trackingOutbound) OnMetadata(item ilcore.MetadataItem, isHeading bool) {
	o.broadcaster.Publish(health.TransitionEvent{
		Graph:     o.name,
		Kind:      "metadata",
		Detail:    fmt.Sprintf("%s=%s (heading=%v)", item.Key, item.Value, isHeading),
		Timestamp: time.Now(),
	})
}

func (o *trackingOutbound) OnVolumeAcked(percent int) {
	o.broadcaster.Publish(health.TransitionEvent{
		Graph:     o.name,
		Kind:      "metadata",
		Detail:    fmt.Sprintf("volume=%d%%", percent),
		Timestamp: time.Now(),
	})
}

func (o *trackingOutbound) OnError(code ilcore.ErrorCode, message string) {
	o.status.errCount.Add(1)
	o.status.lastErr.Store(fmt.Sprintf("%s: %s", code, message))
	o.broadcaster.Publish(health.TransitionEvent{
		Graph:     o.name,
		Kind:      "metadata",
		Detail:    fmt.Sprintf("error %s: %s", code, message),
		Timestamp: time.Now(),
	})
}

// loadConfiguration loads the config file, or returns the built-in
// defaults (without writing a file) if it doesn't exist.
func loadConfiguration(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

func printUsage() {
	fmt.Println("tizonia-player - OMX IL playback graph daemon")
	fmt.Printf("Version: %s (%s)\n\n", Version, Commit)
	fmt.Println("Usage: tizonia-player [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("The daemon builds one playback graph per configured playlist and")
	fmt.Println("serves its health, metrics, and live transition events over HTTP.")
	fmt.Println()
	fmt.Println("Signals:")
	fmt.Println("  SIGINT, SIGTERM  Graceful shutdown")
	fmt.Println("  SIGHUP           Logged, full restart required to apply changes")
}
