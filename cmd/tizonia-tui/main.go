// Package main implements tizonia-tui, an interactive companion to
// tizonia-player: a playlist/variant picker for the config file, plus
// a live viewer of a running daemon's graph state over its health
// endpoints.
//
// USAGE:
//
//	tizonia-tui [COMMAND] [OPTIONS]
//
// COMMANDS:
//
//	help              Show this help message
//	version           Show version information
//	menu              Interactive menu (default when run with no args)
//	playlists list    List configured playlists
//	playlists add     Add a playlist: NAME URI [URI...]
//	playlists remove  Remove a playlist: NAME
//	status            Show graph status (polls --addr's /healthz)
//	watch             Stream live transitions (dials --addr's /events)
//	validate          Validate the configuration file
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tizonia-project/tizonia-go/internal/config"
	"github.com/tizonia-project/tizonia-go/internal/health"
	"github.com/tizonia-project/tizonia-go/internal/menu"
)

var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

const (
	exitSuccess = 0
	exitError   = 1
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

// run is the main entry point, extracted for testability.
func run(args []string) error {
	if len(args) == 0 {
		return runMenu(nil)
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "help", "--help", "-h":
		return runHelp()
	case "version", "--version", "-v":
		return runVersion()
	case "menu":
		return runMenu(commandArgs)
	case "playlists":
		return runPlaylists(commandArgs)
	case "status":
		return runStatus(commandArgs)
	case "watch":
		return runWatch(commandArgs)
	case "validate":
		return runValidate(commandArgs)
	default:
		return fmt.Errorf("unknown command: %s (run 'tizonia-tui help' for usage)", command)
	}
}

func runHelp() error {
	fmt.Printf(`Tizonia Player TUI v%s

USAGE:
    tizonia-tui [COMMAND] [OPTIONS]

COMMANDS:
    help              Show this help message
    version           Show version information
    menu              Interactive menu (default when run with no args)
    playlists list    List configured playlists
    playlists add     Add a playlist: NAME URI [URI...]
    playlists remove  Remove a playlist: NAME
    status            Show graph status (polls --addr's /healthz)
    watch             Stream live transitions (dials --addr's /events)
    validate          Validate the configuration file

OPTIONS:
    --config=PATH  Path to configuration file (default: %s)
    --addr=HOST:PORT  tizonia-player health endpoint (default: 127.0.0.1:9998)
`, Version, config.ConfigFilePath)
	return nil
}

func runVersion() error {
	fmt.Printf("tizonia-tui\n")
	fmt.Printf("  Version:    %s\n", Version)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
	fmt.Printf("  Built:      %s\n", BuildDate)
	return nil
}

// runMenu launches the interactive terminal menu (internal/menu).
func runMenu(args []string) error {
	m := menu.CreateMainMenu()
	return m.Display()
}

func flagValue(args []string, name, def string) string {
	prefix := "--" + name + "="
	for i, a := range args {
		if strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix)
		}
		if a == "--"+name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return def
}

func loadConfigForCommand(args []string) (*config.Config, string, error) {
	path := flagValue(args, "config", config.ConfigFilePath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.DefaultConfig(), path, nil
	}
	cfg, err := config.LoadConfig(path)
	return cfg, path, err
}

func runPlaylists(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("playlists requires a subcommand: list, add, remove")
	}

	sub, rest := args[0], args[1:]
	cfg, path, err := loadConfigForCommand(rest)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch sub {
	case "list":
		if len(cfg.Playlists) == 0 {
			fmt.Println("No playlists configured")
			return nil
		}
		for name, p := range cfg.Playlists {
			resolved := cfg.GetPlaylistConfig(name)
			fmt.Printf("%s  variant=%s  uris=%d  shuffle=%v  repeat=%v\n",
				name, resolved.Variant, len(p.URIs), resolved.Shuffle, resolved.Repeat)
		}
		return nil

	case "add":
		positional := rest
		var flagless []string
		for _, a := range positional {
			if !strings.HasPrefix(a, "--") {
				flagless = append(flagless, a)
			}
		}
		if len(flagless) < 2 {
			return fmt.Errorf("usage: tizonia-tui playlists add NAME URI [URI...]")
		}
		name, uris := flagless[0], flagless[1:]
		if cfg.Playlists == nil {
			cfg.Playlists = make(map[string]config.PlaylistConfig)
		}
		cfg.Playlists[name] = config.PlaylistConfig{URIs: uris, Variant: "decoder"}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid playlist: %w", err)
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Added playlist %q (%d uri(s))\n", name, len(uris))
		return nil

	case "remove":
		var flagless []string
		for _, a := range rest {
			if !strings.HasPrefix(a, "--") {
				flagless = append(flagless, a)
			}
		}
		if len(flagless) < 1 {
			return fmt.Errorf("usage: tizonia-tui playlists remove NAME")
		}
		name := flagless[0]
		if _, ok := cfg.Playlists[name]; !ok {
			return fmt.Errorf("no such playlist: %s", name)
		}
		delete(cfg.Playlists, name)
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Removed playlist %q\n", name)
		return nil

	default:
		return fmt.Errorf("unknown playlists subcommand: %s", sub)
	}
}

func runValidate(args []string) error {
	_, path, err := loadConfigForCommand(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fmt.Printf("Configuration %s is valid\n", path)
	return nil
}

// runStatus fetches /healthz from a running tizonia-player and prints
// one line per graph.
func runStatus(args []string) error {
	addr := flagValue(args, "addr", "127.0.0.1:9998")
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		return fmt.Errorf("failed to reach tizonia-player at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	var status health.Response
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}

	fmt.Printf("Overall: %s (as of %s)\n", status.Status, status.Timestamp.Format(time.RFC3339))
	for _, g := range status.Graphs {
		fmt.Printf("  %-20s state=%-12s healthy=%-5v uptime=%s", g.Name, g.State, g.Healthy, g.Uptime.Round(time.Second))
		if g.Error != "" {
			fmt.Printf("  error=%s", g.Error)
		}
		fmt.Println()
	}
	return nil
}

// runWatch dials the /events WebSocket stream and prints transitions
// as they arrive, until interrupted.
func runWatch(args []string) error {
	addr := flagValue(args, "addr", "127.0.0.1:9998")
	url := fmt.Sprintf("ws://%s/events", addr)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	defer conn.Close()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", url)
	for {
		var ev health.TransitionEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return fmt.Errorf("connection closed: %w", err)
		}
		if ev.Kind == "metadata" {
			fmt.Printf("[%s] %s: %s\n", ev.Timestamp.Format(time.RFC3339), ev.Graph, ev.Detail)
			continue
		}
		fmt.Printf("[%s] %s: %s -> %s\n", ev.Timestamp.Format(time.RFC3339), ev.Graph, ev.From, ev.To)
	}
}
