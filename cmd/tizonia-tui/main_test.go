package main

import (
	"path/filepath"
	"testing"

	"github.com/tizonia-project/tizonia-go/internal/config"
)

func TestFlagValue(t *testing.T) {
	args := []string{"--config=/tmp/x.yaml", "--addr", "127.0.0.1:1234"}
	if got := flagValue(args, "config", "default"); got != "/tmp/x.yaml" {
		t.Errorf("config = %q, want /tmp/x.yaml", got)
	}
	if got := flagValue(args, "addr", "default"); got != "127.0.0.1:1234" {
		t.Errorf("addr = %q, want 127.0.0.1:1234", got)
	}
	if got := flagValue(args, "missing", "default"); got != "default" {
		t.Errorf("missing = %q, want default", got)
	}
}

func TestRunPlaylistsAddListRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := config.DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := run([]string{"playlists", "add", "--config=" + path, "radio", "http://example.com/a.mp3"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, ok := cfg.Playlists["radio"]; !ok {
		t.Fatal("expected playlist 'radio' to be added")
	}

	if err := run([]string{"playlists", "list", "--config=" + path}); err != nil {
		t.Fatalf("list: %v", err)
	}

	if err := run([]string{"playlists", "remove", "--config=" + path, "radio"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	cfg, err = config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig after remove: %v", err)
	}
	if _, ok := cfg.Playlists["radio"]; ok {
		t.Fatal("expected playlist 'radio' to be removed")
	}
}

func TestRunPlaylistsRemoveUnknown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := config.DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := run([]string{"playlists", "remove", "--config=" + path, "nonexistent"}); err == nil {
		t.Error("expected error removing unknown playlist")
	}
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := config.DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := run([]string{"validate", "--config=" + path}); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run([]string{"bogus"}); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRunHelpAndVersion(t *testing.T) {
	if err := run([]string{"help"}); err != nil {
		t.Errorf("help: %v", err)
	}
	if err := run([]string{"version"}); err != nil {
		t.Errorf("version: %v", err)
	}
}
