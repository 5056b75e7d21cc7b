package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Identity.UserID = "u1"
	cfg.Chat.AckWaitMS = 2500
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Identity.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", loaded.Identity.UserID)
	}
	if got := loaded.AckWait(); got != 2500*time.Millisecond {
		t.Errorf("AckWait() = %v, want 2.5s", got)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestDurationDefaults(t *testing.T) {
	var cfg Config
	if got := cfg.AckWait(); got != 5*time.Second {
		t.Errorf("AckWait() zero config = %v, want 5s", got)
	}
	if got := cfg.TypingDebounce(); got != time.Second {
		t.Errorf("TypingDebounce() zero config = %v, want 1s", got)
	}
	if got := cfg.TypingExpiry(); got != 4*time.Second {
		t.Errorf("TypingExpiry() zero config = %v, want 4s", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error without user id")
	}
	cfg.Identity.UserID = "u1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	cfg.Backend.APIURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error without api_url")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
