package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.minouchat/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	Backend        Backend  `toml:"backend"`
	Identity       Identity `toml:"identity"`
	Chat           Chat     `toml:"chat"`
}

// Backend holds the Minouverse backend endpoints.
type Backend struct {
	APIURL    string `toml:"api_url"`
	SocketURL string `toml:"socket_url"`
}

// Identity is the pre-issued identity from the Minouverse identity provider.
// Token acquisition is out of scope here; the client only replays it.
type Identity struct {
	UserID string `toml:"user_id"`
	Token  string `toml:"token"`
}

// Chat holds delivery pipeline tuning knobs, all in milliseconds.
type Chat struct {
	AckWaitMS        int `toml:"ack_wait_ms"`
	TypingDebounceMS int `toml:"typing_debounce_ms"`
	TypingExpiryMS   int `toml:"typing_expiry_ms"`
}

// Default returns the config used when no file exists yet.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		Backend: Backend{
			APIURL:    "https://api.minouverse.net",
			SocketURL: "wss://api.minouverse.net/socket",
		},
		Chat: Chat{
			AckWaitMS:        5000,
			TypingDebounceMS: 1000,
			TypingExpiryMS:   4000,
		},
	}
}

// AckWait returns the fallback ack window as a duration.
func (c *Config) AckWait() time.Duration {
	return msOrDefault(c.Chat.AckWaitMS, 5000)
}

// TypingDebounce returns the typing-stop debounce as a duration.
func (c *Config) TypingDebounce() time.Duration {
	return msOrDefault(c.Chat.TypingDebounceMS, 1000)
}

// TypingExpiry returns the remote typing auto-clear window as a duration.
func (c *Config) TypingExpiry() time.Duration {
	return msOrDefault(c.Chat.TypingExpiryMS, 4000)
}

func msOrDefault(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

// Validate checks the fields the delivery pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Backend.APIURL == "" {
		return fmt.Errorf("config: backend.api_url is required")
	}
	if c.Backend.SocketURL == "" {
		return fmt.Errorf("config: backend.socket_url is required")
	}
	if c.Identity.UserID == "" {
		return fmt.Errorf("config: identity.user_id is required")
	}
	return nil
}

// Load reads config from the given path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
