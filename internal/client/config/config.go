package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Client client.toml
type Client struct {
	ServerURL string `toml:"server_url"`
	Token     string `toml:"token"`
	QueueDB   string `toml:"queue_db"`
	LogDir    string `toml:"log_dir"`

	MaxRetries   int `toml:"max_retries"`
	HistoryLimit int `toml:"history_limit"`

	Reconnect Reconnect `toml:"reconnect"`
}

// Reconnect backoff bounds
type Reconnect struct {
	Initial Duration `toml:"initial"`
	Max     Duration `toml:"max"`
}

// Duration toml string duration like "500ms"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultPath ~/.secure_chat/client.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".secure_chat", "client.toml"), nil
}

// Load read the config file, a missing file gives the defaults
func Load(path string) (*Client, error) {
	var cfg Client
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// Save write the config, creating parent dirs as needed
func Save(path string, cfg *Client) error {
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

func (c *Client) applyDefaults(dir string) {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080"
	}
	if c.QueueDB == "" {
		c.QueueDB = filepath.Join(dir, "queue.db")
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.Reconnect.Initial.Duration <= 0 {
		c.Reconnect.Initial.Duration = 500 * time.Millisecond
	}
	if c.Reconnect.Max.Duration <= 0 {
		c.Reconnect.Max.Duration = 30 * time.Second
	}
}
